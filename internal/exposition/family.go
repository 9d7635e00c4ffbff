package exposition

import (
	"strings"
	"unicode/utf8"
)

// MaxTextLen is the number of characters kept from free-text label values
// such as task, issue and pull request titles.
const MaxTextLen = 50

// Type is the metric family kind written on the TYPE line.
type Type string

const (
	Gauge   Type = "gauge"
	Counter Type = "counter"
)

// Label is one name/value pair on a sample.
type Label struct {
	Name  string
	Value string
}

// L builds a Label.
func L(name, value string) Label {
	return Label{Name: name, Value: value}
}

// Text builds a Label for a free-text value, truncated to MaxTextLen runes.
func Text(name, value string) Label {
	return Label{Name: name, Value: Truncate(value, MaxTextLen)}
}

// Sample is one line of a family.
type Sample struct {
	Labels []Label
	Value  float64
}

// Family is a named group of samples sharing HELP and TYPE metadata.
type Family struct {
	Name string
	Help string
	Type Type

	// Decimals is the number of fractional digits written for every sample.
	// Zero renders values as integers.
	Decimals int

	Samples []Sample
}

// NewGauge returns an empty gauge family.
func NewGauge(name, help string) *Family {
	return &Family{Name: name, Help: help, Type: Gauge}
}

// Add appends a sample and returns f for chaining.
func (f *Family) Add(value float64, labels ...Label) *Family {
	f.Samples = append(f.Samples, Sample{Labels: labels, Value: value})
	return f
}

// Truncate returns the first n runes of s.
func Truncate(s string, n int) string {
	if n < 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

var (
	labelEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)
	helpEscaper  = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
)

// EscapeLabelValue escapes v for use between the quotes of a label value.
func EscapeLabelValue(v string) string {
	return labelEscaper.Replace(v)
}
