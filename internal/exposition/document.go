package exposition

import (
	"io"
	"strconv"
	"strings"
)

// Document is one complete exposition block.
type Document struct {
	// Comments are written as "# <comment>" lines before the first family.
	Comments []string
	Families []*Family
}

// Add appends families in order.
func (d *Document) Add(fams ...*Family) {
	d.Families = append(d.Families, fams...)
}

// Family returns the family called name, or nil.
func (d *Document) Family(name string) *Family {
	for _, f := range d.Families {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// String renders the document in text exposition format.
func (d *Document) String() string {
	var b strings.Builder
	d.write(&b)
	return b.String()
}

// WriteTo writes the rendered document to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, d.String())
	return int64(n), err
}

func (d *Document) write(b *strings.Builder) {
	for _, c := range d.Comments {
		b.WriteString("# ")
		b.WriteString(c)
		b.WriteByte('\n')
	}
	for i, f := range d.Families {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeFamily(b, f)
	}
}

func writeFamily(b *strings.Builder, f *Family) {
	typ := f.Type
	if typ == "" {
		typ = Gauge
	}
	b.WriteString("# HELP ")
	b.WriteString(f.Name)
	b.WriteByte(' ')
	b.WriteString(helpEscaper.Replace(f.Help))
	b.WriteString("\n# TYPE ")
	b.WriteString(f.Name)
	b.WriteByte(' ')
	b.WriteString(string(typ))
	b.WriteByte('\n')

	for _, s := range f.Samples {
		b.WriteString(f.Name)
		if len(s.Labels) > 0 {
			b.WriteByte('{')
			for j, l := range s.Labels {
				if j > 0 {
					b.WriteByte(',')
				}
				b.WriteString(l.Name)
				b.WriteString(`="`)
				b.WriteString(EscapeLabelValue(l.Value))
				b.WriteByte('"')
			}
			b.WriteByte('}')
		}
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(s.Value, 'f', f.Decimals, 64))
		b.WriteByte('\n')
	}
}

// Liveness returns a document holding only the <name> gauge set to 1 or 0.
func Liveness(name, help string, up bool) *Document {
	v := 0.0
	if up {
		v = 1
	}
	return &Document{Families: []*Family{NewGauge(name, help).Add(v)}}
}

// Scrape is one rendered document plus whether its source could be read.
type Scrape struct {
	Document *Document
	Up       bool
}
