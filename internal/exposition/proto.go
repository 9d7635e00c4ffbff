package exposition

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Proto converts f into a client_model MetricFamily. Label order is kept.
func (f *Family) Proto() *dto.MetricFamily {
	name, help := f.Name, f.Help
	mf := &dto.MetricFamily{
		Name: &name,
		Help: &help,
		Type: f.protoType().Enum(),
	}
	for _, s := range f.Samples {
		m := &dto.Metric{}
		for _, l := range s.Labels {
			ln, lv := l.Name, l.Value
			m.Label = append(m.Label, &dto.LabelPair{Name: &ln, Value: &lv})
		}
		v := s.Value
		switch f.protoType() {
		case dto.MetricType_COUNTER:
			m.Counter = &dto.Counter{Value: &v}
		default:
			m.Gauge = &dto.Gauge{Value: &v}
		}
		mf.Metric = append(mf.Metric, m)
	}
	return mf
}

func (f *Family) protoType() dto.MetricType {
	if f.Type == Counter {
		return dto.MetricType_COUNTER
	}
	return dto.MetricType_GAUGE
}

// Proto converts every family of d.
func (d *Document) Proto() []*dto.MetricFamily {
	out := make([]*dto.MetricFamily, 0, len(d.Families))
	for _, f := range d.Families {
		out = append(out, f.Proto())
	}
	return out
}

// Encode writes d to w in the given format through expfmt. Comments are not
// carried over. Use String or WriteTo for the plain text format.
func (d *Document) Encode(w io.Writer, format expfmt.Format) error {
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range d.Proto() {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("exposition: encode %s: %w", mf.GetName(), err)
		}
	}
	if c, ok := enc.(expfmt.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("exposition: close encoder: %w", err)
		}
	}
	return nil
}
