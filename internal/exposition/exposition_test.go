package exposition

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *Document {
	d := &Document{}
	d.Add(NewGauge("fleet_exporter_up", "Fleet exporter is running").Add(1))
	d.Add(NewGauge("fleet_agent_status", "Agent status (0=unknown, 1=idle, 2=active, 3=complete)").
		Add(1, L("agent", "claude-agent-01"), L("vm_id", "01"), L("ip", "192.168.1.101")).
		Add(2, L("agent", "claude-agent-02"), L("vm_id", "02"), L("ip", "192.168.1.102")))
	progress := NewGauge("fleet_progress_percent", "Percentage of completed tasks")
	progress.Decimals = 1
	d.Add(progress.Add(30))
	return d
}

func TestDocument_String(t *testing.T) {
	want := `# HELP fleet_exporter_up Fleet exporter is running
# TYPE fleet_exporter_up gauge
fleet_exporter_up 1

# HELP fleet_agent_status Agent status (0=unknown, 1=idle, 2=active, 3=complete)
# TYPE fleet_agent_status gauge
fleet_agent_status{agent="claude-agent-01",vm_id="01",ip="192.168.1.101"} 1
fleet_agent_status{agent="claude-agent-02",vm_id="02",ip="192.168.1.102"} 2

# HELP fleet_progress_percent Percentage of completed tasks
# TYPE fleet_progress_percent gauge
fleet_progress_percent 30.0
`
	assert.Equal(t, want, sampleDocument().String())
}

func TestDocument_CommentsPrecedeFamilies(t *testing.T) {
	d := Liveness("fleet_exporter_up", "Fleet exporter is running", true)
	d.Comments = []string{"Fleet state is empty"}

	assert.Equal(t, "# Fleet state is empty\n# HELP fleet_exporter_up Fleet exporter is running\n# TYPE fleet_exporter_up gauge\nfleet_exporter_up 1\n", d.String())
}

func TestLiveness_Down(t *testing.T) {
	got := Liveness("github_exporter_up", "GitHub exporter is running", false).String()
	assert.Equal(t, "# HELP github_exporter_up GitHub exporter is running\n# TYPE github_exporter_up gauge\ngithub_exporter_up 0\n", got)
}

func TestDocument_WriteTo(t *testing.T) {
	var buf bytes.Buffer
	n, err := sampleDocument().WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, sampleDocument().String(), buf.String())
}

func TestEscapeLabelValue(t *testing.T) {
	assert.Equal(t, `Task with \"quotes\"`, EscapeLabelValue(`Task with "quotes"`))
	assert.Equal(t, `a\\b`, EscapeLabelValue(`a\b`))
	assert.Equal(t, `line\nbreak`, EscapeLabelValue("line\nbreak"))
}

func TestText_TruncatesBeforeEscaping(t *testing.T) {
	title := strings.Repeat("A", 49) + `"quoted tail"`
	l := Text("title", title)
	assert.Equal(t, strings.Repeat("A", 49)+`"`, l.Value)

	f := NewGauge("x", "x").Add(1, l)
	d := &Document{Families: []*Family{f}}
	assert.Contains(t, d.String(), `x{title="`+strings.Repeat("A", 49)+`\""} 1`)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 50))
	assert.Equal(t, strings.Repeat("A", 50), Truncate(strings.Repeat("A", 80), 50))
	assert.Equal(t, "héé", Truncate("hééllo", 3))
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "", Truncate("abc", -1))
}

func TestDocument_Family(t *testing.T) {
	d := sampleDocument()
	require.NotNil(t, d.Family("fleet_agent_status"))
	assert.Len(t, d.Family("fleet_agent_status").Samples, 2)
	assert.Nil(t, d.Family("missing"))
}

func TestParse_RoundTrip(t *testing.T) {
	d := sampleDocument()
	d.Add(NewGauge("fleet_task_status", "Task status").
		Add(1, L("task_id", "8"), Text("title", `Task with "quotes" and \ slash`)))

	mfs, err := Parse(strings.NewReader(d.String()))
	require.NoError(t, err)

	for _, f := range d.Families {
		mf, ok := mfs[f.Name]
		require.True(t, ok, "family %s missing after parse", f.Name)
		assert.Equal(t, f.Help, mf.GetHelp())
		require.Len(t, mf.GetMetric(), len(f.Samples))
		for i, s := range f.Samples {
			m := mf.GetMetric()[i]
			assert.Equal(t, s.Value, Value(m))
			want := make(map[string]string)
			for _, l := range s.Labels {
				want[l.Name] = l.Value
			}
			assert.Equal(t, want, Labels(m))
		}
	}
}

func TestParse_Garbage(t *testing.T) {
	_, err := Parse(strings.NewReader("{{{ not metrics"))
	require.Error(t, err)
}

func TestParse_TruncatedKeepsPrefixAndReportsError(t *testing.T) {
	text := "# TYPE fleet_exporter_up gauge\nfleet_exporter_up 1\n# TYPE fleet_agent_status gauge\nfleet_agent_status{agent=\"claude-agent-01\",vm_id=\"0"

	mfs, err := Parse(strings.NewReader(text))
	require.Error(t, err)
	assert.Contains(t, mfs, "fleet_exporter_up")
}

func TestLabelNamesAndSum(t *testing.T) {
	mfs, err := Parse(strings.NewReader(sampleDocument().String()))
	require.NoError(t, err)

	assert.Equal(t, []string{"agent", "ip", "vm_id"}, LabelNames(mfs["fleet_agent_status"]))
	assert.Equal(t, 3.0, Sum(mfs["fleet_agent_status"]))
	assert.Equal(t, 0.0, Sum(nil))
}

func TestDocument_EncodeViaExpfmt(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleDocument().Encode(&buf, expfmt.NewFormat(expfmt.TypeTextPlain)))

	mfs, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, 30.0, Sum(mfs["fleet_progress_percent"]))
	assert.Equal(t, 1.0, Sum(mfs["fleet_exporter_up"]))
}

func TestFamily_ProtoKeepsLabelOrder(t *testing.T) {
	mf := sampleDocument().Family("fleet_agent_status").Proto()

	require.Len(t, mf.GetMetric(), 2)
	var names []string
	for _, lp := range mf.GetMetric()[0].GetLabel() {
		names = append(names, lp.GetName())
	}
	assert.Equal(t, []string{"agent", "vm_id", "ip"}, names)
	assert.Equal(t, "GAUGE", mf.GetType().String())
}
