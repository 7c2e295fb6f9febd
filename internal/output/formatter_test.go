package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"text", FormatText},
		{"TEXT", FormatText},
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{"toon", FormatTOON},
		{"TOON", FormatTOON},
		{"", FormatText},
		{"invalid", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseFormat(tt.input)
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewFormatterWithFile(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "results.json")

	f, err := NewFormatter(FormatJSON, outputPath, true)
	require.NoError(t, err)

	assert.False(t, f.Colored(), "file output is never colored")
	assert.NotNil(t, f.file)

	require.NoError(t, f.Output(map[string]int{"p90": 42}))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"p90": 42}`, string(data))
}

func TestNewFormatterInvalidPath(t *testing.T) {
	_, err := NewFormatter(FormatText, "/nonexistent/dir/out.txt", false)
	assert.Error(t, err)
}

func TestFormatterGetters(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter(FormatMarkdown, "", true, WithWriter(&buf))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, FormatMarkdown, f.Format())
	assert.True(t, f.Colored())
	assert.Equal(t, &buf, f.Writer())
}

func sampleTable() *Table {
	return NewTable(
		"Throughput",
		[]string{"Case", "Percentile", "ns/op"},
		[][]string{
			{"size_100000", "90", "41.2"},
			{"size_1000000", "90", "44.9"},
		},
		[]string{"Total", "", "86.1"},
		nil,
	)
}

func TestTableRenderText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleTable().RenderText(&buf, false))

	out := buf.String()
	for _, want := range []string{"Throughput", "CASE", "PERCENTILE", "size_100000", "44.9", "86.1"} {
		assert.Contains(t, out, want)
	}
}

func TestTableRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleTable().RenderMarkdown(&buf))

	out := buf.String()
	assert.Contains(t, out, "## Throughput")
	assert.Contains(t, out, "| Case | Percentile | ns/op |")
	assert.Contains(t, out, "| --- | --- | --- |")
	assert.Contains(t, out, "| size_100000 | 90 | 41.2 |")
	assert.Contains(t, out, "| Total |  | 86.1 |")
}

func TestTableRenderData(t *testing.T) {
	data := sampleTable().RenderData()
	rows, ok := data.([]map[string]string)
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.Equal(t, "size_100000", rows[0]["Case"])

	wrapped := NewTable("", nil, nil, nil, []int{1, 2})
	assert.Equal(t, []int{1, 2}, wrapped.RenderData())
}

func TestSectionRender(t *testing.T) {
	s := &Section{
		Title: "Tracker",
		Fields: [][2]string{
			{"count", "20"},
			{"percentile", "90"},
		},
	}

	var text bytes.Buffer
	require.NoError(t, s.RenderText(&text, false))
	assert.Contains(t, text.String(), "Tracker\n-------")
	assert.Contains(t, text.String(), "count:       20")
	assert.Contains(t, text.String(), "percentile:  90")

	var md bytes.Buffer
	require.NoError(t, s.RenderMarkdown(&md))
	assert.Contains(t, md.String(), "- **count**: 20")

	assert.Equal(t, map[string]string{"count": "20", "percentile": "90"}, s.RenderData())
}

func TestReportRender(t *testing.T) {
	r := &Report{
		Title:    "Benchmark",
		Sections: []Renderable{sampleTable(), &Section{Title: "Run", Fields: [][2]string{{"seed", "42"}}}},
	}

	var text bytes.Buffer
	require.NoError(t, r.RenderText(&text, false))
	out := text.String()
	assert.True(t, strings.HasPrefix(out, "Benchmark\n========="))
	assert.Contains(t, out, "size_1000000")
	assert.Contains(t, out, "seed:  42")

	var md bytes.Buffer
	require.NoError(t, r.RenderMarkdown(&md))
	assert.Contains(t, md.String(), "# Benchmark")
	assert.Contains(t, md.String(), "## Run")

	data, ok := r.RenderData().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Benchmark", data["title"])
	assert.Len(t, data["sections"], 2)
}

func TestFormatterOutputRenderable(t *testing.T) {
	table := NewTable("T", []string{"k"}, [][]string{{"v"}}, nil, map[string]string{"k": "v"})

	tests := []struct {
		format Format
		check  func(t *testing.T, out string)
	}{
		{FormatJSON, func(t *testing.T, out string) {
			var got map[string]string
			require.NoError(t, json.Unmarshal([]byte(out), &got))
			assert.Equal(t, "v", got["k"])
		}},
		{FormatMarkdown, func(t *testing.T, out string) {
			assert.Contains(t, out, "| k |")
		}},
		{FormatText, func(t *testing.T, out string) {
			assert.Contains(t, out, "T\n=")
		}},
		{FormatTOON, func(t *testing.T, out string) {
			assert.Contains(t, out, "k")
			assert.Contains(t, out, "v")
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			f, err := NewFormatter(tt.format, "", false, WithWriter(&buf))
			require.NoError(t, err)
			require.NoError(t, f.Output(table))
			tt.check(t, buf.String())
		})
	}
}

func TestFormatterOutputRaw(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter(FormatMarkdown, "", false, WithWriter(&buf))
	require.NoError(t, err)

	require.NoError(t, f.Output(map[string]int{"buckets": 4}))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "```json\n"))
	assert.Contains(t, out, `"buckets": 4`)
	assert.True(t, strings.HasSuffix(out, "```\n"))
}

func TestFormatterMessages(t *testing.T) {
	var out, msgs bytes.Buffer
	f, err := NewFormatter(FormatText, "", false, WithWriter(&out), WithMessages(&msgs))
	require.NoError(t, err)

	f.Success("saved %d results", 3)
	f.Warning("cache %s", "disabled")
	f.Error("mismatch at %d", 7)
	f.Info("running")
	f.Debug("hidden")

	assert.Empty(t, out.String(), "messages never reach the result writer")
	got := msgs.String()
	assert.Contains(t, got, "saved 3 results\n")
	assert.Contains(t, got, "WARNING: cache disabled\n")
	assert.Contains(t, got, "ERROR: mismatch at 7\n")
	assert.Contains(t, got, "running\n")
	assert.NotContains(t, got, "hidden")

	msgs.Reset()
	verbose, err := NewFormatter(FormatText, "", false, WithMessages(&msgs), WithVerbose(true))
	require.NoError(t, err)
	verbose.Debug("buckets=%d", 5)
	assert.Equal(t, "DEBUG: buckets=5\n", msgs.String())
}

func TestDeltaColor(t *testing.T) {
	assert.Equal(t, "+1%", DeltaColor(0.01, 0.05, "+1%"))
	assert.Contains(t, DeltaColor(0.2, 0.05, "+20%"), "+20%")
	assert.Contains(t, DeltaColor(-0.2, 0.05, "-20%"), "-20%")
}
