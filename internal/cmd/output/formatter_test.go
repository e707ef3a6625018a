package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runInfo struct {
	DatasetsProcessed int      `json:"datasets_processed" yaml:"datasets_processed"`
	SuccessRate       float64  `json:"success_rate" yaml:"success_rate"`
	StartedAt         utc.Time `json:"started_at" yaml:"started_at"`
	ErrorMessages     []string `json:"error_messages" yaml:"error_messages"`
	Secret            string   `json:"-" yaml:"-"`
	Version           struct {
		Full string `json:"full_version"`
	} `json:"version"`
}

func sampleInfo() runInfo {
	info := runInfo{
		DatasetsProcessed: 3,
		SuccessRate:       66.666,
		StartedAt:         utc.Time{Time: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)},
		ErrorMessages:     []string{"first", "second"},
		Secret:            "hidden",
	}
	info.Version.Full = "2025.06"
	return info
}

func TestProperties(t *testing.T) {
	d, ok := Properties(sampleInfo())
	require.True(t, ok)
	assert.Equal(t, []string{"Property", "Value"}, d.Headers)
	assert.Equal(t, [][]string{
		{"Datasets Processed", "3"},
		{"Success Rate", "66.67"},
		{"Started At", "2026-03-14T08:00:00Z"},
		{"Error Messages", "first\nsecond"},
		{"Version Full Version", "2025.06"},
	}, d.Rows)

	_, ok = Properties([]int{1})
	assert.False(t, ok)
	var nilInfo *runInfo
	_, ok = Properties(nilInfo)
	assert.False(t, ok)
}

func TestFormatters(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(FormatJSON).Format(&buf, sampleInfo()))
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, float64(3), decoded["datasets_processed"])
		assert.NotContains(t, decoded, "Secret")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(FormatYAML).Format(&buf, sampleInfo()))
		assert.Contains(t, buf.String(), "datasets_processed: 3")
		assert.Contains(t, buf.String(), "- first")
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(FormatTable).Format(&buf, sampleInfo()))
		out := buf.String()
		assert.Contains(t, out, "Datasets Processed")
		assert.Contains(t, out, "66.67")
		assert.NotContains(t, out, "hidden")
	})

	t.Run("table falls back to json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(FormatTable).Format(&buf, []string{"a"}))
		assert.JSONEq(t, `["a"]`, buf.String())
	})
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "JSON", "yaml", ""} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("csv")
	assert.Error(t, err)
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}
