package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPipeline_ExportFilename(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	tests := []struct {
		name     string
		question string
		want     string
	}{
		{
			name:     "words become a slug",
			question: "Top 10 customers by download",
			want:     "top_10_customers_by_download_20260314_150926.csv",
		},
		{
			name:     "punctuation collapses",
			question: "what's the total, per-operator?!",
			want:     "what_s_the_total_per_operator_20260314_150926.csv",
		},
		{
			name:     "long questions are truncated",
			question: "a very long question that keeps going and going and going and going",
			want:     "a_very_long_question_that_keeps_going_an_20260314_150926.csv",
		},
		{
			name:     "no usable characters",
			question: "???",
			want:     "query_20260314_150926.csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, exportFilename(tt.question, now))
		})
	}
}

func TestPipeline_CSVExporter_WritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewCSVExporter(filepath.Join(dir, "exports"))
	require.NoError(t, err)

	rec, err := exporter.Export("top customers",
		[]string{"PARTY_ID", "total"},
		[][]any{
			{"MSISDN-1", int64(5000)},
			{"MSISDN-2", nil},
		})
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Greater(t, rec.SizeBytes, int64(0))
	require.Contains(t, rec.Filename, "top_customers_")

	f, err := os.Open(rec.Path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"PARTY_ID", "total"},
		{"MSISDN-1", "5000"},
		{"MSISDN-2", ""},
	}, records)
}

func TestPipeline_CSVExporter_RejectsUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := NewCSVExporter(filepath.Join(file, "exports"))
	require.Error(t, err)
}

func TestPipeline_HumanSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{size: 0, want: "0 B"},
		{size: 512, want: "512 B"},
		{size: 2048, want: "2.0 KB"},
		{size: 1536, want: "1.5 KB"},
		{size: 5 * 1024 * 1024, want: "5.0 MB"},
		{size: 3 * 1024 * 1024 * 1024, want: "3.0 GB"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, humanSize(tt.size))
	}
}

func TestPipeline_Export_SkipsNonExportableStates(t *testing.T) {
	exporter := &fakeExporter{rec: &ExportRecord{Filename: "r.csv"}}
	p := newTestPipeline(t, &fakeLLM{}, &fakeQuerier{}, exporter)

	// Errored request.
	st := &RequestState{Question: "q"}
	st.fail(ErrExecutionFailed, "boom")
	p.export(st)
	require.Zero(t, exporter.calls)

	// Zero-row result.
	st = &RequestState{
		Question:    "q",
		QueryResult: &QueryResultRecord{Success: true, Columns: []string{"a"}},
	}
	p.export(st)
	require.Zero(t, exporter.calls)
	require.Nil(t, st.Export)
}
