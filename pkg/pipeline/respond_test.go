package pipeline

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPipeline_FormatNumber(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{value: 0, want: "0"},
		{value: 42, want: "42"},
		{value: 3.14159, want: "3.14"},
		{value: 999, want: "999"},
		{value: 1500, want: "1.5K"},
		{value: 2_500_000, want: "2.5M"},
		{value: -1500, want: "-1.5K"},
		// Years print as-is even though they exceed the K threshold.
		{value: 2024, want: "2024"},
		{value: 1999, want: "1999"},
		{value: 2101, want: "2.1K"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, formatNumber(tt.value))
		})
	}
}

func TestPipeline_FormatCell(t *testing.T) {
	ts := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "nil", value: nil, want: ""},
		{name: "timestamp", value: ts, want: "2026-01-15 09:30"},
		{name: "integer", value: int64(1500), want: "1.5K"},
		{name: "float", value: 0.25, want: "0.25"},
		{name: "string", value: "FR-Orange", want: "FR-Orange"},
		{
			name:  "long string truncated",
			value: strings.Repeat("a", 60),
			want:  strings.Repeat("a", 37) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, formatCell(tt.value))
		})
	}
}

func TestPipeline_PreviewTable_TruncatesAtTwentyRows(t *testing.T) {
	rows := make([][]any, 45)
	for i := range rows {
		rows[i] = []any{fmt.Sprintf("row-%02d", i)}
	}
	res := &QueryResultRecord{
		Success: true,
		Columns: []string{"PARTY_ID"},
		Rows:    rows,
		Count:   len(rows),
	}

	out := previewTable(res)
	require.Contains(t, out, "row-00")
	require.Contains(t, out, "row-19")
	require.NotContains(t, out, "row-20")
	require.Contains(t, out, "*Showing first 20 of 45 total rows*")
}

func TestPipeline_PreviewTable_SmallResult(t *testing.T) {
	res := &QueryResultRecord{
		Success: true,
		Columns: []string{"NAME", "TOTAL"},
		Rows:    [][]any{{"Orange", int64(1500)}},
		Count:   1,
	}

	out := previewTable(res)
	require.Contains(t, out, "NAME")
	require.Contains(t, out, "Orange")
	require.Contains(t, out, "1.5K")
	require.Contains(t, out, "*1 rows total*")
}

func TestPipeline_AnalysisSummary(t *testing.T) {
	res := &QueryResultRecord{
		Success: true,
		Columns: []string{"NAME", "DOWNLOAD"},
		Rows: [][]any{
			{"a", int64(100)},
			{"b", int64(200)},
			{"c", int64(300)},
		},
		Count: 3,
	}

	out := analysisSummary(res)
	require.Contains(t, out, "**Records:** 3")
	require.Contains(t, out, "**DOWNLOAD:** avg 200, range 100 - 300")
	// Non-numeric columns contribute no insight.
	require.NotContains(t, out, "**NAME:**")
}

func TestPipeline_SchemaResponse(t *testing.T) {
	p := newTestPipeline(t, &fakeLLM{}, &fakeQuerier{}, &fakeExporter{})

	t.Run("named table", func(t *testing.T) {
		out := p.schemaResponse("describe table plmn")
		require.Contains(t, out, "Table Schema: PLMN")
		require.Contains(t, out, "Columns:")
	})

	t.Run("table name anywhere in the question", func(t *testing.T) {
		out := p.schemaResponse("what is the structure of CUSTOMER exactly")
		require.Contains(t, out, "Table Schema: CUSTOMER")
	})

	t.Run("unknown named table", func(t *testing.T) {
		out := p.schemaResponse("describe table UNICORNS")
		require.Contains(t, out, "Table 'UNICORNS' not found")
		require.Contains(t, out, "RM_AGGREGATED_DATA")
	})

	t.Run("full listing", func(t *testing.T) {
		out := p.schemaResponse("list tables")
		require.Contains(t, out, "Available Tables")
		for _, name := range []string{"RM_AGGREGATED_DATA", "PLMN", "CELL", "CUSTOMER"} {
			require.Contains(t, out, name)
		}
	})
}

func TestPipeline_Assemble_ErrorIncludesHint(t *testing.T) {
	p := newTestPipeline(t, &fakeLLM{}, &fakeQuerier{}, &fakeExporter{})

	st := &RequestState{Question: "q", Route: RouteDataQuery}
	st.fail(ErrExecutionFailed, "the database is unreachable")
	st.ErrorHint = "check network connectivity and the database host configuration"

	resp := p.assemble(st)
	require.False(t, resp.Success)
	require.Equal(t, "the database is unreachable", resp.Error)
	require.Contains(t, resp.Response, "**Error:** the database is unreachable")
	require.Contains(t, resp.Response, "**Suggestion:** check network connectivity")
}

func TestPipeline_Assemble_FirstFailureWins(t *testing.T) {
	st := &RequestState{Question: "q", Route: RouteDataQuery}
	st.fail(ErrIntentAnalysisFailed, "first")
	st.fail(ErrExecutionFailed, "second")

	require.Equal(t, ErrIntentAnalysisFailed, st.ErrorKind)
	require.Equal(t, "first", st.ErrorMessage)
}
