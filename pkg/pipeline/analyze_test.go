package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipeline_ValidateIntent_DropsUnknownTables(t *testing.T) {
	p := newTestPipeline(t, &fakeLLM{}, &fakeQuerier{}, &fakeExporter{})

	st := &RequestState{Question: "q", Route: RouteDataQuery}
	p.validateIntent(st, &IntentRecord{
		Confidence:   0.8,
		Tables:       []string{"rm_aggregated_data", "IMAGINARY"},
		PrimaryTable: "IMAGINARY",
	})

	require.False(t, st.ErrorFlag)
	require.NotNil(t, st.Intent)
	// Valid names are canonicalized to the catalog spelling.
	require.Equal(t, []string{"RM_AGGREGATED_DATA"}, st.Intent.Tables)
	// The primary table falls back to the first surviving table.
	require.Equal(t, "RM_AGGREGATED_DATA", st.Intent.PrimaryTable)
	// Combined confidence: (0.8 reported + 0.5 valid fraction) / 2.
	require.InDelta(t, 0.65, st.Intent.OverallConfidence, 1e-9)
}

func TestPipeline_ValidateIntent_ZeroValidTablesIsFatal(t *testing.T) {
	p := newTestPipeline(t, &fakeLLM{}, &fakeQuerier{}, &fakeExporter{})

	st := &RequestState{Question: "q", Route: RouteDataQuery}
	p.validateIntent(st, &IntentRecord{
		Confidence: 0.9,
		Tables:     []string{"NOPE", "ALSO_NOPE"},
	})

	require.True(t, st.ErrorFlag)
	require.Equal(t, ErrInvalidIntent, st.ErrorKind)
	require.Nil(t, st.Intent)
}

func TestPipeline_ValidateIntent_DropsJoinsWithUnknownTables(t *testing.T) {
	p := newTestPipeline(t, &fakeLLM{}, &fakeQuerier{}, &fakeExporter{})

	st := &RequestState{Question: "q", Route: RouteDataQuery}
	p.validateIntent(st, &IntentRecord{
		Confidence:   1.0,
		Tables:       []string{"RM_AGGREGATED_DATA", "PLMN"},
		PrimaryTable: "RM_AGGREGATED_DATA",
		Joins: []JoinSpec{
			{FromTable: "RM_AGGREGATED_DATA", ToTable: "PLMN", Condition: "a.PLMN_ID = b.ID", Kind: "INNER"},
			{FromTable: "RM_AGGREGATED_DATA", ToTable: "GHOST", Condition: "x = y", Kind: "LEFT"},
		},
	})

	require.False(t, st.ErrorFlag)
	require.Len(t, st.Intent.Joins, 1)
	require.Equal(t, "PLMN", st.Intent.Joins[0].ToTable)
}

func TestPipeline_ValidateIntent_ClampsReportedConfidence(t *testing.T) {
	p := newTestPipeline(t, &fakeLLM{}, &fakeQuerier{}, &fakeExporter{})

	tests := []struct {
		name     string
		reported float64
		want     float64
	}{
		{name: "above one", reported: 3.0, want: 1.0},
		{name: "below zero", reported: -0.5, want: 0.5},
		{name: "in range", reported: 0.6, want: 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &RequestState{Question: "q", Route: RouteDataQuery}
			p.validateIntent(st, &IntentRecord{
				Confidence: tt.reported,
				Tables:     []string{"CELL"},
			})
			require.False(t, st.ErrorFlag)
			require.InDelta(t, tt.want, st.Intent.OverallConfidence, 1e-9)
		})
	}
}

func TestPipeline_AnalyzeIntent_SkipsWhenAlreadyFailed(t *testing.T) {
	llm := &fakeLLM{}
	p := newTestPipeline(t, llm, &fakeQuerier{}, &fakeExporter{})

	st := &RequestState{Question: "q", Route: RouteDataQuery}
	st.fail(ErrIntentAnalysisFailed, "earlier failure")

	p.analyzeIntent(context.Background(), st)
	require.Zero(t, llm.calls)
	require.Equal(t, "earlier failure", st.ErrorMessage)
}
