package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipeline_Classify(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     Route
	}{
		{
			name:     "list tables",
			question: "list tables",
			want:     RouteSchemaRequest,
		},
		{
			name:     "schema keyword inside sentence",
			question: "can you show me the SCHEMA of the customer table",
			want:     RouteSchemaRequest,
		},
		{
			name:     "describe table",
			question: "Describe Table PLMN",
			want:     RouteSchemaRequest,
		},
		{
			name:     "help",
			question: "help",
			want:     RouteHelpRequest,
		},
		{
			name:     "help inside sentence",
			question: "I need some help here",
			want:     RouteHelpRequest,
		},
		{
			name:     "french help",
			question: "aide",
			want:     RouteHelpRequest,
		},
		{
			name:     "bare question mark",
			question: "?",
			want:     RouteHelpRequest,
		},
		{
			name:     "bare question mark with whitespace",
			question: "  ?  ",
			want:     RouteHelpRequest,
		},
		{
			name:     "question ending in question mark is data",
			question: "how many sessions were opened yesterday?",
			want:     RouteDataQuery,
		},
		{
			name:     "bare usage",
			question: "usage",
			want:     RouteHelpRequest,
		},
		{
			name:     "usage inside a data question is data",
			question: "top 5 customers by usage",
			want:     RouteDataQuery,
		},
		{
			name:     "schema keyword wins over help keyword",
			question: "help me describe table CELL",
			want:     RouteSchemaRequest,
		},
		{
			name:     "plain data question",
			question: "total download volume per operator last week",
			want:     RouteDataQuery,
		},
		{
			name:     "empty question",
			question: "",
			want:     RouteDataQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.question))
		})
	}
}
