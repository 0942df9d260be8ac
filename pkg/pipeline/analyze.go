package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// analyzeIntent is the semantic analysis stage. The analyzer itself is
// an external capability; everything it returns is validated here
// against the catalog before any later stage may rely on it.
func (p *Pipeline) analyzeIntent(ctx context.Context, st *RequestState) {
	if st.ErrorFlag {
		return
	}

	userPrompt := fmt.Sprintf("%s\n\n## User Question\n%q", p.cfg.Catalog.Context(), st.Question)

	response, err := p.cfg.LLM.Complete(ctx, analyzeSystemPrompt, userPrompt)
	if err != nil {
		if isCanceled(ctx, err) {
			st.fail(ErrTimeout, "the request timed out during semantic analysis")
			return
		}
		st.fail(ErrIntentAnalysisFailed, fmt.Sprintf("semantic analysis call failed: %v", err))
		return
	}

	jsonStr := extractJSON(response)
	if jsonStr == "" {
		st.fail(ErrIntentAnalysisFailed, "semantic analysis returned no parseable result")
		return
	}

	var intent IntentRecord
	if err := json.Unmarshal([]byte(jsonStr), &intent); err != nil {
		st.fail(ErrIntentAnalysisFailed, fmt.Sprintf("semantic analysis returned malformed output: %v", err))
		return
	}

	p.validateIntent(st, &intent)
}

// validateIntent enforces the node contract: unknown tables are dropped,
// invalid joins are silently dropped, and a combined confidence score is
// computed. Zero valid tables is a hard failure.
func (p *Pipeline) validateIntent(st *RequestState, intent *IntentRecord) {
	proposed := len(intent.Tables)
	valid := make([]string, 0, proposed)
	for _, name := range intent.Tables {
		if t, ok := p.cfg.Catalog.Lookup(name); ok {
			valid = append(valid, t.Name)
		} else {
			p.log.Warn("pipeline: analyzer proposed unknown table", "table", name)
		}
	}
	if len(valid) == 0 {
		st.fail(ErrInvalidIntent, "semantic analysis produced no valid tables for this question")
		return
	}
	intent.Tables = valid

	if _, ok := p.cfg.Catalog.Lookup(intent.PrimaryTable); !ok {
		intent.PrimaryTable = valid[0]
	}

	joins := intent.Joins[:0]
	for _, j := range intent.Joins {
		_, fromOK := p.cfg.Catalog.Lookup(j.FromTable)
		_, toOK := p.cfg.Catalog.Lookup(j.ToTable)
		if fromOK && toOK {
			joins = append(joins, j)
		} else {
			p.log.Warn("pipeline: dropping join with unknown table", "from", j.FromTable, "to", j.ToTable)
		}
	}
	intent.Joins = joins

	reported := intent.Confidence
	if reported < 0 {
		reported = 0
	}
	if reported > 1 {
		reported = 1
	}
	validFraction := float64(len(valid)) / float64(max(proposed, 1))
	intent.OverallConfidence = (reported + validFraction) / 2

	st.Intent = intent
	p.log.Info("pipeline: intent analyzed",
		"intent", intent.PrimaryIntent,
		"tables", intent.Tables,
		"confidence", intent.OverallConfidence)
}

// isCanceled reports whether an external-call error was caused by the
// data-path deadline or by caller cancellation rather than the call
// itself. Both outcomes map to the TIMEOUT kind: no partial results are
// surfaced either way.
func isCanceled(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		ctx.Err() != nil
}
