// Package pipeline implements the request-orchestration state machine
// that turns one natural-language question into exactly one response.
// A question is classified, and data questions are driven through
// semantic analysis, SQL generation, a single execution attempt and an
// optional export, before every path terminates in the assembler.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"
)

// Pipeline orchestrates the per-question state machine. It holds only
// shared, stateless handles; all per-request state lives in a
// RequestState owned by a single Process call, so one Pipeline may serve
// concurrent requests without locking.
type Pipeline struct {
	cfg *Config
	log *slog.Logger

	// tableRefs holds one precompiled word-boundary pattern per catalog
	// table, in sorted name order, for statement metadata derivation.
	tableRefs []tableRef
}

type tableRef struct {
	name    string
	pattern *regexp.Regexp
}

// New creates a new Pipeline.
func New(cfg *Config) (*Pipeline, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if cfg.Querier == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if cfg.Exporter == nil {
		return nil, fmt.Errorf("exporter is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("schema catalog is required")
	}
	if cfg.MaxRows == 0 {
		cfg.MaxRows = 1000
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 2 * time.Minute
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{cfg: cfg, log: log}
	for _, name := range cfg.Catalog.TableNames() {
		p.tableRefs = append(p.tableRefs, tableRef{
			name:    name,
			pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`),
		})
	}
	return p, nil
}

// Process answers one question. It always returns a response: every
// failure mode is folded into the uniform Response shape, so callers
// never need route- or error-specific handling. The returned error is
// reserved for programming errors and is currently always nil.
func (p *Pipeline) Process(ctx context.Context, question string) (*Response, error) {
	st := &RequestState{Question: question}
	st.Route = Classify(question)
	p.log.Info("pipeline: question classified", "route", st.Route)

	// One deadline covers the whole data sub-chain: both external calls
	// plus the database round trip.
	if st.Route == RouteDataQuery {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.QueryTimeout)
		defer cancel()
	}

	var resp *Response
	state := StateClassified
	for state != StateDone {
		state = p.step(ctx, state, st, &resp)
	}

	status := "ok"
	if st.ErrorFlag {
		status = "error"
		stageErrors.WithLabelValues(string(st.ErrorKind)).Inc()
	}
	requestsTotal.WithLabelValues(string(st.Route), status).Inc()

	return resp, nil
}

// step performs at most one unit of work and returns the next state.
// A stage that records a failure sends the machine to ERRORED, which
// jumps straight to FORMATTING: remaining data-path stages are skipped,
// and the assembler is the only component that reads the error.
func (p *Pipeline) step(ctx context.Context, state State, st *RequestState, resp **Response) State {
	switch state {
	case StateClassified:
		if st.Route == RouteDataQuery {
			return StateAnalyzingIntent
		}
		return StateFormatting

	case StateAnalyzingIntent:
		p.analyzeIntent(ctx, st)
		return p.advance(st, StateGeneratingSQL)

	case StateGeneratingSQL:
		p.generateSQL(ctx, st)
		return p.advance(st, StateExecuting)

	case StateExecuting:
		p.execute(ctx, st)
		if st.ErrorFlag {
			return StateErrored
		}
		if st.QueryResult.Count == 0 {
			// Zero rows is a success with nothing to export.
			return StateFormatting
		}
		return StateExporting

	case StateExporting:
		p.export(st)
		return StateFormatting

	case StateErrored:
		return StateFormatting

	case StateFormatting:
		*resp = p.assemble(st)
		return StateDone

	default:
		*resp = p.assemble(st)
		return StateDone
	}
}

func (p *Pipeline) advance(st *RequestState, next State) State {
	if st.ErrorFlag {
		return StateErrored
	}
	return next
}
