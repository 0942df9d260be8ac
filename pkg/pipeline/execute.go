package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// execute runs the validated statement exactly once. Zero rows is a
// success; only the database call itself can fail this stage.
func (p *Pipeline) execute(ctx context.Context, st *RequestState) {
	if st.ErrorFlag {
		return
	}

	sql := st.SQL.SQL
	if !st.SQL.HasLimit {
		// Safety cap for statements the synthesizer left unbounded.
		sql = fmt.Sprintf("%s LIMIT %d", sql, p.cfg.MaxRows)
	}

	start := time.Now()
	columns, rows, err := p.cfg.Querier.Query(ctx, sql)
	queryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if isCanceled(ctx, err) {
			st.QueryResult = &QueryResultRecord{Error: "query timed out", ExecutedSQL: sql}
			st.fail(ErrTimeout, "the database query timed out")
			return
		}
		msg, hint := describeQueryError(err)
		st.QueryResult = &QueryResultRecord{Error: msg, Hint: hint, ExecutedSQL: sql}
		st.ErrorHint = hint
		st.fail(ErrExecutionFailed, msg)
		p.log.Warn("pipeline: query failed", "error", err, "duration", time.Since(start))
		return
	}

	st.QueryResult = &QueryResultRecord{
		Success:     true,
		Columns:     columns,
		Rows:        rows,
		Count:       len(rows),
		ExecutedSQL: sql,
	}
	p.log.Info("pipeline: query executed", "rows", len(rows), "duration", time.Since(start))
}

// describeQueryError summarizes a database error for the user and
// derives a remediation hint where one is recognizable. Raw driver text
// is never surfaced verbatim.
func describeQueryError(err error) (msg, hint string) {
	text := err.Error()
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "i/o timeout"),
		strings.Contains(lower, "dial tcp"):
		return "the database is unreachable", "check network connectivity and the database host configuration"
	case strings.Contains(lower, "authentication"),
		strings.Contains(lower, "access_denied"),
		strings.Contains(lower, "access denied"):
		return "the database rejected the credentials", "verify the configured username and password"
	case strings.Contains(lower, "unknown identifier"),
		strings.Contains(lower, "missing columns"),
		strings.Contains(lower, "unknown table"),
		strings.Contains(lower, "doesn't exist"):
		return "the generated query referenced an unknown table or column", "try rephrasing the question with the column names shown by 'list tables'"
	case strings.Contains(lower, "syntax error"):
		return "the generated query was not valid SQL", "try rephrasing the question more simply"
	case strings.Contains(lower, "memory limit"),
		strings.Contains(lower, "timeout exceeded"):
		return "the query exceeded the database resource limits", "narrow the time range or add more specific filters"
	default:
		summary := text
		if len(summary) > 200 {
			summary = summary[:200] + "..."
		}
		return fmt.Sprintf("query execution failed: %s", summary), ""
	}
}
