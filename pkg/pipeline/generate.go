package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// denylistPattern matches data- and schema-modifying keywords on word
// boundaries, so column names like CREATED_AT never false-positive.
var denylistPattern = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|RENAME|GRANT|REVOKE|ATTACH|DETACH|OPTIMIZE|SYSTEM|KILL)\b`)

var (
	limitPattern = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
	joinPattern  = regexp.MustCompile(`(?i)\bJOIN\b`)
	aggPattern   = regexp.MustCompile(`(?i)\b(COUNT|SUM|AVG|MAX|MIN)\s*\(`)
)

// generateSQL is the SQL synthesis stage. The synthesizer sees only the
// validated intent, not the raw schema; whatever statement comes back is
// checked for read-only safety before it can ever reach the database.
func (p *Pipeline) generateSQL(ctx context.Context, st *RequestState) {
	if st.ErrorFlag {
		return
	}

	userPrompt := fmt.Sprintf("%s\n%s\n## User Question\n%q",
		p.cfg.Catalog.FocusedContext(st.Intent.Tables),
		intentInstructions(st.Intent),
		st.Question)

	response, err := p.cfg.LLM.Complete(ctx, generateSystemPrompt, userPrompt)
	if err != nil {
		if isCanceled(ctx, err) {
			st.fail(ErrTimeout, "the request timed out during SQL generation")
			return
		}
		st.fail(ErrSQLSynthesisFailed, fmt.Sprintf("SQL generation call failed: %v", err))
		return
	}

	sql := extractSQL(response)
	if sql == "" {
		st.fail(ErrSQLSynthesisFailed, "SQL generation produced an empty statement")
		return
	}

	if err := validateReadOnly(sql); err != nil {
		st.fail(ErrUnsafeQuery, err.Error())
		return
	}

	st.SQL = p.describeSQL(sql)
	p.log.Info("pipeline: SQL generated",
		"tables", st.SQL.Tables,
		"joins", st.SQL.JoinCount,
		"complexity", st.SQL.Complexity)
}

// validateReadOnly enforces the single read-only statement contract.
func validateReadOnly(sql string) error {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("generated statement is not a SELECT query")
	}
	if strings.Contains(sql, ";") {
		return fmt.Errorf("generated statement is not a single query")
	}
	if m := denylistPattern.FindString(sql); m != "" {
		return fmt.Errorf("generated statement contains forbidden keyword %s", strings.ToUpper(m))
	}
	return nil
}

// intentInstructions renders the validated intent as concrete build
// instructions for the synthesizer.
func intentInstructions(intent *IntentRecord) string {
	var sb strings.Builder
	sb.WriteString("## Intent Requirements\n")
	fmt.Fprintf(&sb, "Primary table: %s\n", intent.PrimaryTable)
	if len(intent.Joins) > 0 {
		sb.WriteString("Joins:\n")
		for _, j := range intent.Joins {
			fmt.Fprintf(&sb, "- %s %s JOIN %s ON %s\n", j.FromTable, j.Kind, j.ToTable, j.Condition)
		}
	}
	if len(intent.SelectColumns) > 0 {
		fmt.Fprintf(&sb, "Select: %s\n", strings.Join(intent.SelectColumns, ", "))
	}
	if len(intent.GroupColumns) > 0 {
		fmt.Fprintf(&sb, "Group by: %s\n", strings.Join(intent.GroupColumns, ", "))
	}
	if len(intent.Aggregations) > 0 {
		fmt.Fprintf(&sb, "Aggregations: %s\n", strings.Join(intent.Aggregations, ", "))
	}
	if intent.TimeFilter != "" {
		fmt.Fprintf(&sb, "Time filter: WHERE %s\n", intent.TimeFilter)
	}
	if intent.Percentage {
		sb.WriteString("Include a percentage-of-total column.\n")
	}
	if intent.SortColumn != "" {
		dir := intent.SortDirection
		if dir == "" {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, "Sort: ORDER BY %s %s\n", intent.SortColumn, dir)
	}
	if intent.Limit > 0 {
		fmt.Fprintf(&sb, "Limit: LIMIT %d\n", intent.Limit)
	}
	return sb.String()
}

// describeSQL derives the statement metadata carried alongside the SQL
// text: referenced tables, join count, aggregations and a coarse
// complexity tier.
func (p *Pipeline) describeSQL(sql string) *SQLRecord {
	rec := &SQLRecord{SQL: sql}
	upper := strings.ToUpper(sql)

	for _, ref := range p.tableRefs {
		if ref.pattern.MatchString(upper) {
			rec.Tables = append(rec.Tables, ref.name)
		}
	}

	rec.JoinCount = len(joinPattern.FindAllString(sql, -1))

	seen := map[string]bool{}
	for _, m := range aggPattern.FindAllStringSubmatch(upper, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			rec.Aggregations = append(rec.Aggregations, m[1])
		}
	}

	rec.HasLimit = limitPattern.MatchString(sql)
	rec.HasTimeFilter = strings.Contains(upper, "INTERVAL") || strings.Contains(upper, "RECORD_OPENING_TIME")

	score := len(rec.Tables) + 2*rec.JoinCount + len(rec.Aggregations)
	switch {
	case score <= 2:
		rec.Complexity = "simple"
	case score <= 5:
		rec.Complexity = "medium"
	default:
		rec.Complexity = "complex"
	}
	return rec
}
