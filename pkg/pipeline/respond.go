package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/telmilabs/telmi/pkg/schema"
)

const helpResponse = `**Telmi - ClickHouse Analytics Assistant**

Ask questions about your telecom data in natural language:

- **Rankings:** "Show me the top 10 customers by data usage"
- **Geographic analysis:** "What's the distribution of sessions by country?"
- **Time-based queries:** "How much data was used last week?"
- **Schema:** "list tables" or "describe table PLMN"

Every successful data query includes a bounded preview, a short summary
and a downloadable CSV of the full result.`

// previewRows bounds the result preview in the final response; the full
// row set is only available through the export attachment.
const previewRows = 20

// assemble converts the terminal RequestState into the single
// user-facing response. It is the only place allowed to read ErrorFlag,
// and every request ends here regardless of which stage failed.
func (p *Pipeline) assemble(st *RequestState) *Response {
	resp := &Response{
		Route:       st.Route,
		Attachments: map[string]Attachment{},
	}

	switch {
	case st.Route == RouteHelpRequest:
		resp.Success = true
		resp.Response = helpResponse

	case st.Route == RouteSchemaRequest:
		resp.Success = true
		resp.Response = p.schemaResponse(st.Question)

	case st.ErrorFlag:
		resp.Error = st.ErrorMessage
		resp.Response = formatError(st)

	case st.QueryResult.Count == 0:
		resp.Success = true
		resp.Response = "**No Data Found**\n\nThe query executed successfully but returned no results."

	default:
		resp.Success = true
		resp.Response = p.formatResult(st)
		if st.Export != nil {
			resp.Attachments["csv"] = Attachment{
				Type:     "csv",
				Filename: st.Export.Filename,
				Path:     st.Export.Path,
				Size:     humanSize(st.Export.SizeBytes),
			}
		}
	}

	st.FinalResponse = resp.Response
	return resp
}

// formatError renders the recorded failure with its remediation hint.
// Internal record contents beyond the recorded message are never shown.
func formatError(st *RequestState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Error:** %s", st.ErrorMessage)
	hint := st.ErrorHint
	if hint == "" && st.QueryResult != nil {
		hint = st.QueryResult.Hint
	}
	if hint != "" {
		fmt.Fprintf(&sb, "\n\n**Suggestion:** %s", hint)
	}
	return sb.String()
}

// formatResult builds the data-query response: the executed SQL, a
// bounded preview table, the export reference and a short statistical
// summary.
func (p *Pipeline) formatResult(st *RequestState) string {
	res := st.QueryResult
	var parts []string

	parts = append(parts, fmt.Sprintf("**Executed Query:**\n```sql\n%s\n```", res.ExecutedSQL))

	parts = append(parts, "**Results:**\n"+previewTable(res))

	if st.Export != nil {
		parts = append(parts, fmt.Sprintf("**[Download CSV](%s)** (%s)\n*The complete result set as CSV*",
			st.Export.Filename, humanSize(st.Export.SizeBytes)))
	}

	if summary := analysisSummary(res); summary != "" {
		parts = append(parts, "**Analysis:**\n"+summary)
	}

	return strings.Join(parts, "\n\n")
}

// previewTable renders at most previewRows rows as a fixed-width table.
func previewTable(res *QueryResultRecord) string {
	display := res.Rows
	if len(display) > previewRows {
		display = display[:previewRows]
	}

	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetHeader(res.Columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, row := range display {
		cells := make([]string, len(res.Columns))
		for i := range res.Columns {
			if i < len(row) {
				cells[i] = formatCell(row[i])
			}
		}
		table.Append(cells)
	}
	table.Render()

	out := "```\n" + buf.String() + "```"
	if res.Count > previewRows {
		out += fmt.Sprintf("\n*Showing first %d of %d total rows*", previewRows, res.Count)
	} else {
		out += fmt.Sprintf("\n*%d rows total*", res.Count)
	}
	return out
}

// formatCell formats one value for the preview table.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		return val.Format("2006-01-02 15:04")
	case float32:
		return formatNumber(float64(val))
	case float64:
		return formatNumber(val)
	default:
		if f, ok := toFloat(v); ok {
			return formatNumber(f)
		}
		s := fmt.Sprintf("%v", v)
		if len(s) > 40 {
			s = s[:37] + "..."
		}
		return s
	}
}

// formatNumber renders numbers with K/M suffixes for readability.
// Four-digit values in the year range are left untouched.
func formatNumber(v float64) string {
	if v >= 1900 && v <= 2100 && v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fK", v/1_000)
	case v == float64(int64(v)):
		return fmt.Sprintf("%d", int64(v))
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// analysisSummary produces the record count plus min/avg/max for up to
// three numeric columns.
func analysisSummary(res *QueryResultRecord) string {
	insights := []string{fmt.Sprintf("- **Records:** %d", res.Count)}

	for i, col := range res.Columns {
		if len(insights) > 3 {
			break
		}
		var vals []float64
		for _, row := range res.Rows {
			if i < len(row) {
				if f, ok := toFloat(row[i]); ok {
					vals = append(vals, f)
				}
			}
		}
		if len(vals) < 2 {
			continue
		}
		minV, maxV, sum := vals[0], vals[0], 0.0
		for _, v := range vals {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
			sum += v
		}
		insights = append(insights, fmt.Sprintf("- **%s:** avg %s, range %s - %s",
			col, formatNumber(sum/float64(len(vals))), formatNumber(minV), formatNumber(maxV)))
	}

	return strings.Join(insights, "\n")
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

var namedTablePattern = regexp.MustCompile(`(?i)(?:describe table|table structure of|schema of|schema for)\s+([A-Za-z0-9_]+)`)

// schemaResponse formats either the full catalog or one table's columns,
// depending on whether the question named a table. An unknown table name
// yields a structured not-found message listing the valid names.
func (p *Pipeline) schemaResponse(question string) string {
	for _, tok := range strings.FieldsFunc(question, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) {
		if t, ok := p.cfg.Catalog.Lookup(tok); ok {
			return describeTable(t)
		}
	}

	if m := namedTablePattern.FindStringSubmatch(question); m != nil {
		return fmt.Sprintf("**Table '%s' not found.**\n\nAvailable tables: %s",
			strings.ToUpper(m[1]), strings.Join(p.cfg.Catalog.TableNames(), ", "))
	}

	var sb strings.Builder
	sb.WriteString("**Available Tables**\n")
	for _, name := range p.cfg.Catalog.TableNames() {
		t, _ := p.cfg.Catalog.Lookup(name)
		fmt.Fprintf(&sb, "\n**%s**\n  %s\n", t.Name, t.Description)
	}
	return sb.String()
}

func describeTable(t *schema.Table) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Table Schema: %s**\n\n%s\n\n**Columns:**\n", t.Name, t.Description)
	for _, col := range t.Columns {
		fmt.Fprintf(&sb, "- **%s** (%s): %s\n", col.Name, col.Type, col.Description)
	}
	return sb.String()
}
