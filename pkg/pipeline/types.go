package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/telmilabs/telmi/pkg/schema"
)

// Route is the classification outcome of a question.
type Route string

const (
	RouteDataQuery     Route = "data_query"
	RouteSchemaRequest Route = "schema_request"
	RouteHelpRequest   Route = "help_request"
)

// State identifies a position in the request state machine.
type State string

const (
	StateClassified      State = "classified"
	StateAnalyzingIntent State = "analyzing_intent"
	StateGeneratingSQL   State = "generating_sql"
	StateExecuting       State = "executing"
	StateExporting       State = "exporting"
	StateFormatting      State = "formatting"
	StateErrored         State = "errored"
	StateDone            State = "done"
)

// ErrorKind is the fixed taxonomy of stage failures.
type ErrorKind string

const (
	ErrIntentAnalysisFailed ErrorKind = "INTENT_ANALYSIS_FAILED"
	ErrInvalidIntent        ErrorKind = "INVALID_INTENT"
	ErrSQLSynthesisFailed   ErrorKind = "SQL_SYNTHESIS_FAILED"
	ErrUnsafeQuery          ErrorKind = "UNSAFE_QUERY"
	ErrExecutionFailed      ErrorKind = "EXECUTION_FAILED"
	ErrTimeout              ErrorKind = "TIMEOUT"
	// ErrExportFailed is recorded but never fatal: the answer still ships
	// without the downloadable artifact.
	ErrExportFailed ErrorKind = "EXPORT_FAILED"
)

// JoinSpec is one join proposed by the semantic analyzer.
type JoinSpec struct {
	FromTable string `json:"from_table"`
	ToTable   string `json:"to_table"`
	Condition string `json:"condition"`
	Kind      string `json:"join_type"` // INNER, LEFT, RIGHT
}

// IntentRecord is the validated output of the semantic analysis stage.
// It is immutable once attached to a RequestState.
type IntentRecord struct {
	Language      string     `json:"language"`
	PrimaryIntent string     `json:"primary_intent"`
	Confidence    float64    `json:"confidence"`
	Tables        []string   `json:"tables"`
	PrimaryTable  string     `json:"primary_table"`
	Joins         []JoinSpec `json:"joins"`
	SelectColumns []string   `json:"select_columns"`
	GroupColumns  []string   `json:"group_columns"`
	FilterColumns []string   `json:"filter_columns"`
	Aggregations  []string   `json:"aggregations"`
	TimeFilter    string     `json:"time_filter"`
	Limit         int        `json:"limit"`
	SortColumn    string     `json:"sort_column"`
	SortDirection string     `json:"sort_direction"`
	Percentage    bool       `json:"needs_percentage"`

	// OverallConfidence combines the analyzer's reported confidence with
	// the fraction of proposed tables that validated against the catalog.
	// It is advisory only and never gates execution.
	OverallConfidence float64 `json:"-"`
}

// SQLRecord is the validated output of the SQL synthesis stage.
type SQLRecord struct {
	SQL           string
	Tables        []string
	JoinCount     int
	Aggregations  []string
	HasLimit      bool
	HasTimeFilter bool
	Complexity    string // simple, medium, complex
}

// QueryResultRecord holds the outcome of the single execution attempt.
// Rows are ordered value tuples matching Columns.
type QueryResultRecord struct {
	Success bool
	Columns []string
	Rows    [][]any
	Count   int
	Error   string
	Hint    string

	// ExecutedSQL is the statement text actually sent to the database,
	// including an injected row cap when the generated statement carried
	// no LIMIT. The final response shows this text, not the generated
	// one.
	ExecutedSQL string
}

// ExportRecord describes the downloadable artifact written for a
// successful result with at least one row.
type ExportRecord struct {
	Filename  string
	Path      string
	SizeBytes int64
}

// RequestState carries one question through the state machine. It is
// owned by a single Process call, never shared and never reused.
type RequestState struct {
	Question string
	Route    Route

	Intent      *IntentRecord
	SQL         *SQLRecord
	QueryResult *QueryResultRecord
	Export      *ExportRecord

	// ExportError notes a non-fatal export failure for logging and the
	// final response; it never sets ErrorFlag.
	ExportError string

	ErrorFlag    bool
	ErrorKind    ErrorKind
	ErrorMessage string
	ErrorHint    string

	FinalResponse string
}

// fail records the first stage failure. Later stages see ErrorFlag and
// pass the state through untouched until the assembler.
func (st *RequestState) fail(kind ErrorKind, message string) {
	if st.ErrorFlag {
		return
	}
	st.ErrorFlag = true
	st.ErrorKind = kind
	st.ErrorMessage = message
}

// Attachment is one named artifact referenced by the final response.
type Attachment struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     string `json:"size"`
}

// Response is the uniform shape returned to callers for every route,
// successful or not.
type Response struct {
	Success     bool                  `json:"success"`
	Route       Route                 `json:"route"`
	Response    string                `json:"response"`
	Attachments map[string]Attachment `json:"attachments"`
	Error       string                `json:"error,omitempty"`
}

// LLMClient is the interface for interacting with an LLM.
type LLMClient interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Querier executes a single SQL statement against the analytical
// database and returns ordered columns and row tuples.
type Querier interface {
	Query(ctx context.Context, sql string) (columns []string, rows [][]any, err error)
}

// Exporter writes a tabular result to durable storage.
type Exporter interface {
	Export(question string, columns []string, rows [][]any) (*ExportRecord, error)
}

// Config holds the configuration for the pipeline.
type Config struct {
	Logger   *slog.Logger
	LLM      LLMClient
	Querier  Querier
	Exporter Exporter
	Catalog  *schema.Catalog

	// MaxRows is the safety row cap injected when a generated statement
	// carries no explicit LIMIT (default 1000).
	MaxRows int

	// QueryTimeout bounds the whole data-query sub-chain: both LLM calls
	// plus the database round trip (default 2 minutes).
	QueryTimeout time.Duration
}
