package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// export writes the downloadable artifact. It is entered only for a
// successful result with at least one row, and a write failure is never
// fatal: the answer still ships, just without the attachment.
func (p *Pipeline) export(st *RequestState) {
	if st.ErrorFlag || st.QueryResult == nil || !st.QueryResult.Success || st.QueryResult.Count == 0 {
		return
	}

	rec, err := p.cfg.Exporter.Export(st.Question, st.QueryResult.Columns, st.QueryResult.Rows)
	if err != nil {
		st.ExportError = fmt.Sprintf("export failed: %v", err)
		stageErrors.WithLabelValues(string(ErrExportFailed)).Inc()
		p.log.Warn("pipeline: export failed, continuing without attachment", "error", err)
		return
	}

	st.Export = rec
	p.log.Info("pipeline: result exported", "file", rec.Filename, "bytes", rec.SizeBytes)
}

// CSVExporter writes query results as CSV files into a directory.
type CSVExporter struct {
	Dir string
}

// NewCSVExporter creates an exporter rooted at dir, creating it if
// needed.
func NewCSVExporter(dir string) (*CSVExporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &CSVExporter{Dir: dir}, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-z0-9]+`)

// exportFilename derives a deterministic, collision-free name from the
// question and a timestamp: a lowercased slug of the first few words
// plus the time the export was written.
func exportFilename(question string, now time.Time) string {
	slug := unsafeFilenameChars.ReplaceAllString(strings.ToLower(question), "_")
	slug = strings.Trim(slug, "_")
	if len(slug) > 40 {
		slug = slug[:40]
	}
	if slug == "" {
		slug = "query"
	}
	return fmt.Sprintf("%s_%s.csv", slug, now.Format("20060102_150405"))
}

// Export writes one CSV file with a header row and returns its
// descriptor.
func (e *CSVExporter) Export(question string, columns []string, rows [][]any) (*ExportRecord, error) {
	filename := exportFilename(question, time.Now())
	path := filepath.Join(e.Dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("failed to write export header: %w", err)
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i := range columns {
			if i < len(row) && row[i] != nil {
				record[i] = fmt.Sprintf("%v", row[i])
			} else {
				record[i] = ""
			}
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush export file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat export file: %w", err)
	}

	return &ExportRecord{
		Filename:  filename,
		Path:      path,
		SizeBytes: info.Size(),
	}, nil
}

// humanSize formats a byte count for display.
func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGT"[exp])
}
