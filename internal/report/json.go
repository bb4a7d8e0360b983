package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/npoharvest/internal/model"
)

// JSONWriter outputs job summaries as JSON for other tools.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed output.
	indent       bool
	indentPrefix string
	indentString string

	// version is the npoharvest version stamped on every document.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion stamps documents with the tool version.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps one job report with output metadata.
type JSONReport struct {
	Version string           `json:"version,omitempty"`
	Status  Status           `json:"status"`
	Report  *model.JobReport `json:"report"`
}

// JSONBatch wraps the reports of a batch with its totals.
type JSONBatch struct {
	Version string             `json:"version,omitempty"`
	Summary BatchSummary       `json:"summary"`
	Jobs    []*model.JobReport `json:"jobs"`
}

// Write outputs one job report.
func (w *JSONWriter) Write(report *model.JobReport) (int, error) {
	return w.writeJSON(JSONReport{
		Version: w.version,
		Status:  StatusOf(report),
		Report:  report,
	})
}

// WriteBatch outputs all job reports with the batch totals.
func (w *JSONWriter) WriteBatch(reports []*model.JobReport) (int, error) {
	jobs := make([]*model.JobReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			jobs = append(jobs, r)
		}
	}
	return w.writeJSON(JSONBatch{
		Version: w.version,
		Summary: Summarize(reports),
		Jobs:    jobs,
	})
}

// writeJSON marshals v and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
