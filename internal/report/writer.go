package report

import (
	"io"

	"github.com/nao1215/npoharvest/internal/model"
)

// Writer writes job summaries in one output format.
type Writer interface {
	// Write outputs the summary of a single job.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.JobReport) (int, error)

	// WriteBatch outputs the summary of a batch of jobs.
	WriteBatch(reports []*model.JobReport) (int, error)
}

// MultiWriter writes to multiple Writers in order.
// It stops on the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the job summary to every Writer.
// Returns the total bytes written across all writers.
func (m *MultiWriter) Write(report *model.JobReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteBatch outputs the batch summary to every Writer.
func (m *MultiWriter) WriteBatch(reports []*model.JobReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteBatch(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Status is the outcome class of a job.
type Status string

const (
	// StatusComplete means the crawl walked every page.
	StatusComplete Status = "complete"
	// StatusCancelled means the job was interrupted; its records are partial.
	StatusCancelled Status = "cancelled"
	// StatusFailed means the job stopped on an error; its records may be partial.
	StatusFailed Status = "failed"
)

// StatusOf classifies report.
func StatusOf(report *model.JobReport) Status {
	switch {
	case report.Failed():
		return StatusFailed
	case report.Cancelled:
		return StatusCancelled
	default:
		return StatusComplete
	}
}

// BatchSummary counts job outcomes across a batch.
type BatchSummary struct {
	Jobs      int `json:"jobs"`
	Complete  int `json:"complete"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
	Records   int `json:"records"`
}

// Summarize counts the outcomes of reports. Nil entries, left by jobs that
// never started, count as failed.
func Summarize(reports []*model.JobReport) BatchSummary {
	s := BatchSummary{Jobs: len(reports)}
	for _, r := range reports {
		if r == nil {
			s.Failed++
			continue
		}
		s.Records += r.Accepted()
		switch StatusOf(r) {
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		default:
			s.Complete++
		}
	}
	return s
}

// AllFailed reports whether no job in the batch produced a usable result.
func (s BatchSummary) AllFailed() bool {
	return s.Jobs > 0 && s.Failed == s.Jobs
}
