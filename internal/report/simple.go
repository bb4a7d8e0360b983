package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/npoharvest/internal/model"
)

// SimpleWriter outputs human-readable text summaries for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose lists every accepted record.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the record listing.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary of one job.
func (w *SimpleWriter) Write(report *model.JobReport) (int, error) {
	var sb strings.Builder

	w.writeRule(&sb, "=")
	fmt.Fprintf(&sb, "Region:      %s\n", report.Filter.Region)
	fmt.Fprintf(&sb, "Keyword:     %s\n", report.Filter.Keyword)
	fmt.Fprintf(&sb, "Cutoff:      %s\n", report.Cutoff.Format(time.DateOnly))
	fmt.Fprintf(&sb, "Status:      %s\n", statusLine(report))
	w.writeRule(&sb, "-")
	fmt.Fprintf(&sb, "  Pages visited:        %d\n", report.PagesVisited)
	if report.PagesAbandoned > 0 {
		fmt.Fprintf(&sb, "  Pages abandoned:      %d\n", report.PagesAbandoned)
	}
	fmt.Fprintf(&sb, "  Items inspected:      %d\n", report.ItemsInspected)
	fmt.Fprintf(&sb, "  Accepted:             %d\n", report.Accepted())
	fmt.Fprintf(&sb, "  Rejected:             %d\n", report.ItemsRejected)
	if report.ChallengesResolved > 0 {
		fmt.Fprintf(&sb, "  Challenges resolved:  %d\n", report.ChallengesResolved)
	}
	fmt.Fprintf(&sb, "  Duration:             %s\n", report.Duration().Round(time.Second))
	if report.OutputFile != "" {
		fmt.Fprintf(&sb, "  Output file:          %s\n", report.OutputFile)
	}

	if w.verbose && report.Accepted() > 0 {
		w.writeRule(&sb, "-")
		for i, r := range report.Records {
			fmt.Fprintf(&sb, "  %3d. %s (%s)\n", i+1, r.Name, r.DeclaredDate)
		}
	}
	w.writeRule(&sb, "=")

	return io.WriteString(w.output, sb.String())
}

// WriteBatch outputs one line per job and the batch totals.
func (w *SimpleWriter) WriteBatch(reports []*model.JobReport) (int, error) {
	var sb strings.Builder
	s := Summarize(reports)

	w.writeRule(&sb, "=")
	sb.WriteString("BATCH SUMMARY\n")
	w.writeRule(&sb, "-")
	for _, r := range reports {
		if r == nil {
			continue
		}
		line := fmt.Sprintf("  %-10s %-10s %5d", r.Filter.Region.Short(), StatusOf(r), r.Accepted())
		if r.OutputFile != "" {
			line += "  " + r.OutputFile
		}
		sb.WriteString(line + "\n")
	}
	w.writeRule(&sb, "-")
	fmt.Fprintf(&sb, "  Jobs: %d  complete: %d  cancelled: %d  failed: %d  records: %d\n",
		s.Jobs, s.Complete, s.Cancelled, s.Failed, s.Records)
	w.writeRule(&sb, "=")

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeRule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 60))
	sb.WriteString("\n")
}

// statusLine describes the job outcome in one line.
func statusLine(report *model.JobReport) string {
	switch StatusOf(report) {
	case StatusFailed:
		return "ERROR - " + report.ErrorMessage
	case StatusCancelled:
		return "CANCELLED (partial results)"
	default:
		return "Complete"
	}
}
