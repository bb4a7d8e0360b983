package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/npoharvest/internal/model"
)

// MarkdownWriter outputs job summaries in Markdown, for sharing the result
// of a crawl.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary of one job.
func (w *MarkdownWriter) Write(report *model.JobReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Registry crawl: " + report.Filter.Region.String())
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Keyword", report.Filter.Keyword},
			{"Cutoff", report.Cutoff.Format(time.DateOnly)},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(time.Second).String()},
			{"Pages visited", strconv.Itoa(report.PagesVisited)},
			{"Items inspected", strconv.Itoa(report.ItemsInspected)},
			{"Challenges resolved", strconv.Itoa(report.ChallengesResolved)},
			{"Status", markdownStatus(report)},
		},
	})
	md.PlainText("")

	if report.ItemsInspected > 0 {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
	w.writeRecords(md, report)

	return len(md.String()), md.Build()
}

// WriteBatch outputs a table with one row per job.
func (w *MarkdownWriter) WriteBatch(reports []*model.JobReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	s := Summarize(reports)

	md.H1("Batch summary")
	md.PlainText("")

	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		if r == nil {
			continue
		}
		file := r.OutputFile
		if file == "" {
			file = "-"
		}
		rows = append(rows, []string{
			r.Filter.Region.String(),
			string(StatusOf(r)),
			strconv.Itoa(r.Accepted()),
			strconv.Itoa(r.PagesVisited),
			file,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Region", "Status", "Accepted", "Pages", "File"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.Failed > 0 {
		md.Warningf("%d of %d job(s) failed.", s.Failed, s.Jobs)
	} else {
		md.Tip(fmt.Sprintf("%d record(s) accepted across %d job(s).", s.Records, s.Jobs))
	}
	md.PlainText("")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.JobReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Inspected items"),
		piechart.WithShowData(true),
	)
	if n := report.Accepted(); n > 0 {
		chart.LabelAndIntValue("Accepted", uint64(n))
	}
	if report.ItemsRejected > 0 {
		chart.LabelAndIntValue("Rejected", uint64(report.ItemsRejected))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.JobReport) {
	switch StatusOf(report) {
	case StatusFailed:
		md.Cautionf("The job stopped on an error: %s. %d record(s) were kept.",
			report.ErrorMessage, report.Accepted())
	case StatusCancelled:
		md.Warningf("The job was cancelled. %d record(s) were kept.", report.Accepted())
	default:
		if report.PagesAbandoned > 0 {
			md.Importantf("%d page(s) were abandoned because the listing could not be restored.",
				report.PagesAbandoned)
		} else {
			md.Tip("The crawl walked every page.")
		}
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, report *model.JobReport) {
	md.H2("Accepted records")
	md.PlainText("")

	if report.Accepted() == 0 {
		md.PlainText("No record reached the cutoff.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Records))
	for i, r := range report.Records {
		rows[i] = []string{strconv.Itoa(i + 1), r.Name, r.DeclaredDate}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Name", "Date"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.OutputFile != "" {
		md.PlainTextf("Exported to `%s`.", report.OutputFile)
		md.PlainText("")
	}
}

func markdownStatus(report *model.JobReport) string {
	switch StatusOf(report) {
	case StatusFailed:
		return "❌ Error"
	case StatusCancelled:
		return "⚠️ Cancelled (partial results)"
	default:
		return "✅ Complete"
	}
}
