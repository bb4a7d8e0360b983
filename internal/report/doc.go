// Package report writes crawl job results.
//
// Job summaries are written through the Writer interface:
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: Markdown with a mermaid chart of accepted and rejected items
//   - JSONWriter: JSON for other tools
//
// Accepted records are exported with ExportCSV, one file per job.
package report
