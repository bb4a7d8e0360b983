package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/npoharvest/internal/model"
)

// createTestReport creates a finished job with two accepted records.
func createTestReport() *model.JobReport {
	f := model.FilterSpec{Region: "北京市", Keyword: "数据"}
	report := model.NewJobReport(f, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	report.Records = []model.Record{
		{Name: "北京数据科技协会", Region: "北京市", DeclaredDate: "2021-05-01"},
		{Name: "北京大数据研究会", Region: "北京市", DeclaredDate: "2019-11-20"},
	}
	report.PagesVisited = 2
	report.ItemsInspected = 5
	report.ItemsRejected = 3
	report.StartedAt = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	report.FinishedAt = report.StartedAt.Add(90 * time.Second)
	return report
}

func TestExportCSV(t *testing.T) {
	t.Parallel()

	t.Run("writes BOM, header and records in order", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "out")
		path, err := ExportCSV(dir, createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if filepath.Base(path) != "北京市_valid_social_orgs.csv" {
			t.Errorf("unexpected file name %q", path)
		}

		data, err := os.ReadFile(path) //nolint:gosec // test file
		if err != nil {
			t.Fatalf("failed to read export: %v", err)
		}
		if !bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
			t.Fatalf("expected UTF-8 BOM, got % x", data[:3])
		}

		rows, err := csv.NewReader(bytes.NewReader(data[3:])).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		want := [][]string{
			{"name", "region", "date"},
			{"北京数据科技协会", "北京市", "2021-05-01"},
			{"北京大数据研究会", "北京市", "2019-11-20"},
		}
		if len(rows) != len(want) {
			t.Fatalf("expected %d rows, got %d", len(want), len(rows))
		}
		for i := range want {
			if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
				t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
			}
		}
	})

	t.Run("skips jobs without records", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		report := model.NewJobReport(model.FilterSpec{Region: "上海市", Keyword: "数据"}, time.Now())
		if _, err := ExportCSV(dir, report); !errors.Is(err, ErrNoRecords) {
			t.Fatalf("expected ErrNoRecords, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, CSVFileName("上海市"))); !os.IsNotExist(err) {
			t.Error("expected no file to be written")
		}
	})

	t.Run("quotes names containing commas", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Records = []model.Record{{Name: "协会,分会", Region: "北京市", DeclaredDate: "2020-01-01"}}
		path, err := ExportCSV(t.TempDir(), report)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, err := os.ReadFile(path) //nolint:gosec // test file
		if err != nil {
			t.Fatalf("failed to read export: %v", err)
		}
		if !strings.Contains(string(data), `"协会,分会"`) {
			t.Errorf("expected quoted name, got %q", data)
		}
	})
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes counters and file location", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.OutputFile = "/tmp/北京市_valid_social_orgs.csv"

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{"北京市", "2025-12-31", "Complete", "Accepted:             2", report.OutputFile} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
		if strings.Contains(output, "北京数据科技协会") {
			t.Error("records should only be listed in verbose mode")
		}
	})

	t.Run("verbose lists records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "北京数据科技协会 (2021-05-01)") {
			t.Errorf("expected record listing:\n%s", buf.String())
		}
	})

	t.Run("failed job shows the error", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.SetError(errors.New("operator input closed"))

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "ERROR - operator input closed") {
			t.Errorf("expected error status:\n%s", buf.String())
		}
	})

	t.Run("batch summary", func(t *testing.T) {
		t.Parallel()

		failed := model.NewJobReport(model.FilterSpec{Region: "上海市", Keyword: "数据"}, time.Now())
		failed.SetError(errors.New("boom"))

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteBatch([]*model.JobReport{createTestReport(), failed}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Jobs: 2  complete: 1  cancelled: 0  failed: 1  records: 2") {
			t.Errorf("unexpected batch totals:\n%s", buf.String())
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes table, chart and records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{"# Registry crawl: 北京市", "```mermaid", "Accepted", "Rejected", "北京大数据研究会"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("no chart when nothing was inspected", func(t *testing.T) {
		t.Parallel()

		report := model.NewJobReport(model.FilterSpec{Region: "上海市", Keyword: "数据"}, time.Now())
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "mermaid") {
			t.Error("expected no chart")
		}
		if !strings.Contains(buf.String(), "No record reached the cutoff.") {
			t.Error("expected empty record notice")
		}
	})

	t.Run("batch table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteBatch([]*model.JobReport{createTestReport()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"Region", "北京市", "complete", "2 record(s) accepted across 1 job(s)."} {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("expected output to contain %q:\n%s", want, buf.String())
			}
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("single report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithVersion("v1.2.3")).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var doc struct {
			Version string `json:"version"`
			Status  string `json:"status"`
			Report  struct {
				Filter  model.FilterSpec `json:"filter"`
				Records []model.Record   `json:"records"`
			} `json:"report"`
		}
		if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if doc.Version != "v1.2.3" || doc.Status != "complete" {
			t.Errorf("unexpected metadata: %+v", doc)
		}
		if doc.Report.Filter.Region != "北京市" || len(doc.Report.Records) != 2 {
			t.Errorf("unexpected report: %+v", doc.Report)
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"status\"") {
			t.Errorf("expected indented output:\n%s", buf.String())
		}
	})

	t.Run("batch skips jobs that never started", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteBatch([]*model.JobReport{createTestReport(), nil}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var doc JSONBatch
		if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(doc.Jobs) != 1 || doc.Summary.Jobs != 2 || doc.Summary.Failed != 1 {
			t.Errorf("unexpected batch: %+v", doc.Summary)
		}
	})
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var text, js bytes.Buffer
	mw := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))

	n, err := mw.Write(createTestReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != text.Len()+js.Len() {
		t.Errorf("expected %d bytes, got %d", text.Len()+js.Len(), n)
	}
	if text.Len() == 0 || js.Len() == 0 {
		t.Error("expected both writers to receive output")
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	cancelled := createTestReport()
	cancelled.Cancelled = true
	failed := model.NewJobReport(model.FilterSpec{Region: "上海市", Keyword: "数据"}, time.Now())
	failed.SetError(errors.New("boom"))

	tests := []struct {
		name      string
		reports   []*model.JobReport
		want      BatchSummary
		allFailed bool
	}{
		{name: "empty batch", reports: nil, want: BatchSummary{}},
		{
			name:    "mixed outcomes",
			reports: []*model.JobReport{createTestReport(), cancelled, failed},
			want:    BatchSummary{Jobs: 3, Complete: 1, Cancelled: 1, Failed: 1, Records: 4},
		},
		{
			name:      "every job failed",
			reports:   []*model.JobReport{failed, nil},
			want:      BatchSummary{Jobs: 2, Failed: 2},
			allFailed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Summarize(tt.reports)
			if got != tt.want {
				t.Errorf("Summarize() = %+v, want %+v", got, tt.want)
			}
			if got.AllFailed() != tt.allFailed {
				t.Errorf("AllFailed() = %v, want %v", got.AllFailed(), tt.allFailed)
			}
		})
	}
}
