package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/npoharvest/internal/model"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrNoRecords is returned by ExportCSV when the job accepted nothing.
var ErrNoRecords = errors.New("no records to export")

// csvHeader is the column layout of exported files.
var csvHeader = []string{"name", "region", "date"}

// CSVFileName returns the export file name for region.
func CSVFileName(region model.Region) string {
	return string(region) + "_valid_social_orgs.csv"
}

// ExportCSV writes the accepted records of report to dir and returns the
// file path. The file is UTF-8 with a byte order mark so that spreadsheet
// tools detect the encoding of the Chinese text.
//
// Nothing is written when the job accepted no records; ErrNoRecords is
// returned instead.
func ExportCSV(dir string, report *model.JobReport) (string, error) {
	if report.Accepted() == 0 {
		return "", ErrNoRecords
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, CSVFileName(report.Filter.Region))
	f, err := os.Create(path) //nolint:gosec // path is built from a validated region
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := writeRecords(f, report.Records); err != nil {
		_ = f.Close() //nolint:errcheck // already failing
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

func writeRecords(f *os.File, records []model.Record) error {
	bom := transform.NewWriter(f, unicode.UTF8BOM.NewEncoder())
	w := csv.NewWriter(bom)

	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write([]string{r.Name, string(r.Region), r.DeclaredDate}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return bom.Close()
}
