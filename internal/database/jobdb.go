package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/npoharvest/internal/model"
)

// FileName is the database file name inside the data directory.
const FileName = "npoharvest.db"

// JobDB stores crawl jobs and their accepted records.
type JobDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures JobDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the job database in dbDir.
func Open(dbDir string, opts Options) (*JobDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		mode = "rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode+"&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	jdb := &JobDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := jdb.createTables(); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return jdb, nil
}

// Path returns the database file path.
func (j *JobDB) Path() string {
	return j.dbPath
}

// Close closes the database connection.
func (j *JobDB) Close() error {
	return j.db.Close()
}

func (j *JobDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		region TEXT NOT NULL,
		keyword TEXT NOT NULL,
		cutoff TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		pages_visited INTEGER NOT NULL DEFAULT 0,
		pages_abandoned INTEGER NOT NULL DEFAULT 0,
		items_inspected INTEGER NOT NULL DEFAULT 0,
		items_rejected INTEGER NOT NULL DEFAULT 0,
		accepted INTEGER NOT NULL DEFAULT 0,
		challenges_resolved INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		output_file TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_region ON crawl_jobs(region);
	CREATE INDEX IF NOT EXISTS idx_jobs_started ON crawl_jobs(started_at);

	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id INTEGER NOT NULL REFERENCES crawl_jobs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		fingerprint TEXT NOT NULL,
		name TEXT NOT NULL,
		region TEXT NOT NULL,
		declared_date TEXT,
		UNIQUE(job_id, fingerprint)
	);

	CREATE INDEX IF NOT EXISTS idx_records_job ON records(job_id);
	CREATE INDEX IF NOT EXISTS idx_records_fingerprint ON records(fingerprint);
	`
	_, err := j.db.ExecContext(context.Background(), schema)
	return err
}

// JobSummary is the stored metadata of one job.
type JobSummary struct {
	ID                 int64
	Region             model.Region
	Keyword            string
	Cutoff             time.Time
	StartedAt          time.Time
	FinishedAt         time.Time
	PagesVisited       int
	PagesAbandoned     int
	ItemsInspected     int
	ItemsRejected      int
	Accepted           int
	ChallengesResolved int
	Cancelled          bool
	Error              string
	OutputFile         string
}

// StoredRecord is an accepted record with its position in the job.
type StoredRecord struct {
	model.Record

	// Position is the 0-based index in the job's page-then-position order.
	Position    int
	Fingerprint string
}

// SaveJobReport stores report and its records in one transaction and
// returns the job ID. A record repeated within the job is stored once.
func (j *JobDB) SaveJobReport(ctx context.Context, report *model.JobReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_jobs (
		region, keyword, cutoff, started_at, finished_at,
		pages_visited, pages_abandoned, items_inspected, items_rejected,
		accepted, challenges_resolved, cancelled, error, output_file, report_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(report.Filter.Region),
		report.Filter.Keyword,
		report.Cutoff.Format(time.DateOnly),
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		report.PagesVisited,
		report.PagesAbandoned,
		report.ItemsInspected,
		report.ItemsRejected,
		report.Accepted(),
		report.ChallengesResolved,
		boolToInt(report.Cancelled),
		report.ErrorMessage,
		report.OutputFile,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save job: %w", err)
	}
	jobID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read job id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO records (job_id, position, fingerprint, name, region, declared_date)
	VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range report.Records {
		if _, err := stmt.ExecContext(ctx, jobID, i, r.Fingerprint(), r.Name, string(r.Region), r.DeclaredDate); err != nil {
			return 0, fmt.Errorf("failed to save record %q: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit job: %w", err)
	}
	return jobID, nil
}

const jobColumns = `
	id, region, keyword, cutoff, started_at, finished_at,
	pages_visited, pages_abandoned, items_inspected, items_rejected,
	accepted, challenges_resolved, cancelled, error, output_file`

// ListJobs returns the stored jobs of region, newest first.
// An empty region lists the jobs of every region.
func (j *JobDB) ListJobs(ctx context.Context, region model.Region) ([]JobSummary, error) {
	return j.queryJobs(ctx, region, -1)
}

// LatestJobs returns up to n jobs of region, newest first.
func (j *JobDB) LatestJobs(ctx context.Context, region model.Region, n int) ([]JobSummary, error) {
	if n <= 0 {
		return nil, nil
	}
	return j.queryJobs(ctx, region, n)
}

// queryJobs lists jobs; a negative limit means no limit.
func (j *JobDB) queryJobs(ctx context.Context, region model.Region, limit int) ([]JobSummary, error) {
	query := `SELECT ` + jobColumns + ` FROM crawl_jobs
	WHERE (? = '' OR region = ?)
	ORDER BY started_at DESC, id DESC
	LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, string(region), string(region), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobSummary
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetJob returns the job with id, or nil if there is none.
func (j *JobDB) GetJob(ctx context.Context, id int64) (*JobSummary, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM crawl_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJobReport returns the full stored report of job id, or nil if there
// is none.
func (j *JobDB) GetJobReport(ctx context.Context, id int64) (*model.JobReport, error) {
	var reportJSON string
	err := j.db.QueryRowContext(ctx, `SELECT report_json FROM crawl_jobs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job report: %w", err)
	}

	var report model.JobReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// GetJobRecords returns the records of job id in their original order.
func (j *JobDB) GetJobRecords(ctx context.Context, id int64) ([]StoredRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
	SELECT position, fingerprint, name, region, declared_date
	FROM records WHERE job_id = ?
	ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}
	defer rows.Close()

	var records []StoredRecord
	for rows.Next() {
		var (
			r        StoredRecord
			region   string
			declared sql.NullString
		)
		if err := rows.Scan(&r.Position, &r.Fingerprint, &r.Name, &region, &declared); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Region = model.Region(region)
		r.DeclaredDate = declared.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListRegions returns every region with at least one stored job.
func (j *JobDB) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT DISTINCT region FROM crawl_jobs ORDER BY region`)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	defer rows.Close()

	var regions []model.Region
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		regions = append(regions, model.Region(r))
	}
	return regions, rows.Err()
}

// Diff compares the records of two jobs by fingerprint. added holds the
// records only in newer, dropped those only in older, both in their
// original order.
func Diff(older, newer []StoredRecord) (added, dropped []StoredRecord) {
	inOlder := make(map[string]bool, len(older))
	for _, r := range older {
		inOlder[r.Fingerprint] = true
	}
	inNewer := make(map[string]bool, len(newer))
	for _, r := range newer {
		inNewer[r.Fingerprint] = true
		if !inOlder[r.Fingerprint] {
			added = append(added, r)
		}
	}
	for _, r := range older {
		if !inNewer[r.Fingerprint] {
			dropped = append(dropped, r)
		}
	}
	return added, dropped
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (JobSummary, error) {
	var (
		job                JobSummary
		region, cutoff     string
		started, finished  string
		cancelled          int
		errMsg, outputFile sql.NullString
	)
	err := row.Scan(
		&job.ID, &region, &job.Keyword, &cutoff, &started, &finished,
		&job.PagesVisited, &job.PagesAbandoned, &job.ItemsInspected, &job.ItemsRejected,
		&job.Accepted, &job.ChallengesResolved, &cancelled, &errMsg, &outputFile,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return JobSummary{}, err
	}
	if err != nil {
		return JobSummary{}, fmt.Errorf("failed to scan job: %w", err)
	}

	job.Region = model.Region(region)
	job.Cutoff, _ = time.Parse(time.DateOnly, cutoff) //nolint:errcheck // written by SaveJobReport
	job.StartedAt = parseTimestamp(started)
	job.FinishedAt = parseTimestamp(finished)
	job.Cancelled = cancelled != 0
	job.Error = errMsg.String
	job.OutputFile = outputFile.String
	return job, nil
}

// timestampLayout keeps a fixed width so that stored timestamps sort
// lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses s with the known formats and returns the zero time
// if none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
