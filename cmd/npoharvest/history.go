package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/nao1215/npoharvest/internal/config"
	"github.com/nao1215/npoharvest/internal/database"
	"github.com/nao1215/npoharvest/internal/model"
	"github.com/nao1215/npoharvest/internal/report"
)

// historyTimeLayout formats job start times in the local zone.
const historyTimeLayout = "2006-01-02 15:04"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [region]",
		Short: "Show stored crawl jobs and compare their results",
		Long: `History displays the crawl jobs stored in the history database.

Every crawl stores its counters and accepted records unless --no-db was given.
History lists those jobs, shows the records of one job, or compares the two
latest jobs of a region to show which organizations appeared or disappeared.

Examples:
  # List all stored jobs
  npoharvest history

  # List the jobs of one region
  npoharvest history 北京

  # Show the records of a job by ID
  npoharvest history --job 12

  # Compare the latest two jobs of a region
  npoharvest history --diff 上海`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("job", "i", 0,
		"Show the records of the job with this ID")
	cmd.Flags().BoolP("diff", "d", false,
		"Compare the latest two jobs of the region")
	cmd.Flags().String("db-dir", "",
		"Directory of the history database (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	jobID, err := cmd.Flags().GetInt64("job")
	if err != nil {
		return err
	}
	diff, err := cmd.Flags().GetBool("diff")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	// Validate arguments before opening the database.
	var region model.Region
	if len(args) == 1 {
		if region, err = model.ParseRegion(args[0]); err != nil {
			return err
		}
	}
	if diff && region == "" {
		return errors.New("--diff requires a region")
	}
	if jobID < 0 {
		return fmt.Errorf("invalid job ID: %d", jobID)
	}

	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case jobID > 0:
		return showJob(ctx, out, db, jobID)
	case diff:
		return showDiff(ctx, out, db, region)
	default:
		return listJobs(ctx, out, db, region)
	}
}

// listJobs prints the stored jobs of region, or of every region.
func listJobs(ctx context.Context, w io.Writer, db *database.JobDB, region model.Region) error {
	jobs, err := db.ListJobs(ctx, region)
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		if region != "" {
			fmt.Fprintf(w, "No crawl jobs found for %s\n", region)
		} else {
			fmt.Fprintln(w, "No crawl jobs found in the database.")
		}
		fmt.Fprintln(w, "\nUse 'npoharvest crawl <region>' to crawl the registry.")
		return nil
	}

	if region != "" {
		fmt.Fprintf(w, "Crawl history for %s (%d jobs):\n\n", region, len(jobs))
	} else {
		fmt.Fprintf(w, "Crawl history (%d jobs):\n\n", len(jobs))
	}
	fmt.Fprintf(w, "  %-6s  %-16s  %s  %-8s  %-10s  %7s  %8s\n",
		"ID", "Started", runewidth.FillRight("Region", regionCells), "Keyword", "Status", "Records", "Pages")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 84))
	for _, job := range jobs {
		fmt.Fprintf(w, "  %-6d  %-16s  %s  %s  %-10s  %7d  %8d\n",
			job.ID,
			job.StartedAt.Local().Format(historyTimeLayout),
			runewidth.FillRight(job.Region.String(), regionCells),
			runewidth.FillRight(job.Keyword, 8),
			jobStatus(job),
			job.Accepted,
			job.PagesVisited,
		)
	}
	fmt.Fprintln(w, "\nUse 'npoharvest history --job <ID>' to see the records of a job.")
	return nil
}

// showJob prints one job with its records.
func showJob(ctx context.Context, w io.Writer, db *database.JobDB, id int64) error {
	job, err := db.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %d not found", id)
	}
	records, err := db.GetJobRecords(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Job %d: %s, keyword %s, cutoff %s\n",
		job.ID, job.Region, job.Keyword, job.Cutoff.Format(time.DateOnly))
	fmt.Fprintf(w, "Started:  %s (%s)\n",
		job.StartedAt.Local().Format(historyTimeLayout),
		job.FinishedAt.Sub(job.StartedAt).Round(time.Second))
	fmt.Fprintf(w, "Status:   %s\n", jobStatus(*job))
	if job.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", job.Error)
	}
	fmt.Fprintf(w, "Pages:    %d visited, %d abandoned\n", job.PagesVisited, job.PagesAbandoned)
	fmt.Fprintf(w, "Items:    %d inspected, %d accepted, %d rejected\n",
		job.ItemsInspected, job.Accepted, job.ItemsRejected)
	if job.OutputFile != "" {
		fmt.Fprintf(w, "CSV:      %s\n", job.OutputFile)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "\nNo records accepted.")
		return nil
	}
	fmt.Fprintf(w, "\nRecords (%d):\n\n", len(records))
	printRecords(w, "", records)
	return nil
}

// showDiff compares the latest two jobs of region.
func showDiff(ctx context.Context, w io.Writer, db *database.JobDB, region model.Region) error {
	jobs, err := db.LatestJobs(ctx, region, 2)
	if err != nil {
		return err
	}
	if len(jobs) < 2 {
		return fmt.Errorf("need at least two crawl jobs of %s to compare, found %d", region, len(jobs))
	}
	newer, older := jobs[0], jobs[1]

	newerRecords, err := db.GetJobRecords(ctx, newer.ID)
	if err != nil {
		return err
	}
	olderRecords, err := db.GetJobRecords(ctx, older.ID)
	if err != nil {
		return err
	}
	added, dropped := database.Diff(olderRecords, newerRecords)

	fmt.Fprintf(w, "Comparing %s jobs:\n", region)
	fmt.Fprintf(w, "  Previous: #%d  %s  %d records\n",
		older.ID, older.StartedAt.Local().Format(historyTimeLayout), len(olderRecords))
	fmt.Fprintf(w, "  Current:  #%d  %s  %d records\n",
		newer.ID, newer.StartedAt.Local().Format(historyTimeLayout), len(newerRecords))

	if older.Keyword != newer.Keyword || !older.Cutoff.Equal(newer.Cutoff) {
		fmt.Fprintf(w, "\nWarning: the jobs used different filters (%s / %s, %s / %s)\n",
			older.Keyword, newer.Keyword,
			older.Cutoff.Format(time.DateOnly), newer.Cutoff.Format(time.DateOnly))
	}

	if len(added) == 0 && len(dropped) == 0 {
		fmt.Fprintln(w, "\nNo changes.")
		return nil
	}
	if len(added) > 0 {
		fmt.Fprintf(w, "\nNew records (%d):\n", len(added))
		printRecords(w, "+ ", added)
	}
	if len(dropped) > 0 {
		fmt.Fprintf(w, "\nDropped records (%d):\n", len(dropped))
		printRecords(w, "- ", dropped)
	}
	return nil
}

// printRecords prints one record per line with a marker prefix.
func printRecords(w io.Writer, marker string, records []database.StoredRecord) {
	for _, r := range records {
		date := r.DeclaredDate
		if date == "" {
			date = "-"
		}
		fmt.Fprintf(w, "  %s%-4d  %s  %s\n", marker, r.Position+1, date, r.Name)
	}
}

// jobStatus classifies a stored job like report.StatusOf does a live one.
func jobStatus(job database.JobSummary) report.Status {
	switch {
	case job.Error != "":
		return report.StatusFailed
	case job.Cancelled:
		return report.StatusCancelled
	default:
		return report.StatusComplete
	}
}
