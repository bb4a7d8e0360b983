package model

import "time"

// JobReport is the outcome of one crawl job, including partial results when
// the job degraded or was cancelled.
type JobReport struct {
	// Filter is the filter the job ran with.
	Filter FilterSpec `json:"filter"`

	// Cutoff is the date a validity window must reach to be accepted.
	Cutoff time.Time `json:"cutoff"`

	// Records are the accepted records in page-then-position order.
	Records []Record `json:"records"`

	// PagesVisited counts list pages that were read.
	PagesVisited int `json:"pages_visited"`

	// PagesAbandoned counts pages left early because the list view could not
	// be restored after a detail navigation.
	PagesAbandoned int `json:"pages_abandoned"`

	// ItemsInspected counts items whose detail view was checked.
	ItemsInspected int `json:"items_inspected"`

	// ItemsRejected counts inspected items that were not accepted.
	ItemsRejected int `json:"items_rejected"`

	// ChallengesResolved counts anti-automation challenges the operator cleared.
	ChallengesResolved int `json:"challenges_resolved"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// OutputFile is the CSV file the records were written to, if any.
	OutputFile string `json:"output_file,omitempty"`

	// Cancelled is set when the job context ended before the crawl finished.
	Cancelled bool `json:"cancelled"`

	// Error is the error that stopped the job, if any. It is not serialized;
	// ErrorMessage carries the text.
	Error        error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`
}

// NewJobReport creates an empty report for filter.
func NewJobReport(filter FilterSpec, cutoff time.Time) *JobReport {
	return &JobReport{
		Filter:  filter,
		Cutoff:  cutoff,
		Records: make([]Record, 0),
	}
}

// Accepted returns the number of accepted records.
func (r *JobReport) Accepted() int {
	return len(r.Records)
}

// Failed reports whether the job stopped on an error.
func (r *JobReport) Failed() bool {
	return r.Error != nil || r.ErrorMessage != ""
}

// SetError records err as the job's terminal error.
func (r *JobReport) SetError(err error) {
	if err == nil {
		return
	}
	r.Error = err
	r.ErrorMessage = err.Error()
}

// Duration returns how long the job ran.
func (r *JobReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
