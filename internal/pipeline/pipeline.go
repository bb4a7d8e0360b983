package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/npoharvest/internal/model"
)

// Step is one stage of a job. Steps are executed in sequence, with each
// step receiving the report accumulated by the previous ones.
type Step interface {
	// Do executes the step. It returns an error if the job cannot go on;
	// non-critical problems are recorded in the report and nil is returned.
	Do(ctx context.Context, report *model.JobReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Finalizer marks steps that still run after an earlier step failed or the
// job was cancelled. They must tolerate a partial report.
type Finalizer interface {
	Step
	Final()
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger

	// continueOnError keeps executing every step after one fails.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to execute every step even
// when one fails. By default only Finalizer steps run after a failure.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0)}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in sequence.
//
// Cancellation is checked before each step and marks the report as
// cancelled. Once the job is cancelled, or a step failed without
// WithContinueOnError, only Finalizer steps are run. Finalizers run with a
// context that is no longer cancelled so they can save partial results.
//
// Returns the first step error, or ctx.Err() if the job was cancelled
// between steps.
func (p *Pipeline) Execute(ctx context.Context, report *model.JobReport) error {
	var firstErr error
	stopped := false

	for _, step := range p.steps {
		if !stopped && ctx.Err() != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			report.Cancelled = true
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			stopped = true
		}

		stepCtx := ctx
		if stopped {
			if _, ok := step.(Finalizer); !ok {
				p.logger.Debug("skipping step", "step", step.Name())
				continue
			}
			stepCtx = context.WithoutCancel(ctx)
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"region", report.Filter.Region,
		)

		if err := step.Do(stepCtx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"region", report.Filter.Region,
				"error", err,
			)
			if !report.Failed() {
				report.SetError(err)
			}
			if firstErr == nil {
				firstErr = err
			}
			if !p.continueOnError {
				stopped = true
			}
		}

		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}

	return firstErr
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
