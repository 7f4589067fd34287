package verification

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// ScenarioResult records one scenario's outcome
type ScenarioResult struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Passed reports whether the scenario succeeded
func (r ScenarioResult) Passed() bool {
	return r.Err == nil
}

// GroupResult records one group's outcomes
type GroupResult struct {
	Name     string
	Critical bool
	Results  []ScenarioResult
}

// Failures counts failed scenarios in the group
func (g GroupResult) Failures() int {
	n := 0
	for _, result := range g.Results {
		if !result.Passed() {
			n++
		}
	}
	return n
}

// Report is the outcome of a full harness run
type Report struct {
	Groups   []GroupResult
	Started  time.Time
	Finished time.Time
}

// CriticalFailures counts failures in critical groups. Any non-zero
// count means the system must not ship.
func (r *Report) CriticalFailures() int {
	n := 0
	for _, group := range r.Groups {
		if group.Critical {
			n += group.Failures()
		}
	}
	return n
}

// TotalFailures counts failures across all groups
func (r *Report) TotalFailures() int {
	n := 0
	for _, group := range r.Groups {
		n += group.Failures()
	}
	return n
}

// Passed reports whether every critical scenario succeeded
func (r *Report) Passed() bool {
	return r.CriticalFailures() == 0
}

// Runner executes the scenario suite. Scenarios share the environment's
// fixtures, so execution is strictly sequential; running groups in
// parallel would interfere through the shared store.
type Runner struct {
	env    *Env
	logger *zap.Logger
}

// NewRunner creates a new harness runner
func NewRunner(env *Env, logger *zap.Logger) *Runner {
	return &Runner{env: env, logger: logger}
}

// Run executes every scenario group in order and returns the report
func (r *Runner) Run(ctx context.Context) *Report {
	report := &Report{Started: time.Now()}

	for _, group := range Groups() {
		groupResult := GroupResult{Name: group.Name, Critical: group.Critical}

		for _, scenario := range group.Scenarios {
			start := time.Now()
			err := scenario.Run(ctx, r.env)
			result := ScenarioResult{
				Name:     scenario.Name,
				Err:      err,
				Duration: time.Since(start),
			}
			groupResult.Results = append(groupResult.Results, result)

			if err != nil {
				r.logger.Error("scenario failed",
					zap.String("group", group.Name),
					zap.String("scenario", scenario.Name),
					zap.Bool("critical", group.Critical),
					zap.Error(err))
			} else {
				r.logger.Debug("scenario passed",
					zap.String("group", group.Name),
					zap.String("scenario", scenario.Name),
					zap.Duration("duration", result.Duration))
			}
		}

		report.Groups = append(report.Groups, groupResult)
		r.logger.Info("group finished",
			zap.String("group", group.Name),
			zap.Bool("critical", group.Critical),
			zap.Int("scenarios", len(groupResult.Results)),
			zap.Int("failures", groupResult.Failures()))
	}

	report.Finished = time.Now()
	return report
}

// Write prints a human-readable summary of the report
func (r *Report) Write(w io.Writer) {
	for _, group := range r.Groups {
		tag := "non-critical"
		if group.Critical {
			tag = "critical"
		}
		fmt.Fprintf(w, "%-20s [%s] %d/%d passed\n",
			group.Name, tag, len(group.Results)-group.Failures(), len(group.Results))
		for _, result := range group.Results {
			if !result.Passed() {
				fmt.Fprintf(w, "  FAIL %s: %v\n", result.Name, result.Err)
			}
		}
	}

	verdict := "PASS"
	if !r.Passed() {
		verdict = "FAIL"
	}
	fmt.Fprintf(w, "\n%s: %d critical failures, %d total failures, %v elapsed\n",
		verdict, r.CriticalFailures(), r.TotalFailures(), r.Finished.Sub(r.Started).Round(time.Millisecond))
}
