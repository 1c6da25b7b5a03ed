package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"petpipe/internal/models"
)

// Status is the final state of a run.
type Status string

const (
	// Completed means every shared stage ran. Individual branches may
	// still have failed.
	Completed Status = "completed"
	// Failed means a fatal error stopped the run.
	Failed Status = "failed"
)

// Exit codes returned by Report.ExitCode.
const (
	ExitOK             = 0
	ExitFatal          = 1
	ExitBranchFailures = 2
)

// BranchResult is the outcome of one independent unit of work.
type BranchResult struct {
	Stage   string
	Branch  string
	Outputs []string
	Err     error
}

// OK reports whether the branch succeeded.
func (b BranchResult) OK() bool { return b.Err == nil }

// Report summarizes one run.
type Report struct {
	RunID    string
	Identity models.Identity
	Tracer   string
	Status   Status
	Started  time.Time
	Finished time.Time

	// ReferenceMeans holds the mean of each reference region that could be
	// computed, keyed by region name
	ReferenceMeans map[string]float64

	Branches []BranchResult

	// Err is the fatal error when Status is Failed
	Err error
}

func newReport(id models.Identity) *Report {
	return &Report{
		RunID:          uuid.NewString(),
		Identity:       id,
		Started:        time.Now(),
		ReferenceMeans: make(map[string]float64),
	}
}

func (r *Report) add(stage, branch string, err error, outputs ...string) {
	r.Branches = append(r.Branches, BranchResult{Stage: stage, Branch: branch, Outputs: outputs, Err: err})
}

func (r *Report) finish(err error) {
	r.Finished = time.Now()
	if err != nil {
		r.Status = Failed
		r.Err = err
		return
	}
	r.Status = Completed
}

// Failures returns the failed branches.
func (r *Report) Failures() []BranchResult {
	var out []BranchResult
	for _, b := range r.Branches {
		if !b.OK() {
			out = append(out, b)
		}
	}
	return out
}

// Outputs returns every output path written by a branch.
func (r *Report) Outputs() []string {
	var out []string
	for _, b := range r.Branches {
		out = append(out, b.Outputs...)
	}
	return out
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// ExitCode maps the report to a process exit status.
func (r *Report) ExitCode() int {
	switch {
	case r.Status != Completed:
		return ExitFatal
	case len(r.Failures()) > 0:
		return ExitBranchFailures
	default:
		return ExitOK
	}
}

// Summary is a one-line description suitable for the end of a run.
func (r *Report) Summary() string {
	return fmt.Sprintf("%s %s: %d branches, %d failed, running time %s",
		r.Identity, r.Status, len(r.Branches), len(r.Failures()), r.Duration().Round(time.Second))
}
