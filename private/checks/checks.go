// Package checks runs the repository's quality gates as a sequence of
// external commands and reports an aggregate result.
package checks

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-multierror"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("checks")

// Status is the outcome of a single check.
type Status int

const (
	StatusPass Status = iota
	StatusFail
	StatusSkip
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusFail:
		return "fail"
	case StatusSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Check is a named command gate. When any of RequiredEnv is unset the check
// is skipped instead of run.
type Check struct {
	Name        string
	Command     []string
	RequiredEnv []string
}

// Result records a single check's outcome.
type Result struct {
	Check  Check
	Status Status
	Output string
	Err    error
}

// Runner executes checks sequentially and tallies failures.
type Runner struct {
	checks []Check
	lookup func(string) (string, bool)
}

// NewRunner builds a runner over the given checks.
func NewRunner(checks ...Check) *Runner {
	return &Runner{checks: checks, lookup: os.LookupEnv}
}

// Run executes every check in order. Each check runs to completion before
// the next starts. The returned error aggregates all failed checks and is
// nil exactly when no check failed; skipped checks do not count as
// failures.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(r.checks))
	var failures error

	for _, check := range r.checks {
		result := r.runOne(ctx, check)
		results = append(results, result)

		switch result.Status {
		case StatusPass:
			log.Infof("check %q passed", check.Name)
		case StatusSkip:
			log.Infof("check %q skipped: %v", check.Name, result.Err)
		case StatusFail:
			log.Errorf("check %q failed: %v", check.Name, result.Err)
			failures = multierror.Append(failures, fmt.Errorf("check %q: %w", check.Name, result.Err))
		}
	}
	return results, failures
}

func (r *Runner) runOne(ctx context.Context, check Check) Result {
	for _, key := range check.RequiredEnv {
		if v, ok := r.lookup(key); !ok || v == "" {
			return Result{
				Check:  check,
				Status: StatusSkip,
				Err:    fmt.Errorf("required environment variable %s is not set", key),
			}
		}
	}
	if len(check.Command) == 0 {
		return Result{Check: check, Status: StatusFail, Err: fmt.Errorf("no command configured")}
	}

	cmd := exec.CommandContext(ctx, check.Command[0], check.Command[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return Result{Check: check, Status: StatusFail, Output: string(out), Err: err}
	}
	return Result{Check: check, Status: StatusPass, Output: string(out)}
}

// Failures counts failed checks in a result set.
func Failures(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Status == StatusFail {
			n++
		}
	}
	return n
}

// Summary renders one line per check plus a failure tally.
func Summary(results []Result) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "%-20s %s\n", r.Check.Name, r.Status)
	}
	fmt.Fprintf(&b, "\n%d of %d checks failed\n", Failures(results), len(results))
	return b.String()
}

// Suite is the repository's own gate list.
func Suite() []Check {
	return []Check{
		// gofmt -l exits 0 even when it lists files, so the gate fails on
		// non-empty output instead
		{Name: "fmt", Command: []string{"sh", "-c", `out="$(gofmt -l .)"; if [ -n "$out" ]; then echo "$out"; exit 1; fi`}},
		{Name: "vet", Command: []string{"go", "vet", "./..."}},
		{Name: "lint", Command: []string{"staticcheck", "./..."}},
		{Name: "test", Command: []string{"go", "test", "./..."}},
		{Name: "vuln", Command: []string{"govulncheck", "./..."}},
	}
}
