package ui

import (
	"fmt"
	"io"
	"os"
	"time"
)

// StepFunc reports progress from inside an operation.
type StepFunc func(number int, status StepStatus, message string)

// Runner prints a header, then one line per step change, then a result box.
type Runner struct {
	header   *Header
	progress *Progress
	out      io.Writer
	// Hint turns an operation error into troubleshooting lines.
	Hint func(error) []string
}

// NewRunner prepares a runner. A nil out writes to stdout.
func NewRunner(out io.Writer, header *Header, steps ...string) *Runner {
	if out == nil {
		out = os.Stdout
	}
	return &Runner{header: header, progress: NewProgress("", steps...), out: out}
}

// Run executes op and prints its outcome. The details op returns appear
// in the success box; op's error is returned unchanged.
func (r *Runner) Run(title string, op func(step StepFunc) ([]Detail, error)) error {
	start := time.Now()
	_, _ = fmt.Fprintln(r.out, r.header.Render())
	_, _ = fmt.Fprintln(r.out)

	details, err := op(func(n int, status StepStatus, message string) {
		r.progress.UpdateStep(n, status, message)
		if status != StepRunning && n >= 1 && n <= len(r.progress.Steps) {
			_, _ = fmt.Fprintln(r.out, r.progress.renderStep(r.progress.Steps[n-1]))
		}
	})
	_, _ = fmt.Fprintln(r.out)

	elapsed := time.Since(start).Round(10 * time.Millisecond).String()
	if err != nil {
		var tips []string
		if r.Hint != nil {
			tips = r.Hint(err)
		}
		res := NewFailureResult(title, err, tips...)
		res.AddDetail("Duration", elapsed)
		_, _ = fmt.Fprintln(r.out, res.SetWidth(r.header.Width).Render())
		return err
	}

	res := NewSuccessResult(title, details...)
	res.AddDetail("Duration", elapsed)
	_, _ = fmt.Fprintln(r.out, res.SetWidth(r.header.Width).Render())
	return nil
}

// Progress exposes the step list, e.g. for a final summary.
func (r *Runner) Progress() *Progress {
	return r.progress
}
