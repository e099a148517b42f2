package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
	StepSkipped
)

// Step is one line of a Progress.
type Step struct {
	Number  int
	Name    string
	Status  StepStatus
	Message string // e.g. "3 networks"
}

// Progress is a step list with a bar.
type Progress struct {
	Label   string
	Steps   []Step
	Current int
	Percent float64
	Width   int
	bar     progress.Model
}

// NewProgress creates a progress display with one step per name.
func NewProgress(label string, names ...string) *Progress {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Number: i + 1, Name: name}
	}
	p := &Progress{Label: label, Steps: steps}
	return p.SetWidth(GetTerminalWidth())
}

// SetWidth resizes the bar to fit width.
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(max(20, min(width-20, 50))),
	)
	return p
}

// UpdateStep sets a step's status; out-of-range numbers are ignored.
func (p *Progress) UpdateStep(number int, status StepStatus, message string) {
	if number < 1 || number > len(p.Steps) {
		return
	}
	p.Steps[number-1].Status = status
	p.Steps[number-1].Message = message

	if status == StepRunning {
		p.Current = number
		return
	}
	done := 0
	for _, s := range p.Steps {
		if s.Status == StepComplete || s.Status == StepSkipped {
			done++
		}
	}
	p.Percent = float64(done) / float64(len(p.Steps))
}

func (p *Progress) StartStep(number int, message string) {
	p.UpdateStep(number, StepRunning, message)
}

func (p *Progress) CompleteStep(number int, message string) {
	p.UpdateStep(number, StepComplete, message)
}

func (p *Progress) FailStep(number int, message string) {
	p.UpdateStep(number, StepFailed, message)
}

func (p *Progress) Render() string {
	var b strings.Builder
	if p.Label != "" {
		b.WriteString("  " + ValueStyle.Render(p.Label) + "\n\n")
	}
	fmt.Fprintf(&b, "  %s  [%d/%d]\n\n", p.bar.ViewAs(p.Percent), p.Current, len(p.Steps))
	for i, s := range p.Steps {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.renderStep(s))
	}
	return b.String()
}

func (p *Progress) renderStep(s Step) string {
	marker, style := StepMarkerPending, StepPendingStyle
	switch s.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = FailureMarker, StepFailedStyle
	case StepSkipped:
		marker = StepMarkerSkipped
	}

	pad := max(1, 40-lipgloss.Width(s.Name))
	line := fmt.Sprintf("  [%d/%d] %s%s%s", s.Number, len(p.Steps), style.Render(s.Name), strings.Repeat(" ", pad), style.Render(marker))
	if s.Message != "" {
		line += "  " + StepNoteStyle.Render("("+s.Message+")")
	}
	return line
}

func (p *Progress) String() string {
	return p.Render()
}
