package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Detail is one key/value line. Slices keep display order stable.
type Detail struct {
	Key   string
	Value string
}

// D is shorthand for a Detail.
func D(key, value string) Detail {
	return Detail{Key: key, Value: value}
}

type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result is a result box.
type Result struct {
	Type            ResultType
	Title           string
	Details         []Detail
	Error           error
	Troubleshooting []string
	Width           int
}

func NewSuccessResult(title string, details ...Detail) *Result {
	return &Result{Type: ResultSuccess, Title: title, Details: details, Width: GetTerminalWidth()}
}

func NewFailureResult(title string, err error, troubleshooting ...string) *Result {
	return &Result{Type: ResultFailure, Title: title, Error: err, Troubleshooting: troubleshooting, Width: GetTerminalWidth()}
}

func NewWarningResult(title string, details ...Detail) *Result {
	return &Result{Type: ResultWarning, Title: title, Details: details, Width: GetTerminalWidth()}
}

func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

func (r *Result) AddDetail(key, value string) *Result {
	r.Details = append(r.Details, D(key, value))
	return r
}

// Render returns the styled box.
func (r *Result) Render() string {
	width := max(r.Width, MinTerminalWidth)

	marker, label, color := SuccessMarker, "SUCCESS", SuccessColor
	switch r.Type {
	case ResultFailure:
		marker, label, color = FailureMarker, "FAILED", ErrorColor
	case ResultWarning:
		marker, label, color = WarningMarker, "WARNING", WarningColor
	}

	title := lipgloss.NewStyle().Foreground(color).Bold(true).
		Render(fmt.Sprintf(" %s  %s  ─  %s", marker, label, r.Title))
	lines := []string{"", title, ""}

	if len(r.Details) > 0 {
		lines = append(lines, renderDetails(r.Details, " "), "")
	}
	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render(" Error: "+r.Error.Error()), "")
	}
	if len(r.Troubleshooting) > 0 {
		lines = append(lines, r.renderTroubleshooting(width), "")
	}

	return boxStyle(width, color).Render(strings.Join(lines, "\n"))
}

func (r *Result) renderTroubleshooting(width int) string {
	lines := []string{TroubleshootingStyle.Bold(true).Render("Troubleshooting:"), ""}
	for _, tip := range r.Troubleshooting {
		lines = append(lines, TroubleshootingStyle.Render("  • "+tip))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(max(width-12, 40)).
		Padding(0, 1).
		MarginLeft(1).
		Render(strings.Join(lines, "\n"))
}

func (r *Result) String() string {
	return r.Render()
}

// renderDetails aligns keys into one column.
func renderDetails(details []Detail, indent string) string {
	keyWidth := 0
	for _, d := range details {
		keyWidth = max(keyWidth, lipgloss.Width(d.Key)+1)
	}
	keyStyle := KeyStyle.Width(keyWidth + 2)

	lines := make([]string, 0, len(details))
	for _, d := range details {
		lines = append(lines, indent+keyStyle.Render(d.Key+":")+" "+ValueStyle.Render(d.Value))
	}
	return strings.Join(lines, "\n")
}

// TroubleshootingLines splits a multi-line hint into bullet items,
// dropping its headline and "Troubleshooting:" label.
func TroubleshootingLines(hint string) []string {
	var tips []string
	for _, line := range strings.Split(hint, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "•") {
			tips = append(tips, strings.TrimSpace(strings.TrimPrefix(line, "•")))
		}
	}
	if len(tips) == 0 && hint != "" {
		tips = []string{hint}
	}
	return tips
}
