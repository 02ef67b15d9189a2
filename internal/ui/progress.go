package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a stage line
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // Currently executing
	StepComplete                   // Completed
	StepFailed                     // Failed
	StepUndone                     // Completed, then rolled back
)

// Step is one line of the stage list
type Step struct {
	Number  int // 1-based
	Name    string
	Status  StepStatus
	Message string // optional note, e.g. "12ms"
}

// Progress is a bar plus the stage list
type Progress struct {
	Steps []Step
	Width int
	bar   progress.Model
}

// NewProgress creates a progress display with one pending step per name
func NewProgress(names []string) *Progress {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Number: i + 1, Name: name}
	}
	p := &Progress{Steps: steps}
	p.SetWidth(GetTerminalWidth())
	return p
}

// SetWidth sets the terminal width for responsive rendering
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := width - 20
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return p
}

// Update sets the status of step n (1-based). Out-of-range steps are ignored.
func (p *Progress) Update(n int, status StepStatus, message string) {
	if n < 1 || n > len(p.Steps) {
		return
	}
	p.Steps[n-1].Status = status
	p.Steps[n-1].Message = message
}

// Percent returns the fraction of completed steps
func (p *Progress) Percent() float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	done := 0
	for _, s := range p.Steps {
		if s.Status == StepComplete {
			done++
		}
	}
	return float64(done) / float64(len(p.Steps))
}

// RenderBar renders the bar with percentage and count
func (p *Progress) RenderBar() string {
	pct := p.Percent()
	done := int(pct*float64(len(p.Steps)) + 0.5)
	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%  [%d/%d]", p.bar.ViewAs(pct), pct*100, done, len(p.Steps)))
}

// Render returns the bar followed by every step line
func (p *Progress) Render() string {
	lines := []string{p.RenderBar(), ""}
	for _, s := range p.Steps {
		lines = append(lines, p.RenderStep(s))
	}
	return strings.Join(lines, "\n")
}

// RenderStep renders a single step line
func (p *Progress) RenderStep(step Step) string {
	var (
		marker string
		style  lipgloss.Style
	)
	switch step.Status {
	case StepComplete:
		marker, style = MarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = MarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = MarkerFailed, ErrorTitleStyle
	case StepUndone:
		marker, style = MarkerUndone, StepPendingStyle
	default:
		marker, style = MarkerPending, StepPendingStyle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", step.Number, len(p.Steps))
	b.WriteString(style.Render(step.Name))

	padding := 32 - lipgloss.Width(step.Name)
	if padding < 1 {
		padding = 1
	}
	b.WriteString(strings.Repeat(" ", padding))
	b.WriteString(style.Render(marker))

	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}
	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}
