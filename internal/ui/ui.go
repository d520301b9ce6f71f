// Package ui provides terminal styling and output helpers for the
// loom CLI.
package ui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/robchristie/loom/internal/model"
)

// Palette shared by every styled surface.
var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "63", Dark: "117"}
	ColorPass   = lipgloss.AdaptiveColor{Light: "28", Dark: "78"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "130", Dark: "214"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "124", Dark: "203"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "243", Dark: "241"}
)

var (
	TitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	passStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	failStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	neutralStyle = lipgloss.NewStyle()
)

// IsTerminal returns true if stdout is connected to a TTY.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor respects NO_COLOR and falls back to TTY detection.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return IsTerminal()
}

// StatusStyle picks a color for a lifecycle status.
func StatusStyle(status model.BeadStatus) lipgloss.Style {
	switch status {
	case model.StatusDone, model.StatusVerified:
		return passStyle
	case model.StatusBlocked, model.StatusAbortedNeedsDiscovery:
		return warnStyle
	case model.StatusFailed, model.StatusSuperseded:
		return failStyle
	default:
		return neutralStyle
	}
}

// RenderStatus renders a status with its color when appropriate.
func RenderStatus(status model.BeadStatus) string {
	if !ShouldUseColor() {
		return string(status)
	}
	return StatusStyle(status).Render(string(status))
}

// RenderMarkdown renders markdown for the terminal; in non-TTY mode
// the source text passes through unchanged so output stays
// machine-readable.
func RenderMarkdown(source string) string {
	if !IsTerminal() {
		return source
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return source
	}
	out, err := renderer.Render(source)
	if err != nil {
		return source
	}
	return out
}
