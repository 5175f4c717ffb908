// Package ui holds terminal presentation helpers for the lensdesk CLI.
package ui

import "fmt"

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorMuted  = 245 // medium gray
	colorOK     = 71  // green
	colorWarn   = 179 // amber
	colorDenied = 167 // red
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderDecision colors an access decision state: green when authorized,
// red when unauthorized, amber while still loading.
func RenderDecision(state string) string {
	switch state {
	case "authorized":
		return paint(colorOK, state)
	case "unauthorized":
		return paint(colorDenied, state)
	default:
		return paint(colorWarn, state)
	}
}

// RenderStatus colors a consultation request status.
func RenderStatus(status string) string {
	switch status {
	case "completed":
		return paint(colorOK, status)
	case "cancelled":
		return paint(colorMuted, status)
	default:
		return paint(colorWarn, status)
	}
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
