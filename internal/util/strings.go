// Package util holds small text helpers shared by the CLI summary and the
// run logs.
package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Ellipsis marks truncated text.
const Ellipsis = "..."

// Truncate shortens s to at most maxRunes runes, ending in Ellipsis when cut.
// It ignores ANSI sequences and wide characters; use TruncateWidth for
// styled terminal output.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= len(Ellipsis) {
		return Ellipsis
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes-len(Ellipsis)]) + Ellipsis
}

// TruncateWidth shortens s to maxWidth terminal columns, keeping ANSI escape
// sequences intact.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= len(Ellipsis) {
		return Ellipsis
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	// ansi.Truncate counts the tail in the final width
	return ansi.Truncate(s, maxWidth, Ellipsis)
}

// SingleLine collapses newlines and whitespace runs to single spaces so
// multi-line actor output fits on one log line.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
