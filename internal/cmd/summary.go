package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/ratco/ratco/internal/orchestrator"
	"github.com/ratco/ratco/internal/scheduler"
	"github.com/ratco/ratco/internal/util"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Faint(true).Width(12)
	goodStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
)

const defaultTerminalWidth = 100

type summaryLine struct {
	label string
	value string
}

func summaryLines(res orchestrator.Result) []summaryLine {
	lines := []summaryLine{
		{"run", res.RunID},
		{"outcome", res.Outcome.String()},
		{"rounds", fmt.Sprintf("%d (bound %d)", res.Rounds, res.MaxRounds)},
		{"budget", fmt.Sprintf("$%.2f spent of $%.2f", res.Spent, res.Invested)},
		{"roster", res.Roster.String()},
	}
	if res.State != nil {
		lines = append(lines, summaryLine{"idea", res.State.Idea})
	}
	if res.Recovered {
		lines = append(lines, summaryLine{"recovered", "yes"})
	}
	checkpoint := res.CheckpointPath
	if checkpoint == "" {
		checkpoint = "(not saved)"
	}
	lines = append(lines, summaryLine{"checkpoint", checkpoint})
	if res.LogPath != "" {
		lines = append(lines, summaryLine{"log", res.LogPath})
	}
	return lines
}

// printSummary writes the run report, styled when w is a terminal.
func printSummary(w io.Writer, res orchestrator.Result) {
	lines := summaryLines(res)
	if !isTerminal(w) {
		for _, l := range lines {
			fmt.Fprintf(w, "%s: %s\n", l.label, l.value)
		}
		return
	}

	// label column, box border and padding
	valueWidth := terminalWidth(w) - labelStyle.GetWidth() - 4

	var b strings.Builder
	b.WriteString(titleStyle.Render("ratco run summary"))
	for _, l := range lines {
		value := util.TruncateWidth(l.value, valueWidth)
		if l.label == "outcome" {
			value = outcomeStyle(res.Outcome).Render(value)
		}
		b.WriteString("\n" + labelStyle.Render(l.label) + value)
	}
	fmt.Fprintln(w, boxStyle.Render(b.String()))
}

func outcomeStyle(s scheduler.State) lipgloss.Style {
	switch s {
	case scheduler.StateCompleted, scheduler.StateRoundsExhausted:
		return goodStyle
	default:
		return warnStyle
	}
}

func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultTerminalWidth
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
