package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/mcdev12/typerace/go/internal/race"
)

var (
	correctStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Underline(true)
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cursorStyle    = pendingStyle.Underline(true)
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	countdownStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#52C41A"))
	panelStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	staleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E")).Italic(true)
)

const nameWidth = 14

// fitName pads or truncates a display name to a fixed cell width.
func fitName(name string) string {
	return runewidth.FillRight(runewidth.Truncate(name, nameWidth, "…"), nameWidth)
}

// renderPassage colours sample by what was typed, wrapping at width cells.
func renderPassage(sample, typed string, width int) string {
	target := []rune(sample)
	input := []rune(typed)
	if width <= 0 {
		width = 80
	}

	var (
		b     strings.Builder
		line  int
		words = splitKeepSpaces(target)
		pos   int
	)
	for _, word := range words {
		w := runewidth.StringWidth(string(word))
		if line > 0 && line+w > width && word[0] != ' ' {
			b.WriteByte('\n')
			line = 0
		}
		for _, r := range word {
			b.WriteString(styleRune(r, pos, input))
			pos++
		}
		line += w
	}
	return b.String()
}

func styleRune(expected rune, pos int, input []rune) string {
	shown := string(expected)
	switch {
	case pos < len(input) && input[pos] == expected:
		return correctStyle.Render(shown)
	case pos < len(input):
		if expected == ' ' {
			shown = "·"
		}
		return incorrectStyle.Render(shown)
	case pos == len(input):
		return cursorStyle.Render(shown)
	default:
		return pendingStyle.Render(shown)
	}
}

// splitKeepSpaces splits runes into words and single spaces.
func splitKeepSpaces(rs []rune) [][]rune {
	var out [][]rune
	start := 0
	for i, r := range rs {
		if r == ' ' {
			if i > start {
				out = append(out, rs[start:i])
			}
			out = append(out, rs[i:i+1])
			start = i + 1
		}
	}
	if start < len(rs) {
		out = append(out, rs[start:])
	}
	return out
}

func renderMetrics(m race.Metrics, total int) string {
	progress := 0
	if total > 0 {
		progress = m.Position * 100 / total
	}
	return fmt.Sprintf("%3d WPM  %3d%% acc  %2d err  %3d%%", m.WPM, m.Accuracy, m.Errors, progress)
}
