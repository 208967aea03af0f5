// Package tui provides the Bubble Tea views of the typerace client.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mcdev12/typerace/go/internal/race"
)

// translateKey maps a terminal key to controller keys. Ctrl+Backspace reaches
// most terminals as Ctrl+H, so Ctrl+H, Ctrl+W and Alt+Backspace all delete a
// word.
func translateKey(msg tea.KeyMsg) []race.Key {
	switch msg.Type {
	case tea.KeyRunes:
		if msg.Paste {
			return nil
		}
		keys := make([]race.Key, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			keys = append(keys, race.CharKey(r))
		}
		return keys
	case tea.KeySpace:
		return []race.Key{race.CharKey(' ')}
	case tea.KeyBackspace:
		return []race.Key{race.BackspaceKey(msg.Alt)}
	case tea.KeyCtrlH, tea.KeyCtrlW:
		return []race.Key{race.BackspaceKey(true)}
	case tea.KeyTab:
		return []race.Key{{Kind: race.KeyTab}}
	default:
		return nil
	}
}

// CueSink receives the audio cue class of every accepted keystroke.
type CueSink func(race.Cue)
