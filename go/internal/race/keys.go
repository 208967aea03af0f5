package race

import "unicode"

// KeyKind classifies a key press for the controller.
type KeyKind int

const (
	KeyOther KeyKind = iota
	KeyChar
	KeyBackspace
	KeyTab
)

// Key is a single key press. Ctrl marks the word-delete modifier on backspace.
type Key struct {
	Kind KeyKind
	Rune rune
	Ctrl bool
}

// CharKey builds a printable character key.
func CharKey(r rune) Key {
	return Key{Kind: KeyChar, Rune: r}
}

// BackspaceKey builds a backspace key, word-wise when ctrl is held.
func BackspaceKey(ctrl bool) Key {
	return Key{Kind: KeyBackspace, Ctrl: ctrl}
}

func (k Key) printable() bool {
	return k.Kind == KeyChar && (k.Rune == ' ' || unicode.IsPrint(k.Rune))
}

// Cue is the audio cue class for an accepted keystroke.
type Cue string

const (
	CueNone    Cue = ""
	CueCorrect Cue = "correct"
	CueError   Cue = "error"
	CueSpace   Cue = "space"
)

func cueFor(typed, expected rune) Cue {
	switch {
	case typed == ' ':
		return CueSpace
	case typed == expected:
		return CueCorrect
	default:
		return CueError
	}
}
