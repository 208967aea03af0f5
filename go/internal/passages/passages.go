// Package passages supplies the text players race on.
package passages

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
)

// ErrNoPassages is returned when a source holds no passages.
var ErrNoPassages = errors.New("no passages available")

// Builtin is the passage set used when no database is configured and as the
// seed data for the passages table.
var Builtin = []string{
	"The quick brown fox jumps over the lazy dog while the farmer watches from the porch.",
	"Practice does not make perfect. Only perfect practice makes perfect, so slow down and type each letter with care.",
	"A journey of a thousand miles begins with a single step, and a race of a thousand words begins with one key.",
	"Good code is its own best documentation. As you are about to add a comment, ask yourself how to improve the code instead.",
	"The sun dipped below the hills and the town lights came on one by one, like a slow wave rolling across the valley.",
	"Simplicity is prerequisite for reliability. Clear names and small functions keep a program easy to change.",
	"She packed a thermos of tea, two apples and a worn paperback, then set off along the river before anyone else was awake.",
	"Typing fast is less about speed than rhythm. Keep your eyes on the text and let your fingers find the keys.",
}

// Static picks uniformly from a fixed list.
type Static struct {
	texts []string
}

// NewStatic creates a picker over texts, dropping blank entries.
func NewStatic(texts []string) *Static {
	s := &Static{}
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			s.texts = append(s.texts, t)
		}
	}
	return s
}

// Pick returns a random passage.
func (s *Static) Pick(context.Context) (string, error) {
	if len(s.texts) == 0 {
		return "", ErrNoPassages
	}
	return s.texts[rand.IntN(len(s.texts))], nil
}

// Len returns the number of passages.
func (s *Static) Len() int { return len(s.texts) }
