package race

import (
	"strings"
	"time"
	"unicode"

	"github.com/jonboulle/clockwork"
)

// State is the controller state.
type State int

const (
	StateIdle State = iota
	StateActive
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Outcome describes what a key press did.
type Outcome struct {
	// Suppress asks the caller to swallow the key (tab).
	Suppress bool
	// Changed is set when the typed text changed and Metrics was recomputed.
	Changed   bool
	Completed bool
	Cue       Cue
	Metrics   Metrics
}

// Controller owns one player's typing session against a fixed passage.
// It is not safe for concurrent use; callers drive it from a single loop.
type Controller struct {
	clock     clockwork.Clock
	sample    []rune
	typed     []rune
	state     State
	startedAt time.Time
	metrics   Metrics
}

// NewController creates an idle controller for sample.
func NewController(sample string, clock clockwork.Clock) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c := &Controller{clock: clock}
	c.SetSample(sample)
	return c
}

// SetSample replaces the passage and resets the session.
func (c *Controller) SetSample(sample string) {
	c.sample = []rune(sample)
	c.Reset()
}

// Reset clears the session and returns to Idle.
func (c *Controller) Reset() {
	c.typed = nil
	c.startedAt = time.Time{}
	c.state = StateIdle
	c.metrics = Metrics{Accuracy: 100}
}

// Unlock moves Idle to Active. It does nothing once the session completed.
func (c *Controller) Unlock() bool {
	if c.state != StateIdle {
		return false
	}
	c.state = StateActive
	return true
}

// HandleKey applies one key press.
func (c *Controller) HandleKey(k Key) Outcome {
	if k.Kind == KeyTab {
		return Outcome{Suppress: true, Metrics: c.metrics}
	}
	if c.state != StateActive {
		return Outcome{Metrics: c.metrics}
	}

	switch {
	case k.Kind == KeyBackspace:
		if k.Ctrl {
			c.deleteWord()
		} else if len(c.typed) > 0 {
			c.typed = c.typed[:len(c.typed)-1]
		}
		c.recompute()
		return Outcome{Changed: true, Cue: CueCorrect, Metrics: c.metrics}

	case k.printable():
		if len(c.typed) >= len(c.sample) {
			return Outcome{Metrics: c.metrics}
		}
		if c.startedAt.IsZero() {
			c.startedAt = c.clock.Now()
		}
		cue := cueFor(k.Rune, c.sample[len(c.typed)])
		c.typed = append(c.typed, k.Rune)
		c.recompute()

		out := Outcome{Changed: true, Cue: cue, Metrics: c.metrics}
		if len(c.typed) == len(c.sample) {
			c.state = StateCompleted
			out.Completed = true
		}
		return out
	}

	return Outcome{Metrics: c.metrics}
}

// deleteWord trims trailing whitespace, then cuts back to just after the last
// space, or to empty when there is none.
func (c *Controller) deleteWord() {
	trimmed := strings.TrimRightFunc(string(c.typed), unicode.IsSpace)
	idx := strings.LastIndex(trimmed, " ")
	if idx < 0 {
		c.typed = nil
		return
	}
	c.typed = []rune(trimmed[:idx+1])
}

func (c *Controller) recompute() {
	var elapsed time.Duration
	started := !c.startedAt.IsZero()
	if started {
		elapsed = c.clock.Since(c.startedAt)
	}
	c.metrics = ComputeRunes(c.sample, c.typed, elapsed, started)
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Metrics returns the latest metrics.
func (c *Controller) Metrics() Metrics { return c.metrics }

// Typed returns the typed text.
func (c *Controller) Typed() string { return string(c.typed) }

// Sample returns the passage.
func (c *Controller) Sample() string { return string(c.sample) }

// Position returns the number of typed characters.
func (c *Controller) Position() int { return len(c.typed) }

// StartedAt returns the first keystroke time, zero before it.
func (c *Controller) StartedAt() time.Time { return c.startedAt }
