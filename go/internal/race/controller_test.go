package race

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func typeString(c *Controller, s string) []Outcome {
	var outs []Outcome
	for _, r := range s {
		outs = append(outs, c.HandleKey(CharKey(r)))
	}
	return outs
}

func TestControllerIgnoresInputUntilUnlocked(t *testing.T) {
	c := NewController("abc", clockwork.NewFakeClock())
	out := c.HandleKey(CharKey('a'))
	if out.Changed || c.Position() != 0 {
		t.Fatalf("idle controller accepted input: %+v", out)
	}
	if !c.StartedAt().IsZero() {
		t.Fatalf("start time set while idle")
	}
	if !c.Unlock() {
		t.Fatalf("expected unlock from idle")
	}
	if c.Unlock() {
		t.Fatalf("second unlock should be a no-op")
	}
	if out := c.HandleKey(CharKey('a')); !out.Changed || c.Position() != 1 {
		t.Fatalf("active controller rejected input: %+v", out)
	}
}

func TestControllerCompletesExactlyOnce(t *testing.T) {
	c := NewController("hi there", clockwork.NewFakeClock())
	c.Unlock()

	outs := typeString(c, "hi ther")
	for i, out := range outs {
		if out.Completed {
			t.Fatalf("completion fired early at keystroke %d", i)
		}
	}
	out := c.HandleKey(CharKey('e'))
	if !out.Completed {
		t.Fatalf("expected completion on final character")
	}
	if c.State() != StateCompleted {
		t.Fatalf("state = %s, want completed", c.State())
	}
	for i := 0; i < 3; i++ {
		if again := c.HandleKey(CharKey('e')); again.Completed || again.Changed {
			t.Fatalf("input after completion produced %+v", again)
		}
	}
	if c.Unlock() {
		t.Fatalf("unlock must not reopen a completed session")
	}
	if c.Typed() != "hi there" {
		t.Fatalf("typed = %q", c.Typed())
	}
}

func TestControllerCompletesWithMistakes(t *testing.T) {
	c := NewController("abc", clockwork.NewFakeClock())
	c.Unlock()
	outs := typeString(c, "xbz")
	last := outs[len(outs)-1]
	if !last.Completed {
		t.Fatalf("expected completion at full length even with errors")
	}
	if last.Metrics.Errors != 2 {
		t.Fatalf("errors = %d, want 2", last.Metrics.Errors)
	}
}

func TestControllerBackspaceCorrectsErrors(t *testing.T) {
	c := NewController("abc", clockwork.NewFakeClock())
	c.Unlock()

	out := c.HandleKey(CharKey('x'))
	if out.Metrics.Errors != 1 || out.Metrics.Accuracy != 0 {
		t.Fatalf("after mistake: %+v", out.Metrics)
	}
	out = c.HandleKey(BackspaceKey(false))
	if out.Cue != CueCorrect {
		t.Fatalf("backspace cue = %q, want correct", out.Cue)
	}
	if out.Metrics.Errors != 0 || out.Metrics.Accuracy != 100 || out.Metrics.Position != 0 {
		t.Fatalf("after backspace: %+v", out.Metrics)
	}
	out = c.HandleKey(CharKey('a'))
	if out.Metrics.Errors != 0 || out.Metrics.Position != 1 {
		t.Fatalf("after retype: %+v", out.Metrics)
	}

	// Backspace on empty input is harmless.
	c.HandleKey(BackspaceKey(false))
	if out := c.HandleKey(BackspaceKey(false)); out.Metrics.Position != 0 {
		t.Fatalf("position went negative: %+v", out.Metrics)
	}
}

func TestControllerWordDelete(t *testing.T) {
	c := NewController("the quick brown fox", clockwork.NewFakeClock())
	c.Unlock()
	typeString(c, "the quick br")

	steps := []string{"the quick ", "the ", ""}
	for _, want := range steps {
		c.HandleKey(BackspaceKey(true))
		if got := c.Typed(); got != want {
			t.Fatalf("after word delete typed = %q, want %q", got, want)
		}
	}
}

func TestControllerWordDeleteTrimsTrailingSpaces(t *testing.T) {
	c := NewController("one two  three", clockwork.NewFakeClock())
	c.Unlock()
	typeString(c, "one two  ")
	c.HandleKey(BackspaceKey(true))
	if got := c.Typed(); got != "one " {
		t.Fatalf("typed = %q, want %q", got, "one ")
	}
}

func TestControllerSuppressesTab(t *testing.T) {
	c := NewController("abc", clockwork.NewFakeClock())
	if out := c.HandleKey(Key{Kind: KeyTab}); !out.Suppress {
		t.Fatalf("tab not suppressed while idle")
	}
	c.Unlock()
	out := c.HandleKey(Key{Kind: KeyTab})
	if !out.Suppress || out.Changed {
		t.Fatalf("tab while active: %+v", out)
	}
	if out := c.HandleKey(Key{Kind: KeyOther}); out.Changed || out.Suppress {
		t.Fatalf("other key handled: %+v", out)
	}
	if out := c.HandleKey(CharKey('\x07')); out.Changed {
		t.Fatalf("non-printable rune accepted")
	}
}

func TestControllerCues(t *testing.T) {
	c := NewController("a b", clockwork.NewFakeClock())
	c.Unlock()
	if out := c.HandleKey(CharKey('a')); out.Cue != CueCorrect {
		t.Fatalf("cue = %q, want correct", out.Cue)
	}
	if out := c.HandleKey(CharKey(' ')); out.Cue != CueSpace {
		t.Fatalf("cue = %q, want space", out.Cue)
	}
	if out := c.HandleKey(CharKey('x')); out.Cue != CueError {
		t.Fatalf("cue = %q, want error", out.Cue)
	}
}

func TestControllerResetMatchesFreshSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewController("hello", clock)
	c.Unlock()
	typeString(c, "hex")
	clock.Advance(10 * time.Second)
	c.HandleKey(CharKey('l'))

	c.Reset()
	if c.State() != StateIdle || c.Typed() != "" || c.Position() != 0 || !c.StartedAt().IsZero() {
		t.Fatalf("reset left state behind: state=%s typed=%q", c.State(), c.Typed())
	}
	if m := c.Metrics(); m != (Metrics{Accuracy: 100}) {
		t.Fatalf("metrics after reset = %+v", m)
	}

	fresh := NewController("hello", clock)
	fresh.Unlock()
	c.Unlock()
	if a, b := c.HandleKey(CharKey('h')), fresh.HandleKey(CharKey('h')); a.Metrics != b.Metrics {
		t.Fatalf("reset session %+v differs from fresh %+v", a.Metrics, b.Metrics)
	}
}

func TestControllerWPMFromFirstKeystroke(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewController("aaaaaaaaaa", clock)
	c.Unlock()

	clock.Advance(time.Hour) // time before the first key does not count
	c.HandleKey(CharKey('a'))
	if c.Metrics().WPM != 0 {
		t.Fatalf("wpm on first key = %d, want 0", c.Metrics().WPM)
	}
	typeString(c, "aaaaaaaa")
	clock.Advance(30 * time.Second)
	out := c.HandleKey(CharKey('a'))
	if !out.Completed {
		t.Fatalf("expected completion")
	}
	if out.Metrics.WPM != 4 {
		t.Fatalf("wpm = %d, want 4", out.Metrics.WPM)
	}
}

func TestControllerSetSampleResets(t *testing.T) {
	c := NewController("abc", clockwork.NewFakeClock())
	c.Unlock()
	typeString(c, "ab")
	c.SetSample("xyz")
	if c.State() != StateIdle || c.Typed() != "" || c.Sample() != "xyz" {
		t.Fatalf("SetSample did not reset: %s %q %q", c.State(), c.Typed(), c.Sample())
	}
}
