package race

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultCountdownFrom     = 5
	DefaultCountdownInterval = time.Second
)

// Tick is emitted once per countdown step. Run identifies the Start call that
// produced it so consumers can drop ticks from a cancelled run.
type Tick struct {
	Run       uint64
	Remaining int
}

// Done reports whether this tick is the zero edge.
func (t Tick) Done() bool { return t.Remaining == 0 }

// Countdown is the preparation timer that gates input before a race.
type Countdown struct {
	clock    clockwork.Clock
	from     int
	interval time.Duration

	mu      sync.Mutex
	current int
	run     uint64
	running bool
	stop    chan struct{}

	ticks chan Tick
}

// NewCountdown creates a countdown from `from` stepping every interval.
func NewCountdown(clock clockwork.Clock, from int, interval time.Duration) *Countdown {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if from <= 0 {
		from = DefaultCountdownFrom
	}
	if interval <= 0 {
		interval = DefaultCountdownInterval
	}
	return &Countdown{
		clock:    clock,
		from:     from,
		interval: interval,
		current:  from,
		ticks:    make(chan Tick, from+1),
	}
}

// Ticks delivers countdown steps.
func (c *Countdown) Ticks() <-chan Tick { return c.ticks }

// Current returns the remaining value.
func (c *Countdown) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Running reports whether a countdown is in progress.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// IsCurrent reports whether t belongs to the active or most recent run.
func (c *Countdown) IsCurrent(t Tick) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return t.Run == c.run
}

// Start begins counting down from the initial value. It returns the run id, or
// zero when a countdown is already running.
func (c *Countdown) Start() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return 0
	}
	c.run++
	c.current = c.from
	c.running = true
	c.stop = make(chan struct{})

	go c.loop(c.run, c.clock.NewTicker(c.interval), c.stop)
	return c.run
}

// Reset cancels any running countdown without firing and restores the initial value.
func (c *Countdown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run++
	c.current = c.from
	c.running = false
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Countdown) loop(run uint64, ticker clockwork.Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			tick, ok := c.step(run)
			if !ok {
				return
			}
			select {
			case c.ticks <- tick:
			case <-stop:
				return
			}
			if tick.Done() {
				return
			}
		}
	}
}

func (c *Countdown) step(run uint64) (Tick, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if run != c.run || !c.running {
		return Tick{}, false
	}
	c.current--
	if c.current <= 0 {
		c.current = 0
		c.running = false
		c.stop = nil
	}
	return Tick{Run: run, Remaining: c.current}, true
}
