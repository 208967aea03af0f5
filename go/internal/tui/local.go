package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/typerace/go/internal/race"
)

// LocalResult is a finished practice or solo run.
type LocalResult struct {
	Passage   string
	Metrics   race.Metrics
	StartedAt time.Time
	Duration  time.Duration
}

// LocalOptions configure a single-player view.
type LocalOptions struct {
	Title         string
	CountdownFrom int
	// NextPassage is asked for a passage on start and on every restart.
	NextPassage func() string
	// OnFinish runs after a completed run; nil means nothing is kept.
	OnFinish func(LocalResult)
	Cues     CueSink
	Clock    clockwork.Clock
}

type countdownMsg race.Tick

// LocalModel is the practice and solo view: a countdown, then typing.
type LocalModel struct {
	opts       LocalOptions
	clock      clockwork.Clock
	controller *race.Controller
	countdown  *race.Countdown

	width  int
	height int
	last   *LocalResult
}

// NewLocalModel creates a single-player model.
func NewLocalModel(opts LocalOptions) *LocalModel {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LocalModel{
		opts:       opts,
		clock:      clock,
		controller: race.NewController("", clock),
		countdown:  race.NewCountdown(clock, opts.CountdownFrom, time.Second),
	}
}

// Init implements tea.Model.
func (m *LocalModel) Init() tea.Cmd {
	return m.restart()
}

func (m *LocalModel) restart() tea.Cmd {
	m.controller.SetSample(m.opts.NextPassage())
	m.countdown.Reset()
	m.countdown.Start()
	return waitForCountdown(m.countdown)
}

func waitForCountdown(c *race.Countdown) tea.Cmd {
	return func() tea.Msg {
		return countdownMsg(<-c.Ticks())
	}
}

// Update implements tea.Model.
func (m *LocalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case countdownMsg:
		tick := race.Tick(msg)
		if !m.countdown.IsCurrent(tick) {
			return m, nil
		}
		if tick.Done() {
			m.controller.Unlock()
			return m, nil
		}
		return m, waitForCountdown(m.countdown)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.countdown.Reset()
			return m, tea.Quit
		case tea.KeyEnter:
			if m.controller.State() == race.StateCompleted {
				return m, m.restart()
			}
			return m, nil
		case tea.KeyCtrlR:
			return m, m.restart()
		}
		for _, k := range translateKey(msg) {
			m.press(k)
		}
		return m, nil
	}
	return m, nil
}

func (m *LocalModel) press(k race.Key) {
	out := m.controller.HandleKey(k)
	if out.Changed && m.opts.Cues != nil {
		m.opts.Cues(out.Cue)
	}
	if !out.Completed {
		return
	}
	started := m.controller.StartedAt()
	res := LocalResult{
		Passage:   m.controller.Sample(),
		Metrics:   out.Metrics,
		StartedAt: started,
		Duration:  m.clock.Since(started),
	}
	m.last = &res
	if m.opts.OnFinish != nil {
		m.opts.OnFinish(res)
	}
}

// View implements tea.Model.
func (m *LocalModel) View() string {
	width := m.width
	if width == 0 {
		width = 80
	}
	contentWidth := width * 7 / 10
	if contentWidth < 20 {
		contentWidth = width
	}

	var sections []string
	sections = append(sections, titleStyle.Render(m.opts.Title))

	switch m.controller.State() {
	case race.StateIdle:
		sections = append(sections, countdownStyle.Render(fmt.Sprintf("Starting in %d", m.countdown.Current())))
	case race.StateCompleted:
		sections = append(sections, countdownStyle.Render("Done! Enter for a new passage, Esc to quit"))
	default:
		sections = append(sections, "")
	}

	passage := renderPassage(m.controller.Sample(), m.controller.Typed(), contentWidth)
	sections = append(sections, lipgloss.NewStyle().Width(contentWidth).Render(passage))
	sections = append(sections, footerStyle.Render(renderMetrics(m.controller.Metrics(), len([]rune(m.controller.Sample())))))
	if m.last != nil {
		sections = append(sections, footerStyle.Render(fmt.Sprintf("Last run %d WPM · %d%% in %s", m.last.Metrics.WPM, m.last.Metrics.Accuracy, m.last.Duration.Round(100*time.Millisecond))))
	}
	sections = append(sections, footerStyle.Render("ctrl+r restart · ctrl+w / ctrl+backspace delete word · esc quit"))

	body := strings.Join(sections, "\n\n")
	if m.height == 0 {
		return body
	}
	return lipgloss.Place(width, m.height, lipgloss.Center, lipgloss.Center, body)
}
