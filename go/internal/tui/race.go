package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mcdev12/typerace/go/internal/client"
	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/race"
)

// RaceDriver is the part of client.Race the view uses.
type RaceDriver interface {
	Views() <-chan client.View
	Press(k race.Key)
	Enter(roomName, fallbackText string)
	Ready()
	Reset()
}

type raceViewMsg client.View

// RaceModel renders a multiplayer race and forwards input to the driver.
type RaceModel struct {
	driver   RaceDriver
	roomName string
	fallback string
	playerID string
	cues     CueSink

	spinner spinner.Model
	view    client.View
	lastCue race.Cue
	seen    bool

	width  int
	height int
}

// NewRaceModel creates the race view for roomName. fallbackText is the
// passage used when the room has to be created.
func NewRaceModel(driver RaceDriver, playerID, roomName, fallbackText string, cues CueSink) *RaceModel {
	return &RaceModel{
		driver:   driver,
		roomName: roomName,
		fallback: fallbackText,
		playerID: playerID,
		cues:     cues,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(countdownStyle)),
	}
}

// Init implements tea.Model.
func (m *RaceModel) Init() tea.Cmd {
	m.driver.Enter(m.roomName, m.fallback)
	return tea.Batch(m.waitForView(), m.spinner.Tick)
}

func (m *RaceModel) waitForView() tea.Cmd {
	views := m.driver.Views()
	return func() tea.Msg {
		v, ok := <-views
		if !ok {
			return nil
		}
		return raceViewMsg(v)
	}
}

// Update implements tea.Model.
func (m *RaceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case raceViewMsg:
		v := client.View(msg)
		if m.cues != nil && v.Cue != race.CueNone && v.Typed != m.view.Typed {
			m.cues(v.Cue)
		}
		m.view = v
		m.seen = true
		return m, m.waitForView()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlR:
			m.driver.Reset()
			return m, nil
		case tea.KeyEnter:
			if m.waiting() {
				m.driver.Ready()
			}
			return m, nil
		}
		for _, k := range translateKey(msg) {
			m.driver.Press(k)
		}
		return m, nil
	}
	return m, nil
}

func (m *RaceModel) waiting() bool {
	return m.view.Room != nil && m.view.Room.Status == models.RoomStatusWaiting
}

// View implements tea.Model.
func (m *RaceModel) View() string {
	width := m.width
	if width == 0 {
		width = 80
	}
	contentWidth := width * 7 / 10
	if contentWidth < 20 {
		contentWidth = width
	}

	v := m.view
	var sections []string
	sections = append(sections, titleStyle.Render("Room "+m.roomName))

	switch {
	case !m.seen || v.Session == client.StatePending || (v.Room == nil && v.Session != client.StateUnconfirmed):
		sections = append(sections, m.spinner.View()+" connecting to room…")
	case v.Room != nil:
		sections = append(sections, m.renderPlayers(v.Room))
		sections = append(sections, m.renderStatus())
	}

	if v.Sample != "" {
		passage := renderPassage(v.Sample, v.Typed, contentWidth)
		sections = append(sections, lipgloss.NewStyle().Width(contentWidth).Render(passage))
		sections = append(sections, footerStyle.Render("you       "+renderMetrics(v.Metrics, len([]rune(v.Sample)))))
	}
	if len(v.Opponents) > 0 {
		sections = append(sections, m.renderOpponents())
	}
	if v.Err != nil {
		sections = append(sections, errorStyle.Render(describeError(v.Err)))
	}
	sections = append(sections, footerStyle.Render("enter ready · ctrl+r reset room · ctrl+w delete word · esc quit"))

	body := strings.Join(sections, "\n\n")
	if m.height == 0 {
		return body
	}
	return lipgloss.Place(width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m *RaceModel) renderPlayers(room *models.Room) string {
	rows := make([]string, 0, len(room.Players))
	for _, p := range room.Players {
		marker := "  "
		if p.IsHost {
			marker = "★ "
		}
		ready := pendingStyle.Render("not ready")
		if room.IsReady(p.ID) {
			ready = countdownStyle.Render("ready")
		}
		you := ""
		if p.ID == m.playerID {
			you = footerStyle.Render(" (you)")
		}
		rows = append(rows, marker+fitName(p.Name)+" "+ready+you)
	}
	if len(room.Players) < models.MaxPlayers {
		rows = append(rows, footerStyle.Render(m.spinner.View()+" waiting for an opponent"))
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

func (m *RaceModel) renderStatus() string {
	v := m.view
	switch {
	case v.Done:
		return countdownStyle.Render(fmt.Sprintf("Finished: %d WPM · %d%%. Ctrl+R to race again", v.Metrics.WPM, v.Metrics.Accuracy))
	case v.State == race.StateActive:
		return countdownStyle.Render("Go!")
	case v.Counting:
		return countdownStyle.Render(fmt.Sprintf("Starting in %d", v.Countdown))
	case v.Room.Status == models.RoomStatusWaiting && v.Room.IsReady(m.playerID):
		return footerStyle.Render("Ready. Waiting for the other player…")
	case v.Room.Status == models.RoomStatusWaiting:
		return footerStyle.Render("Press Enter when you are ready")
	case v.Room.Status == models.RoomStatusFinished:
		return footerStyle.Render("Race finished. Ctrl+R to reset the room")
	}
	return ""
}

func (m *RaceModel) renderOpponents() string {
	rows := make([]string, 0, len(m.view.Opponents))
	for _, o := range m.view.Opponents {
		line := fitName(o.PlayerName) + " " + renderMetrics(race.Metrics{
			WPM:      o.Stats.WPM,
			Accuracy: o.Stats.Accuracy,
			Errors:   o.Stats.Errors,
		}, 0)
		if o.Final {
			line += " ✓"
		}
		if o.Stale {
			line = staleStyle.Render(line + " (disconnected)")
		}
		rows = append(rows, line)
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

func describeError(err error) string {
	var full *client.RoomFullError
	switch {
	case errors.As(err, &full):
		return fmt.Sprintf("Room %s is full", full.RoomID)
	case errors.Is(err, client.ErrRequestTimeout):
		return "The server did not answer. The room view may be out of date."
	case errors.Is(err, client.ErrDisconnected):
		return "Disconnected from the server. Your run continues locally."
	default:
		return err.Error()
	}
}
