package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/mcdev12/typerace/go/internal/models"
)

// FetchFunc loads the ranked leaderboard.
type FetchFunc func(ctx context.Context) ([]models.RankedRecord, error)

type leaderboardMsg struct {
	records []models.RankedRecord
	err     error
}

const fetchTimeout = 10 * time.Second

// LeaderboardModel shows the ranked leaderboard in a table.
type LeaderboardModel struct {
	fetch    FetchFunc
	playerID string

	spinner spinner.Model
	table   table.Model
	loading bool
	err     error
	count   int

	width  int
	height int
}

// NewLeaderboardModel creates the leaderboard view. Rows owned by playerID
// are marked.
func NewLeaderboardModel(fetch FetchFunc, playerID string) *LeaderboardModel {
	columns := []table.Column{
		{Title: "#", Width: 4},
		{Title: "Player", Width: 18},
		{Title: "WPM", Width: 5},
		{Title: "Acc", Width: 5},
		{Title: "Err", Width: 4},
		{Title: "Score", Width: 8},
		{Title: "When", Width: 16},
	}
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#C89A3A")).Bold(true)

	return &LeaderboardModel{
		fetch:    fetch,
		playerID: playerID,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(countdownStyle)),
		table: table.New(
			table.WithColumns(columns),
			table.WithHeight(12),
			table.WithFocused(true),
			table.WithStyles(styles),
		),
		loading: true,
	}
}

// Init implements tea.Model.
func (m *LeaderboardModel) Init() tea.Cmd {
	return tea.Batch(m.load(), m.spinner.Tick)
}

func (m *LeaderboardModel) load() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		records, err := fetch(ctx)
		return leaderboardMsg{records: records, err: err}
	}
}

// Update implements tea.Model.
func (m *LeaderboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if h := msg.Height - 8; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case leaderboardMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.count = len(msg.records)
			m.table.SetRows(leaderboardRows(msg.records, m.playerID))
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, tea.Batch(m.load(), m.spinner.Tick)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *LeaderboardModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Leaderboard"))
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " loading…")
	case m.err != nil:
		b.WriteString(errorStyle.Render("Could not load leaderboard: " + m.err.Error()))
	case m.count == 0:
		b.WriteString(footerStyle.Render("No results yet. Finish a solo run or a race to appear here."))
	default:
		b.WriteString(panelStyle.Render(m.table.View()))
	}

	b.WriteString("\n\n")
	b.WriteString(footerStyle.Render("↑/↓ scroll · r refresh · q quit"))

	if m.width == 0 || m.height == 0 {
		return b.String()
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, b.String())
}

func leaderboardRows(records []models.RankedRecord, playerID string) []table.Row {
	rows := make([]table.Row, 0, len(records))
	for _, r := range records {
		name := r.PlayerID
		if r.UserID != "" {
			name = r.UserID
		}
		name = runewidth.Truncate(name, 16, "…")
		if r.PlayerID == playerID {
			name = runewidth.Truncate(name, 14, "…") + " ◀"
		}
		rows = append(rows, table.Row{
			rankLabel(r.Rank),
			name,
			fmt.Sprintf("%d", r.WPM),
			fmt.Sprintf("%d%%", r.Accuracy),
			fmt.Sprintf("%d", r.Errors),
			fmt.Sprintf("%.1f", r.Score),
			r.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return rows
}

func rankLabel(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	}
	return fmt.Sprintf("%d", rank)
}
