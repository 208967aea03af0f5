package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mcdev12/typerace/go/internal/clientconfig"
	"github.com/mcdev12/typerace/go/internal/history"
	"github.com/mcdev12/typerace/go/internal/leaderboard"
	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/tui"
)

var (
	historyLast int
	historyBest bool
)

func newLeaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the ranked leaderboard",
		Args:  cobra.NoArgs,
		RunE:  runLeaderboardCmd,
	}
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show runs recorded on this machine",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLast, "last", 20, "number of runs to show")
	cmd.Flags().BoolVar(&historyBest, "best", false, "show the best solo and race runs only")
	return cmd
}

func runLeaderboardCmd(cmd *cobra.Command, _ []string) error {
	if err := requireTerminal(); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	lb := leaderboard.NewClient(nil, cfg.ServerURL)
	fetch := func(ctx context.Context) ([]models.RankedRecord, error) {
		return lb.List(ctx)
	}
	return runProgram(cmd.Context(), tui.NewLeaderboardModel(fetch, cfg.PlayerID))
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if historyLast <= 0 {
		return fmt.Errorf("--last must be positive, got %d", historyLast)
	}
	st, err := history.Open(clientconfig.DefaultHistoryPath())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close history: %v\n", cerr)
		}
	}()

	ctx := contextOf(cmd)
	var runs []history.Run
	if historyBest {
		for _, mode := range []history.Mode{history.ModeSolo, history.ModeRace} {
			best, err := st.Best(ctx, mode)
			if err != nil {
				return fmt.Errorf("failed to load best %s run: %w", mode, err)
			}
			if best != nil {
				runs = append(runs, *best)
			}
		}
	} else {
		runs, err = st.Recent(ctx, historyLast)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
	}

	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "No runs recorded yet.")
		return nil
	}
	fmt.Fprintln(os.Stdout, renderRuns(runs))
	return nil
}

func renderRuns(runs []history.Run) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))).
		Headers("When", "Mode", "Room", "WPM", "Acc", "Err", "Time", "Score").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	for _, r := range runs {
		room := r.RoomID
		if room == "" {
			room = "-"
		}
		t.Row(
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			string(r.Mode),
			room,
			fmt.Sprintf("%d", r.WPM),
			fmt.Sprintf("%d%%", r.Accuracy),
			fmt.Sprintf("%d", r.Errors),
			r.Duration.Round(100*time.Millisecond).String(),
			fmt.Sprintf("%.1f", r.Score),
		)
	}
	return t.Render()
}
