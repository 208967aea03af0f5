package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/typerace/go/internal/client"
	"github.com/mcdev12/typerace/go/internal/clientconfig"
	"github.com/mcdev12/typerace/go/internal/history"
	"github.com/mcdev12/typerace/go/internal/leaderboard"
	"github.com/mcdev12/typerace/go/internal/passages"
	"github.com/mcdev12/typerace/go/internal/protocol"
	"github.com/mcdev12/typerace/go/internal/race"
	"github.com/mcdev12/typerace/go/internal/tui"
)

const submitTimeout = 10 * time.Second

var raceText string

func newPracticeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "practice",
		Short: "Type a random passage; nothing is saved",
		Args:  cobra.NoArgs,
		RunE:  runPracticeCmd,
	}
}

func newSoloCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "solo",
		Short: "Type a random passage and post the result to the leaderboard",
		Args:  cobra.NoArgs,
		RunE:  runSoloCmd,
	}
}

func newRaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "race <room>",
		Short: "Join a two-player race, creating the room if it does not exist",
		Args:  cobra.ExactArgs(1),
		RunE:  runRaceCmd,
	}
	cmd.Flags().StringVar(&raceText, "text", "", "passage to use when the room is created")
	return cmd
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	if err := requireTerminal(); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	model := tui.NewLocalModel(tui.LocalOptions{
		Title:         "Practice",
		CountdownFrom: cfg.Countdown,
		NextPassage:   nextPassage(passages.NewStatic(passages.Builtin)),
		Cues:          bellCues(cfg.Sound, os.Stderr),
	})
	return runProgram(cmd.Context(), model)
}

func runSoloCmd(cmd *cobra.Command, _ []string) error {
	if err := requireTerminal(); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
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

	lb := leaderboard.NewClient(nil, cfg.ServerURL)
	var pending sync.WaitGroup

	model := tui.NewLocalModel(tui.LocalOptions{
		Title:         "Solo",
		CountdownFrom: cfg.Countdown,
		NextPassage:   nextPassage(passages.NewStatic(passages.Builtin)),
		Cues:          bellCues(cfg.Sound, os.Stderr),
		OnFinish: func(res tui.LocalResult) {
			recordRun(st, history.ModeSolo, "", res.Passage, res.Metrics, res.StartedAt, res.Duration)
			pending.Add(1)
			go func() {
				defer pending.Done()
				submitResult(lb, cfg, res.Metrics)
			}()
		},
	})
	err = runProgram(cmd.Context(), model)
	pending.Wait()
	return err
}

func runRaceCmd(cmd *cobra.Command, args []string) error {
	if err := requireTerminal(); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	roomName := args[0]

	fallback, err := passageFromFlag(raceText)
	if err != nil {
		return err
	}
	if fallback == "" {
		fallback = nextPassage(passages.NewStatic(passages.Builtin))()
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancelDial := context.WithTimeout(ctx, client.DefaultTransportConfig().HandshakeTimeout)
	transport, err := client.Dial(dialCtx, cfg.ServerURL, cfg.PlayerID, client.DefaultTransportConfig())
	cancelDial()
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.ServerURL, err)
	}
	defer transport.Close()

	st, err := history.Open(clientconfig.DefaultHistoryPath())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer st.Close()

	r := client.NewRace(transport, client.RaceConfig{
		PlayerID:      cfg.PlayerID,
		PlayerName:    cfg.PlayerName,
		UserID:        cfg.UserID,
		CountdownFrom: cfg.Countdown,
		CountdownStep: time.Second,
	}, nil, func(res client.Result) {
		recordRun(st, history.ModeRace, res.RoomID, res.Passage, res.Metrics, res.StartedAt, res.Duration)
	})

	runCtx, cancelRun := context.WithCancel(ctx)
	raceDone := make(chan error, 1)
	go func() { raceDone <- r.Run(runCtx) }()

	err = runProgram(ctx, tui.NewRaceModel(r, cfg.PlayerID, roomName, fallback, bellCues(cfg.Sound, os.Stderr)))
	cancelRun()
	if rerr := <-raceDone; rerr != nil && err == nil && !errors.Is(rerr, context.Canceled) {
		log.Error().Err(rerr).Str("room_id", roomName).Msg("race loop stopped")
	}
	return err
}

func runProgram(ctx context.Context, model tea.Model) error {
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(contextOrBackground(ctx)))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func nextPassage(src *passages.Static) func() string {
	return func() string {
		text, err := src.Pick(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("failed to pick passage")
			return "the quick brown fox jumps over the lazy dog"
		}
		return text
	}
}

func recordRun(st *history.Store, mode history.Mode, roomID, passage string, m race.Metrics, startedAt time.Time, d time.Duration) {
	id, err := st.Record(context.Background(), history.Run{
		Mode:      mode,
		RoomID:    roomID,
		WPM:       m.WPM,
		Accuracy:  m.Accuracy,
		Errors:    m.Errors,
		Chars:     len([]rune(passage)),
		StartedAt: startedAt,
		Duration:  d,
	})
	if err != nil {
		log.Error().Err(err).Str("mode", string(mode)).Msg("failed to record run")
		return
	}
	log.Info().Int64("run_id", id).Str("mode", string(mode)).Int("wpm", m.WPM).Msg("run recorded")
}

// submitResult posts a solo result. Failures are logged and never reach the UI.
func submitResult(lb *leaderboard.Client, cfg clientconfig.Config, m race.Metrics) {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	rec, err := lb.Submit(ctx, leaderboard.SubmitRequest{
		PlayerID: cfg.PlayerID,
		UserID:   cfg.UserID,
		Stats:    m.Stats(),
	})
	if err != nil {
		log.Error().Err(err).Str("player_id", cfg.PlayerID).Msg("failed to submit solo result")
		return
	}
	log.Info().Str("record_id", rec.ID.String()).Msg("solo result submitted")
}

func contextOf(cmd *cobra.Command) context.Context {
	return contextOrBackground(cmd.Context())
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// passageFromFlag collapses the line breaks and tabs of --text into single
// spaces so the passage can be typed to the end.
func passageFromFlag(text string) (string, error) {
	text = strings.Join(strings.Fields(text), " ")
	if err := protocol.ValidatePassage(text); err != nil {
		return "", fmt.Errorf("--text: %w", err)
	}
	return text, nil
}
