// Command typerace is the terminal client: local practice, solo runs that
// post to the leaderboard, and two-player races.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mcdev12/typerace/go/internal/clientconfig"
	"github.com/mcdev12/typerace/go/internal/race"
	"github.com/mcdev12/typerace/go/internal/tui"
)

var (
	configPath string
	serverURL  string
	playerName string
	countdown  int
	noSound    bool
	logLevel   string
)

var errNotTerminal = errors.New("typerace needs an interactive terminal")

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "typerace",
		Short:         "Terminal typing races",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPracticeCmd,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setupLogging()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", clientconfig.DefaultConfigPath(), "config file")
	flags.StringVar(&serverURL, "server", "", "server URL (overrides config)")
	flags.StringVar(&playerName, "name", "", "display name (overrides config)")
	flags.IntVar(&countdown, "countdown", 0, "countdown seconds before typing starts (overrides config)")
	flags.BoolVar(&noSound, "no-sound", false, "disable the terminal bell on mistakes")
	flags.StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level")

	rootCmd.AddCommand(newPracticeCmd())
	rootCmd.AddCommand(newSoloCmd())
	rootCmd.AddCommand(newRaceCmd())
	rootCmd.AddCommand(newLeaderboardCmd())
	rootCmd.AddCommand(newHistoryCmd())

	return rootCmd
}

// setupLogging sends the global logger to a file so log lines never draw
// over the TUI.
func setupLogging() error {
	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	path := clientconfig.DefaultLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return nil
}

// loadConfig resolves the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (clientconfig.Config, error) {
	cfg, err := clientconfig.Load(configPath)
	if err != nil {
		return clientconfig.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("server") && serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if cmd.Flags().Changed("name") && strings.TrimSpace(playerName) != "" {
		cfg.PlayerName = strings.TrimSpace(playerName)
	}
	if cmd.Flags().Changed("countdown") {
		if countdown <= 0 {
			return clientconfig.Config{}, fmt.Errorf("--countdown must be positive, got %d", countdown)
		}
		cfg.Countdown = countdown
	}
	if noSound {
		cfg.Sound = false
	}

	log.Info().
		Str("config", cfg.Path).
		Str("server", cfg.ServerURL).
		Str("player_id", cfg.PlayerID).
		Msg("client config loaded")
	return cfg, nil
}

func requireTerminal() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errNotTerminal
	}
	return nil
}

// bellCues rings the terminal bell on mistakes.
func bellCues(enabled bool, out io.Writer) tui.CueSink {
	if !enabled {
		return nil
	}
	return func(c race.Cue) {
		if c == race.CueError {
			fmt.Fprint(out, "\a")
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func logErrf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
}
