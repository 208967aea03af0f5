package clientconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

const (
	DefaultServerURL = "http://localhost:8080"
	DefaultCountdown = 5
)

// FileConfig is the TOML file. Nil fields are unset.
type FileConfig struct {
	Server ServerSection `toml:"server"`
	Player PlayerSection `toml:"player"`
	Race   RaceSection   `toml:"race"`
}

type ServerSection struct {
	URL *string `toml:"url"`
}

type PlayerSection struct {
	ID     *string `toml:"id"`
	Name   *string `toml:"name"`
	UserID *string `toml:"user-id"`
}

type RaceSection struct {
	Countdown *int  `toml:"countdown"`
	Sound     *bool `toml:"sound"`
}

// Config is the resolved client configuration.
type Config struct {
	Path       string
	ServerURL  string
	PlayerID   string
	PlayerName string
	UserID     string
	Countdown  int
	Sound      bool
}

// LoadFile reads a TOML config from path. A missing file is not an error.
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// SaveFile writes cfg to path, creating its directory.
func SaveFile(path string, cfg FileConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return f.Close()
}

// Load resolves the config at path. The first load generates a player id and
// writes it back so the id survives restarts and reconnects.
func Load(path string) (Config, error) {
	file, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}

	if file.Player.ID == nil || strings.TrimSpace(*file.Player.ID) == "" {
		id := uuid.NewString()
		file.Player.ID = &id
		if err := SaveFile(path, file); err != nil {
			return Config{}, fmt.Errorf("failed to persist player id: %w", err)
		}
	}

	cfg := Config{
		Path:       path,
		ServerURL:  DefaultServerURL,
		PlayerID:   strings.TrimSpace(*file.Player.ID),
		PlayerName: defaultName(),
		Countdown:  DefaultCountdown,
		Sound:      true,
	}
	if file.Server.URL != nil && *file.Server.URL != "" {
		cfg.ServerURL = *file.Server.URL
	}
	if file.Player.Name != nil && strings.TrimSpace(*file.Player.Name) != "" {
		cfg.PlayerName = strings.TrimSpace(*file.Player.Name)
	}
	if file.Player.UserID != nil {
		cfg.UserID = *file.Player.UserID
	}
	if file.Race.Countdown != nil {
		if *file.Race.Countdown <= 0 {
			return Config{}, fmt.Errorf("race.countdown must be positive, got %d", *file.Race.Countdown)
		}
		cfg.Countdown = *file.Race.Countdown
	}
	if file.Race.Sound != nil {
		cfg.Sound = *file.Race.Sound
	}
	return cfg, nil
}

func defaultName() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "player"
}
