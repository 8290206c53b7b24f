package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the fields the dashboard needs to reach its backend and
// write its own log.
type Config struct {
	APIURL      string
	PushURL     string
	Rut         string
	Mes         int
	Anio        int
	PollSeconds int
	LogFile     string
	LogLevel    string
}

const (
	defaultConfigPath  = "~/.config/librocompras/config.toml"
	defaultAPIURL      = "http://127.0.0.1:3000"
	defaultLogFile     = "~/.local/share/librocompras/librocompras.log"
	defaultLogLevel    = "info"
	defaultPollSeconds = 60
)

// Load locates and parses the dashboard config, falling back to defaults
// when missing. Environment variables SII_API_URL and SII_PUSH_URL override
// the file (main loads .env into the environment before calling this).
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIURL:      defaultAPIURL,
		LogLevel:    defaultLogLevel,
		PollSeconds: defaultPollSeconds,
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return finalize(cfg), nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL      string `toml:"api_url"`
		PushURL     string `toml:"push_url"`
		Rut         string `toml:"rut"`
		Mes         int    `toml:"mes"`
		Anio        int    `toml:"anio"`
		PollSeconds int    `toml:"poll_seconds"`
		LogFile     string `toml:"log_file"`
		LogLevel    string `toml:"log_level"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	cfg.PushURL = strings.TrimSpace(raw.PushURL)
	cfg.Rut = strings.TrimSpace(raw.Rut)
	cfg.Mes = raw.Mes
	cfg.Anio = raw.Anio
	if raw.PollSeconds > 0 {
		cfg.PollSeconds = raw.PollSeconds
	}
	cfg.LogFile = strings.TrimSpace(raw.LogFile)
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = v
	}

	return finalize(cfg), nil
}

// finalize applies environment overrides and derives the remaining paths.
func finalize(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv("SII_API_URL")); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SII_PUSH_URL")); v != "" {
		cfg.PushURL = v
	}
	if cfg.PushURL == "" {
		cfg.PushURL = strings.TrimRight(cfg.APIURL, "/") + "/api/events"
	}
	if cfg.LogFile == "" {
		cfg.LogFile = defaultLogFile
	}
	cfg.LogFile = mustExpand(cfg.LogFile)
	return cfg
}

// LogPath returns the path of the dashboard's own log file.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogFile) == "" {
		return mustExpand(defaultLogFile)
	}
	return c.LogFile
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
