// Package config handles loading and parsing the dashboard configuration file.
//
// # Overview
//
// The dashboard is a pure client: everything it needs to know is where the
// backend API lives, where the push server lives, which company and period
// to open with, and where to write its own log. This package reads that
// from a small TOML file and fills in defaults for everything else.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/librocompras/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// After the file is parsed, the environment variables SII_API_URL and
// SII_PUSH_URL override the corresponding fields. main loads an optional
// .env file into the environment before calling Load, so a developer
// checkout can point at a local backend without touching the config file.
//
// # Default Values
//
//   - Config file: ~/.config/librocompras/config.toml
//   - API endpoint: http://127.0.0.1:3000
//   - Push endpoint: <api_url>/api/events
//   - Log file: ~/.local/share/librocompras/librocompras.log
//   - Log level: info
//   - Poll interval: 60 seconds
//
// # TOML Format
//
// Example config.toml:
//
//	api_url = "http://127.0.0.1:3000"
//	push_url = "http://127.0.0.1:3001/api/events"
//	rut = "76.111.222-3"
//	mes = 8
//	anio = 2025
//	poll_seconds = 60
//	log_file = "~/.local/share/librocompras/librocompras.log"
//	log_level = "debug"
//
// All fields are optional. rut selects the company when the backend serves
// more than one; mes and anio select the opening period and default to the
// backend's most recent period when zero. Tilde expansion is performed
// automatically on paths.
//
// # Error Handling
//
// Load returns errors for:
//   - Path expansion failures (e.g. cannot determine home directory)
//   - File read errors (except os.ErrNotExist, which triggers defaults)
//   - TOML parsing errors
//
// Missing config files are NOT an error - defaults are used instead. The
// dashboard works out-of-the-box against a backend on localhost:3000.
//
// # Design Philosophy
//
// The config package is read-only and stateless - it loads configuration
// once at startup and returns an immutable Config struct. No global state
// or singleton patterns are used.
package config
