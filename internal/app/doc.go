// Package app provides the orchestration layer for the dashboard.
//
// # Overview
//
// This package wires together configuration, logging, the API gateway, the
// data stores, the push channel, and the UI to create the complete TUI
// experience. It serves as the composition root where all dependencies are
// initialized and connected.
//
// # Architecture
//
// Run follows a simple initialization pattern:
//
//  1. Load configuration from ~/.config/librocompras/config.toml
//  2. Load user preferences (column layout, notification permission)
//  3. Open the file-backed logger (the TUI owns the terminal)
//  4. Initialize the HTTP client for the backend API
//  5. Create the ledger and annotation stores, cross-wired so that every
//     confirmed annotation write also patches the visible ledger rows
//  6. Create the notification center and connect the push channel
//  7. Probe the backend once so a cold (sleeping) deployment starts waking
//  8. Launch the background diagnostics poller
//  9. Kick off the initial period load in the background
//  10. Start the TUI and block until the user exits or the context cancels
//
// On teardown the push channel is disconnected, pending toast timers are
// stopped, and Run waits for in-flight annotation reconciliations before
// returning.
//
// # Polling Behavior
//
// The poller refreshes only the SII call-count diagnostics; the document
// data itself reloads on demand (user action) and through the initial
// load. The cadence comes from poll_seconds (default: 60 seconds) and
// backs off exponentially while the backend is failing, capped at 15
// minutes. The UI reads store snapshots at its own refresh rate, so slow
// backend calls never block rendering.
//
// # Error Handling
//
// The app package distinguishes between fatal and recoverable errors:
//
// Fatal errors (returned from Run):
//   - Configuration file invalid
//   - Logger or API client initialization failure
//
// Recoverable errors (logged, the app keeps running):
//   - Wake probe failure (the first load just takes longer)
//   - Push channel connection failure (freshness degrades, data does not)
//   - Initial load failure (recorded in the ledger snapshot for the UI)
//   - Periodic diagnostics poll failures
//
// # Configuration
//
// The Options struct allows the command line to override the config file:
//
//   - ConfigPath: path to config.toml (default: ~/.config/librocompras/config.toml)
//   - PrefsPath: path to prefs.toml (default: ~/.config/librocompras/prefs.toml)
//   - PollEvery: diagnostics poll interval in seconds
//   - Rut, Mes, Anio: company and opening period
package app
