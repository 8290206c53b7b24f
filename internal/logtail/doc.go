// Package logtail provides utilities for reading and formatting log files.
//
// # Overview
//
// This package implements tail-like reading of the dashboard's own log
// file for display in the TUI. Read keeps only the last N lines in a ring
// buffer, so large log files never load fully into memory.
//
// # Formatting
//
// The dashboard logs structured JSON through zerolog. FormatLine rewrites
// one JSON entry into a compact "HH:MM:SS LEVEL message (error)" line for
// the log view; anything that does not parse as JSON passes through
// unchanged, so foreign lines in the file still display.
//
// # Error Handling
//
// A missing log file is not an error: Read returns no lines, and the log
// view simply renders empty. Read errors on an existing file (permission,
// I/O) are returned to the caller.
package logtail
