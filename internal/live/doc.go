// Package live receives real-time document pushes and surfaces them as
// notifications.
//
// # Channel
//
// Channel keeps one SSE subscription to the push server and decodes
// "new_record" events into typed payloads for a callback. Its life cycle
// is deliberately simple: Connect is idempotent, Disconnect is final for
// the current stream, and a dropped connection lands in Disconnected
// without any retry loop. The channel is independent of the polling and
// load pipeline; losing it degrades freshness, never correctness.
//
// # Notifications
//
// Center owns the toast side. The first event triggers a blocking
// permission prompt, and a denial is remembered and silences the center
// without errors. Toasts are deduplicated by document folio, replace an
// existing toast for the same folio, auto-dismiss after a fixed delay,
// and expose an unread counter for the header bell. Clicking a toast
// raises the application.
package live
