// Package ui implements the terminal user interface of the dashboard.
//
// # Overview
//
// The UI is a single bubbletea Model over the shared stores. It never owns
// data: every second it re-reads the ledger snapshot, recomputes the view
// projection (search, filters, sort), and pushes the result into a
// bubbles/table. Slow backend calls run as commands in the background and
// land as messages, so the table stays responsive during loads.
//
// # Layout
//
//   - Header: company, period label, live-push connection dot, SII
//     call-count quota, notification bell, loading and error indicators
//   - Filter bar: visible/total document counts, totals over the filtered
//     set, active sort, estado and tipo filters, column preset
//   - Toast overlay: active notifications from the live event channel
//   - Table: the projected rows, visible columns only
//   - Status line and key help
//
// # Modes
//
// The model runs in one mode at a time: the table (default), the global
// search input (projection narrows live while typing), the comment editor
// for the selected document, the log view (tail of the dashboard's own
// log file), and the notification permission modal. The permission modal
// appears when the notification center asks its blocking prompt; the
// answer is persisted to the preferences file.
//
// # Annotations
//
// Comment edits and the contabilizado/pagado toggles go through the
// annotation store; its applied-callback patches the ledger rows, so the
// next refresh shows the optimistic result without a network round trip.
package ui
