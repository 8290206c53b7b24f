// Package view derives the display projection of the purchase ledger.
//
// # Overview
//
// The package is a pure function of its inputs: given the raw detail rows
// and a State (global search, per-field filters, sort selection, column
// visibility), Apply recomputes the filtered, searched, and sorted slice
// the table renders. Nothing here owns data or talks to the network.
//
// # Pipeline
//
// Apply runs three stages in order:
//
//  1. Global search: case-insensitive substring match against the joined
//     display-formatted fields of each row (labels, formatted dates,
//     formatted currency, status, comment), so searching for "$357.000" or
//     "14-08" behaves like searching the rendered table.
//  2. Field filters: AND-combined, each ignored when zero-valued:
//     supplier RUT substring, supplier name substring, exact document-type
//     code, exact status, inclusive issue-date range, inclusive total
//     range.
//  3. Stable sort: one field and direction; zero-valued dates contribute
//     nothing to the comparison. ToggleSort flips direction on the active
//     field and resets to ascending on a new field.
//
// # Columns and Presets
//
// The 13-column layout is fixed; ColumnSet tracks per-column visibility
// with three presets (all, essential, default) plus direct toggles. It
// affects rendering only.
//
// # Export
//
// BuildWorkbook serializes the current projection into an xlsx workbook:
// fixed header, human-formatted values, column visibility ignored. The
// filename embeds the active period label and the export date.
package view
