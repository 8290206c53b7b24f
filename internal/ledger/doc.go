// Package ledger owns the authoritative in-memory snapshot of one
// accounting period: company and period metadata, per-document-type
// aggregates, and the denormalized purchase detail rows.
//
// # Overview
//
// The store orchestrates the multi-request load sequence for a period and
// mediates between the loaders and the UI the same way a daemon poller
// feeds a dashboard: loaders write through Update-style actions, the UI
// reads cloned snapshots.
//
// # Load Sequence
//
// LoadAll(rut, mes, anio) performs, in order:
//
//  1. Resolve the owning company from cached reference data
//  2. Fetch the periods matching mes/anio; zero matches is the domain
//     error ErrNoPeriods, first match wins otherwise
//  3. Fetch the summary and detail collections concurrently (fan-out/join:
//     either failure aborts the combined load)
//  4. Denormalize: parse monetary strings, flatten document-type labels and
//     supplier names onto each row with synthesized fallbacks
//  5. Commit the snapshot, unless a newer load was issued meanwhile
//
// # Stale-Response Protection
//
// Overlapping loads race in the obvious way: the response that arrives last
// wins, regardless of which request was issued last. The store guards
// against this with a monotonic sequence token: beginLoad stamps the
// token, commit and failure paths compare it against the latest issued one
// and discard stale results.
//
// # Loading and Error Slots
//
// Every load raises the Loading flag on entry and clears it on both the
// commit and failure paths. The single LastError slot is reset at the start
// of each load and populated on failure; ErrorMessage renders it for
// display.
//
// # Reference Data
//
// Document types, suppliers, and companies are read-only reference
// collections cached with a 15-minute TTL and an explicit
// InvalidateReferenceData call. Reference fetch failures never abort a
// period load; rows fall back to synthesized labels.
//
// # Annotation Side Channel
//
// The annotation store mutates ledger-adjacent fields (comment, accounting
// flag, paid flag) through ApplyNota/RemoveNota, which patch the matching
// row in place by composite-key lookup. The ledger never creates rows for
// annotations; a nota without a loaded row is a no-op here.
package ledger
