// Package notas owns the per-document user annotations: comment text plus
// the accounting and paid bookkeeping flags.
//
// # Identity
//
// Annotations are keyed by the composite identity (supplier RUT + folio +
// document-type code) uniformly across the whole system. A folio alone is
// not unique: two suppliers can issue the same folio, and the same supplier
// can reuse a folio across document types.
//
// # Optimistic Updates
//
// Each partial update (UpdateComentario, UpdateContabilizado, UpdatePagado)
// follows a two-tier protocol that trades consistency for responsiveness:
//
//  1. Issue the server call; any failure is recorded and returned.
//  2. On success, look up the local entry by key. When found, patch it in
//     place and stamp a fresh update timestamp. When missing, synthesize a
//     placeholder entry with the sentinel id 0, tagged StatePending.
//  3. For placeholders, launch a best-effort background reconciliation
//     fetch that replaces the pending entry with the authoritative server
//     record (StateConfirmed). Reconciliation failures are swallowed; the
//     placeholder stays authoritative until the next full load.
//
// The pending/confirmed tag makes the speculative state explicit rather
// than hiding it behind a magic id.
//
// # Ledger Mirroring
//
// The ledger shows annotation fields inline on its rows. The store pushes
// every local change through the WithApplied/WithRemoved callbacks so the
// ledger can patch the matching row by keyed lookup: replace in place,
// never append.
//
// # Teardown
//
// Wait blocks until in-flight reconciliations finish; the app calls it on
// shutdown so no goroutine outlives the UI.
package notas
