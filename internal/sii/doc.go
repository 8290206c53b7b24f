// Package sii provides an HTTP client for the ConsultasSII backend API.
//
// # Overview
//
// This package defines the remote data gateway for the Libro de Compras
// dashboard. It handles HTTP communication, JSON serialization, and
// type-safe representation of companies, periods, purchase summaries,
// purchase detail rows, annotations, and reference data.
//
// # Architecture
//
// The package is split into three files:
//
//   - client.go: HTTP client implementation and request/response handling
//   - types.go: Data structures mirroring the backend API schema
//   - errors.go: Typed errors and message extraction helpers
//
// # Client Usage
//
// Create a client using the API URL from configuration:
//
//	client, err := sii.NewClient("127.0.0.1:3000")
//	if err != nil {
//		log.Fatal().Err(err).Msg("failed to create client")
//	}
//
//	periodos, err := client.FetchPeriodos(ctx, sii.PeriodoQuery{
//		Rut: "65.145.564-2", Mes: 8, Anio: 2025,
//	})
//
// # API Endpoints
//
// Read endpoints:
//
//   - GET /api/dte/empresas: Registered companies
//   - GET /api/dte/periodos: Periods, filterable by rut/mes/anio
//   - GET /api/dte/resumen/{id}: Per-document-type aggregates for a period
//   - GET /api/dte/detalles: Purchase documents for a period
//   - GET /api/dte/proveedores: Supplier reference data
//   - GET /api/dte/tipos: Document-type reference data
//   - GET /api/notas, /api/notas/buscar: Annotations
//   - GET /api/sii/llamadas: SII call-count diagnostics
//   - GET /health: Wake probe for cold backend instances
//
// Write endpoints:
//
//   - POST /api/notas: Create annotation
//   - PUT /api/notas/{id}: Full annotation update
//   - PUT /api/notas/{comentario,contabilizado,pagado}: Partial upserts by key
//   - DELETE /api/notas: Delete annotation by key
//   - POST /api/sii/fetch: Trigger a fetch-and-store run against the SII
//
// None of the write operations are retried by the client; they are not
// idempotent and the caller owns the retry affordance.
//
// # Request Handling
//
// All requests:
//   - Use context for cancellation
//   - Set Accept: application/json and User-Agent headers
//   - Share a single five-minute timeout (the SII fetch is slow)
//   - Append optional query parameters only when they carry a value
//   - Return wrapped errors with context about what failed
//
// # Error Handling
//
// The client distinguishes between several error types:
//
//   - Client initialization errors: invalid API URL format
//   - Network errors: connection refused, timeout, DNS failure
//   - *StatusError: 4xx/5xx responses, carrying the server message when the
//     body included one
//   - Deserialization errors: malformed JSON responses
//
// IsTimeout separates the shared client timeout from server-returned
// errors; UserMessage extracts a display string in order of preference
// (server message, timeout hint, raw error text).
//
// # Monetary Fields
//
// The backend transmits monetary amounts as decimal strings to avoid float
// precision loss in transit. ParseMonto converts them to float64 for
// client-side arithmetic; MontoOrZero collapses blanks and malformed
// columns to zero so totals never fail on partial rows.
//
// # Thread Safety
//
// The Client struct is safe for concurrent use. The underlying http.Client
// handles connection pooling and concurrent requests internally.
package sii
