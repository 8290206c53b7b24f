package ledger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiagowhuber/ConsultasSII/internal/sii"
)

type fakeBackend struct {
	empresas    []sii.Empresa
	periodos    []sii.Periodo
	resumen     []sii.ResumenCompra
	detalles    []sii.DetalleCompra
	proveedores []sii.Proveedor
	tipos       []sii.TipoDte
	llamadas    sii.Llamadas

	periodosErr error
	resumenErr  error
	detallesErr error

	tiposCalls   atomic.Int64
	detallesHook func(ctx context.Context) ([]sii.DetalleCompra, error)
	triggerCalls atomic.Int64
}

func (f *fakeBackend) FetchEmpresas(context.Context) ([]sii.Empresa, error) {
	return f.empresas, nil
}

func (f *fakeBackend) FetchPeriodos(_ context.Context, query sii.PeriodoQuery) ([]sii.Periodo, error) {
	if f.periodosErr != nil {
		return nil, f.periodosErr
	}
	var matched []sii.Periodo
	for _, p := range f.periodos {
		if (query.Mes == 0 || p.Mes == query.Mes) && (query.Anio == 0 || p.Anio == query.Anio) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

func (f *fakeBackend) FetchResumen(context.Context, int64) ([]sii.ResumenCompra, error) {
	if f.resumenErr != nil {
		return nil, f.resumenErr
	}
	return f.resumen, nil
}

func (f *fakeBackend) FetchDetalles(ctx context.Context, _ sii.DetalleQuery) ([]sii.DetalleCompra, error) {
	if f.detallesHook != nil {
		rows, err := f.detallesHook(ctx)
		if rows != nil || err != nil {
			return rows, err
		}
	}
	if f.detallesErr != nil {
		return nil, f.detallesErr
	}
	return f.detalles, nil
}

func (f *fakeBackend) FetchProveedores(context.Context) ([]sii.Proveedor, error) {
	return f.proveedores, nil
}

func (f *fakeBackend) FetchTiposDte(context.Context) ([]sii.TipoDte, error) {
	f.tiposCalls.Add(1)
	return f.tipos, nil
}

func (f *fakeBackend) FetchLlamadas(context.Context) (sii.Llamadas, error) {
	return f.llamadas, nil
}

func (f *fakeBackend) TriggerFetch(context.Context, string, int, int) error {
	f.triggerCalls.Add(1)
	return nil
}

func newTestBackend() *fakeBackend {
	return &fakeBackend{
		empresas: []sii.Empresa{{Rut: "65.145.564-2", RazonSocial: "Empresa Uno"}},
		periodos: []sii.Periodo{{ID: 9, RutEmpresa: "65.145.564-2", Anio: 2025, Mes: 8}},
		resumen: []sii.ResumenCompra{
			{TipoDte: 33, TotalDocumentos: 2, MontoNeto: "300000", MontoTotal: "357000", Estado: sii.EstadoConfirmado},
		},
		detalles: []sii.DetalleCompra{
			{
				TipoDte: 33, RutProveedor: "76.111.222-3", Folio: "101",
				FechaEmision: "2025-08-01", MontoNeto: "100000", MontoTotal: "119000",
				Estado: sii.EstadoConfirmado,
				Nota:   &sii.Nota{ID: 5, RutProveedor: "76.111.222-3", Folio: "101", TipoDte: 33, Comentario: "ok", Contabilizado: true},
			},
			{
				TipoDte: 61, RutProveedor: "77.444.555-6", Folio: "202",
				FechaEmision: "2025-08-14", MontoNeto: "200000", MontoTotal: "238000",
				Estado: sii.EstadoPendiente,
			},
		},
		proveedores: []sii.Proveedor{{Rut: "77.444.555-6", RazonSocial: "Proveedor Dos"}},
		tipos:       []sii.TipoDte{{Codigo: 33, Descripcion: "Factura Electrónica"}},
	}
}

func newTestStore(backend Backend) *Store {
	return NewStore(backend, zerolog.Nop())
}

func TestStore_LoadAllDenormalizes(t *testing.T) {
	t.Parallel()

	s := newTestStore(newTestBackend())
	if err := s.LoadAll(context.Background(), "65.145.564-2", 8, 2025); err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}

	snap := s.Snapshot()
	if snap.Loading {
		t.Fatalf("Loading = true after LoadAll, want false")
	}
	if snap.LastError != nil {
		t.Fatalf("LastError = %v, want nil", snap.LastError)
	}
	if !snap.HasPeriodo || snap.Periodo.ID != 9 {
		t.Fatalf("Periodo = %#v, want id=9", snap.Periodo)
	}
	if snap.Empresa.RazonSocial != "Empresa Uno" {
		t.Fatalf("Empresa = %#v, want resolved razon social", snap.Empresa)
	}
	if len(snap.Rows) != 2 {
		t.Fatalf("Rows = %d, want 2", len(snap.Rows))
	}

	first := snap.Rows[0]
	if first.TipoDteLabel != "Factura Electrónica" {
		t.Fatalf("TipoDteLabel = %q, want reference label", first.TipoDteLabel)
	}
	if first.MontoNeto != 100000 || first.MontoTotal != 119000 {
		t.Fatalf("montos = %v/%v, want parsed floats", first.MontoNeto, first.MontoTotal)
	}
	if first.Comentario != "ok" || !first.Contabilizado || first.NotaID != 5 {
		t.Fatalf("nota fields = %#v, want flattened annotation", first)
	}

	second := snap.Rows[1]
	if second.TipoDteLabel != "Tipo 61" {
		t.Fatalf("TipoDteLabel = %q, want synthesized fallback", second.TipoDteLabel)
	}
	if second.RazonSocial != "Proveedor Dos" {
		t.Fatalf("RazonSocial = %q, want flattened from proveedores", second.RazonSocial)
	}

	if len(snap.Resumen) != 1 || snap.Resumen[0].MontoTotal != 357000 {
		t.Fatalf("Resumen = %#v, want parsed aggregate", snap.Resumen)
	}
}

func TestStore_LoadAllNoPeriods(t *testing.T) {
	t.Parallel()

	s := newTestStore(newTestBackend())
	err := s.LoadAll(context.Background(), "65.145.564-2", 1, 2020)
	if !errors.Is(err, ErrNoPeriods) {
		t.Fatalf("LoadAll error = %v, want ErrNoPeriods", err)
	}

	snap := s.Snapshot()
	if snap.Loading {
		t.Fatalf("Loading = true after failed LoadAll, want false")
	}
	if snap.ErrorMessage() == "" {
		t.Fatalf("ErrorMessage empty, want non-empty domain message")
	}
	if snap.HasPeriodo {
		t.Fatalf("HasPeriodo = true, want false")
	}
}

func TestStore_LoadAllFanOutFailureAborts(t *testing.T) {
	t.Parallel()

	backend := newTestBackend()
	backend.resumenErr = errors.New("boom")
	s := newTestStore(backend)

	err := s.LoadAll(context.Background(), "65.145.564-2", 8, 2025)
	if err == nil {
		t.Fatalf("LoadAll returned nil error, want resumen failure")
	}
	snap := s.Snapshot()
	if len(snap.Rows) != 0 {
		t.Fatalf("Rows = %d after aborted load, want 0", len(snap.Rows))
	}
	if snap.LastError == nil {
		t.Fatalf("LastError = nil, want recorded failure")
	}
}

func TestStore_StaleLoadDiscarded(t *testing.T) {
	t.Parallel()

	backend := newTestBackend()
	staleRows := backend.detalles // two rows
	backend.detalles = backend.detalles[:1]

	release := make(chan struct{})
	var detalleCalls atomic.Int64
	backend.detallesHook = func(ctx context.Context) ([]sii.DetalleCompra, error) {
		if detalleCalls.Add(1) == 1 {
			// First load blocks until released, then answers with the
			// two-row (stale) result.
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return staleRows, nil
		}
		return nil, nil
	}
	s := newTestStore(backend)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.LoadAll(context.Background(), "65.145.564-2", 8, 2025)
	}()

	// Wait until the first load reaches the detail fetch before issuing the
	// second load.
	deadline := time.After(2 * time.Second)
	for detalleCalls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("first load never reached the detail fetch")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := s.LoadAll(context.Background(), "65.145.564-2", 8, 2025); err != nil {
		t.Fatalf("second LoadAll returned error: %v", err)
	}
	afterSecond := s.Snapshot()
	if len(afterSecond.Rows) != 1 {
		t.Fatalf("Rows = %d after second load, want 1", len(afterSecond.Rows))
	}

	// Let the first (older) load finish; its result must be discarded.
	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first LoadAll returned error: %v", err)
	}
	final := s.Snapshot()
	if len(final.Rows) != 1 {
		t.Fatalf("Rows = %d after stale load completed, want 1 (stale result discarded)", len(final.Rows))
	}
}

func TestStore_ReferenceDataCachedUntilInvalidated(t *testing.T) {
	t.Parallel()

	backend := newTestBackend()
	s := newTestStore(backend)
	ctx := context.Background()

	if err := s.LoadAll(ctx, "65.145.564-2", 8, 2025); err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	if err := s.LoadAll(ctx, "65.145.564-2", 8, 2025); err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	if got := backend.tiposCalls.Load(); got != 1 {
		t.Fatalf("tipos fetched %d times across two loads, want 1 (TTL cache)", got)
	}

	s.InvalidateReferenceData()
	if err := s.LoadAll(ctx, "65.145.564-2", 8, 2025); err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	if got := backend.tiposCalls.Load(); got != 2 {
		t.Fatalf("tipos fetched %d times after invalidation, want 2", got)
	}
}

func TestStore_ApplyNotaPatchesInPlace(t *testing.T) {
	t.Parallel()

	s := newTestStore(newTestBackend())
	if err := s.LoadAll(context.Background(), "65.145.564-2", 8, 2025); err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}

	s.ApplyNota(sii.Nota{
		ID: 42, RutProveedor: "77.444.555-6", Folio: "202", TipoDte: 61,
		Comentario: "pendiente de pago", Pagado: false, Contabilizado: true,
	})
	snap := s.Snapshot()
	if len(snap.Rows) != 2 {
		t.Fatalf("ApplyNota changed row count: %d, want 2", len(snap.Rows))
	}
	patched := snap.Rows[1]
	if patched.NotaID != 42 || patched.Comentario != "pendiente de pago" || !patched.Contabilizado {
		t.Fatalf("row not patched: %#v", patched)
	}

	s.RemoveNota(patched.Key())
	snap = s.Snapshot()
	if snap.Rows[1].NotaID != 0 || snap.Rows[1].Comentario != "" {
		t.Fatalf("RemoveNota left annotation fields: %#v", snap.Rows[1])
	}

	// Unknown key is a no-op, never an append.
	s.ApplyNota(sii.Nota{RutProveedor: "1-9", Folio: "999", TipoDte: 33})
	if got := len(s.Snapshot().Rows); got != 2 {
		t.Fatalf("ApplyNota with unknown key changed row count: %d, want 2", got)
	}
}

func TestStore_SnapshotClones(t *testing.T) {
	t.Parallel()

	s := newTestStore(newTestBackend())
	if err := s.LoadAll(context.Background(), "65.145.564-2", 8, 2025); err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}

	snap := s.Snapshot()
	snap.Rows[0].Comentario = "mutado"
	if got := s.Snapshot().Rows[0].Comentario; got == "mutado" {
		t.Fatalf("Snapshot should clone rows; mutation leaked")
	}
}

func TestStore_RefreshLlamadasAndTrigger(t *testing.T) {
	t.Parallel()

	backend := newTestBackend()
	backend.llamadas = sii.Llamadas{Llamadas: 7, Limite: 50}
	s := newTestStore(backend)

	if err := s.RefreshLlamadas(context.Background()); err != nil {
		t.Fatalf("RefreshLlamadas returned error: %v", err)
	}
	if got := s.Snapshot().Llamadas; got.Llamadas != 7 || got.Limite != 50 {
		t.Fatalf("Llamadas = %#v, want 7/50", got)
	}

	if err := s.TriggerFetch(context.Background(), "65.145.564-2", 8, 2025); err != nil {
		t.Fatalf("TriggerFetch returned error: %v", err)
	}
	if backend.triggerCalls.Load() != 1 {
		t.Fatalf("trigger calls = %d, want 1", backend.triggerCalls.Load())
	}
	if !s.Snapshot().HasPeriodo {
		t.Fatalf("TriggerFetch did not reload the period")
	}
}
