package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tiagowhuber/ConsultasSII/internal/sii"
)

// ErrNoPeriods is the domain error for a month/year selection with no
// stored period. It is distinct from transport errors: the backend answered,
// there is simply nothing to show.
var ErrNoPeriods = errors.New("no se encontraron periodos para la selección")

// Backend is the slice of the API the ledger store consumes.
type Backend interface {
	FetchEmpresas(ctx context.Context) ([]sii.Empresa, error)
	FetchPeriodos(ctx context.Context, query sii.PeriodoQuery) ([]sii.Periodo, error)
	FetchResumen(ctx context.Context, periodoID int64) ([]sii.ResumenCompra, error)
	FetchDetalles(ctx context.Context, query sii.DetalleQuery) ([]sii.DetalleCompra, error)
	FetchProveedores(ctx context.Context) ([]sii.Proveedor, error)
	FetchTiposDte(ctx context.Context) ([]sii.TipoDte, error)
	FetchLlamadas(ctx context.Context) (sii.Llamadas, error)
	TriggerFetch(ctx context.Context, rut string, mes, anio int) error
}

// Ensure the HTTP client satisfies the store's contract at compile time.
var _ Backend = (*sii.Client)(nil)

// Snapshot represents the latest period data available to the UI.
type Snapshot struct {
	Empresa    sii.Empresa
	Periodo    sii.Periodo
	HasPeriodo bool
	Resumen    []ResumenRow
	Rows       []Row
	Llamadas   sii.Llamadas

	Loading     bool
	LastUpdated time.Time
	LastError   error
}

// ErrorMessage returns the snapshot error as a display string.
func (s Snapshot) ErrorMessage() string {
	return sii.UserMessage(s.LastError)
}

const defaultReferenceTTL = 15 * time.Minute

// Store owns the authoritative in-memory snapshot of one period plus the
// cached reference data. Reads get clones; loads are serialized by a
// monotonic sequence token so a stale response can never overwrite a newer
// one.
type Store struct {
	backend Backend
	log     zerolog.Logger

	mu       sync.RWMutex
	snapshot Snapshot
	seq      uint64 // latest issued load token

	refTTL         time.Duration
	tipos          map[int]string
	tiposLoaded    time.Time
	proveedores    map[string]string
	provsLoaded    time.Time
	empresas       []sii.Empresa
	empresasLoaded time.Time
}

// NewStore builds a Store backed by the given API client.
func NewStore(backend Backend, log zerolog.Logger) *Store {
	return &Store{
		backend: backend,
		log:     log,
		refTTL:  defaultReferenceTTL,
	}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Rows = cloneRows(s.snapshot.Rows)
	snap.Resumen = cloneResumen(s.snapshot.Resumen)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

// LoadAll resolves the company, picks the first period matching mes/anio,
// fetches the summary and detail collections concurrently, and commits the
// denormalized result. The load both records any failure in the snapshot
// error slot and returns it.
func (s *Store) LoadAll(ctx context.Context, rut string, mes, anio int) error {
	seq := s.beginLoad()

	empresa, periodo, resumen, rows, err := s.fetchAll(ctx, rut, mes, anio)
	if err != nil {
		s.failLoad(seq, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		// A newer load was issued while this one was in flight.
		s.log.Debug().Uint64("seq", seq).Msg("discarding stale period load")
		return nil
	}
	s.snapshot.Empresa = empresa
	s.snapshot.Periodo = periodo
	s.snapshot.HasPeriodo = true
	s.snapshot.Resumen = resumen
	s.snapshot.Rows = rows
	s.snapshot.Loading = false
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	return nil
}

func (s *Store) fetchAll(ctx context.Context, rut string, mes, anio int) (sii.Empresa, sii.Periodo, []ResumenRow, []Row, error) {
	empresa := s.resolveEmpresa(ctx, rut)

	periodos, err := s.backend.FetchPeriodos(ctx, sii.PeriodoQuery{Rut: rut, Mes: mes, Anio: anio})
	if err != nil {
		return sii.Empresa{}, sii.Periodo{}, nil, nil, fmt.Errorf("fetch periodos: %w", err)
	}
	if len(periodos) == 0 {
		return sii.Empresa{}, sii.Periodo{}, nil, nil, ErrNoPeriods
	}
	// Policy: first returned period wins; the backend enforces uniqueness of
	// rut+anio+mes so ties only appear on malformed data.
	periodo := periodos[0]

	tipos := s.tiposDteMap(ctx)
	proveedores := s.proveedoresMap(ctx)

	var rawResumen []sii.ResumenCompra
	var rawDetalles []sii.DetalleCompra

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		rawResumen, err = s.backend.FetchResumen(groupCtx, periodo.ID)
		if err != nil {
			return fmt.Errorf("fetch resumen: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		var err error
		rawDetalles, err = s.backend.FetchDetalles(groupCtx, sii.DetalleQuery{PeriodoID: periodo.ID})
		if err != nil {
			return fmt.Errorf("fetch detalles: %w", err)
		}
		return nil
	})
	if err := group.Wait(); err != nil {
		return sii.Empresa{}, sii.Periodo{}, nil, nil, err
	}

	resumen := make([]ResumenRow, 0, len(rawResumen))
	for _, r := range rawResumen {
		resumen = append(resumen, buildResumenRow(r, tipos))
	}
	rows := make([]Row, 0, len(rawDetalles))
	for _, d := range rawDetalles {
		rows = append(rows, buildRow(d, tipos, proveedores))
	}
	return empresa, periodo, resumen, rows, nil
}

// TriggerFetch asks the backend for a fresh SII pull and reloads the period
// once the pull finishes.
func (s *Store) TriggerFetch(ctx context.Context, rut string, mes, anio int) error {
	if err := s.backend.TriggerFetch(ctx, rut, mes, anio); err != nil {
		s.recordError(fmt.Errorf("trigger sii fetch: %w", err))
		return err
	}
	return s.LoadAll(ctx, rut, mes, anio)
}

// RefreshLlamadas updates the SII call-count diagnostics slot. Failures are
// recorded on the snapshot but previous data is kept.
func (s *Store) RefreshLlamadas(ctx context.Context) error {
	llamadas, err := s.backend.FetchLlamadas(ctx)
	if err != nil {
		s.recordError(fmt.Errorf("fetch llamadas: %w", err))
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Llamadas = llamadas
	return nil
}

// ApplyNota patches the annotation fields of the row matching the nota's
// composite key. Rows are matched by keyed lookup, never appended: the
// annotation store owns annotation state, the ledger only mirrors it.
func (s *Store) ApplyNota(nota sii.Nota) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := nota.Key()
	for i := range s.snapshot.Rows {
		if s.snapshot.Rows[i].Key() == key {
			s.snapshot.Rows[i].NotaID = nota.ID
			s.snapshot.Rows[i].Comentario = nota.Comentario
			s.snapshot.Rows[i].Contabilizado = nota.Contabilizado
			s.snapshot.Rows[i].Pagado = nota.Pagado
			return
		}
	}
}

// RemoveNota clears the annotation fields of the row matching key.
func (s *Store) RemoveNota(key sii.NotaKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.snapshot.Rows {
		if s.snapshot.Rows[i].Key() == key {
			s.snapshot.Rows[i].NotaID = 0
			s.snapshot.Rows[i].Comentario = ""
			s.snapshot.Rows[i].Contabilizado = false
			s.snapshot.Rows[i].Pagado = false
			return
		}
	}
}

// Empresas returns the company reference data, re-fetching it only when the
// cache has expired.
func (s *Store) Empresas(ctx context.Context) ([]sii.Empresa, error) {
	s.mu.RLock()
	cached, fresh := s.empresas, time.Since(s.empresasLoaded) < s.refTTL
	s.mu.RUnlock()
	if fresh && cached != nil {
		return cached, nil
	}

	empresas, err := s.backend.FetchEmpresas(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch empresas: %w", err)
	}
	s.mu.Lock()
	s.empresas = empresas
	s.empresasLoaded = time.Now()
	s.mu.Unlock()
	return empresas, nil
}

// InvalidateReferenceData drops the cached reference collections so the next
// access re-fetches them, regardless of TTL.
func (s *Store) InvalidateReferenceData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tipos = nil
	s.tiposLoaded = time.Time{}
	s.proveedores = nil
	s.provsLoaded = time.Time{}
	s.empresas = nil
	s.empresasLoaded = time.Time{}
}

// tiposDteMap returns the cached document-type labels, re-fetching on TTL
// expiry. Failures degrade to an empty map; rows then render synthesized
// labels.
func (s *Store) tiposDteMap(ctx context.Context) map[int]string {
	s.mu.RLock()
	cached, fresh := s.tipos, time.Since(s.tiposLoaded) < s.refTTL
	s.mu.RUnlock()
	if fresh && cached != nil {
		return cached
	}

	tipos, err := s.backend.FetchTiposDte(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("tipos dte fetch failed; using synthesized labels")
		return map[int]string{}
	}
	byCode := make(map[int]string, len(tipos))
	for _, t := range tipos {
		byCode[t.Codigo] = t.Descripcion
	}
	s.mu.Lock()
	s.tipos = byCode
	s.tiposLoaded = time.Now()
	s.mu.Unlock()
	return byCode
}

func (s *Store) proveedoresMap(ctx context.Context) map[string]string {
	s.mu.RLock()
	cached, fresh := s.proveedores, time.Since(s.provsLoaded) < s.refTTL
	s.mu.RUnlock()
	if fresh && cached != nil {
		return cached
	}

	proveedores, err := s.backend.FetchProveedores(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("proveedores fetch failed; razon social may be blank")
		return map[string]string{}
	}
	byRut := make(map[string]string, len(proveedores))
	for _, p := range proveedores {
		byRut[p.Rut] = p.RazonSocial
	}
	s.mu.Lock()
	s.proveedores = byRut
	s.provsLoaded = time.Now()
	s.mu.Unlock()
	return byRut
}

func (s *Store) resolveEmpresa(ctx context.Context, rut string) sii.Empresa {
	empresas, err := s.Empresas(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("rut", rut).Msg("empresa lookup failed")
		return sii.Empresa{Rut: rut}
	}
	for _, e := range empresas {
		if e.Rut == rut {
			return e
		}
	}
	return sii.Empresa{Rut: rut}
}

// beginLoad stamps a new load token, raises the loading flag, and clears the
// previous error.
func (s *Store) beginLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.snapshot.Loading = true
	s.snapshot.LastError = nil
	return s.seq
}

// failLoad records err and drops the loading flag unless a newer load has
// been issued since seq.
func (s *Store) failLoad(seq uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return
	}
	s.snapshot.Loading = false
	s.snapshot.LastError = err
	s.snapshot.LastUpdated = time.Now()
	s.log.Error().Err(err).Msg("period load failed")
}

func (s *Store) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.LastError = err
	s.log.Error().Err(err).Msg("ledger action failed")
}

func cloneRows(rows []Row) []Row {
	if len(rows) == 0 {
		return nil
	}
	dup := make([]Row, len(rows))
	copy(dup, rows)
	return dup
}

func cloneResumen(rows []ResumenRow) []ResumenRow {
	if len(rows) == 0 {
		return nil
	}
	dup := make([]ResumenRow, len(rows))
	copy(dup, rows)
	return dup
}
