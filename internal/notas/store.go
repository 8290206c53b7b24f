package notas

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiagowhuber/ConsultasSII/internal/sii"
)

// Backend is the slice of the API the annotation store consumes.
type Backend interface {
	FetchNotas(ctx context.Context) ([]sii.Nota, error)
	FetchNota(ctx context.Context, key sii.NotaKey) (*sii.Nota, error)
	CreateNota(ctx context.Context, nota sii.Nota) (*sii.Nota, error)
	UpdateNota(ctx context.Context, nota sii.Nota) (*sii.Nota, error)
	UpdateComentario(ctx context.Context, key sii.NotaKey, comentario string) error
	UpdateContabilizado(ctx context.Context, key sii.NotaKey, contabilizado bool) error
	UpdatePagado(ctx context.Context, key sii.NotaKey, pagado bool) error
	DeleteNota(ctx context.Context, key sii.NotaKey) error
}

// Ensure the HTTP client satisfies the store's contract at compile time.
var _ Backend = (*sii.Client)(nil)

// State tags a local annotation as speculative or server-confirmed.
type State int

const (
	// StatePending marks a locally synthesized placeholder (id 0) whose
	// authoritative server record has not been fetched yet.
	StatePending State = iota
	// StateConfirmed marks an annotation that mirrors a server record.
	StateConfirmed
)

// Entry is one local annotation together with its confirmation state.
type Entry struct {
	Nota  sii.Nota
	State State
}

// Store owns the per-document annotations, keyed by the composite identity
// (supplier RUT + folio + document-type code). Partial updates are
// optimistic: the local entry is patched immediately, and placeholders are
// reconciled against the server in the background.
type Store struct {
	backend Backend
	log     zerolog.Logger

	// onApplied/onRemoved mirror local changes onto the ledger rows.
	onApplied func(sii.Nota)
	onRemoved func(sii.NotaKey)

	mu        sync.RWMutex
	entries   map[sii.NotaKey]Entry
	lastError error

	reconciles sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithApplied registers a callback invoked after any local annotation
// create or patch.
func WithApplied(fn func(sii.Nota)) Option {
	return func(s *Store) { s.onApplied = fn }
}

// WithRemoved registers a callback invoked after a local annotation is
// deleted.
func WithRemoved(fn func(sii.NotaKey)) Option {
	return func(s *Store) { s.onRemoved = fn }
}

// NewStore builds a Store backed by the given API client.
func NewStore(backend Backend, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		log:     log,
		entries: make(map[sii.NotaKey]Entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadAll replaces the local annotation set wholesale with the server's.
func (s *Store) LoadAll(ctx context.Context) error {
	all, err := s.backend.FetchNotas(ctx)
	if err != nil {
		s.recordError(fmt.Errorf("fetch notas: %w", err))
		return err
	}
	entries := make(map[sii.NotaKey]Entry, len(all))
	for _, n := range all {
		entries[n.Key()] = Entry{Nota: n, State: StateConfirmed}
	}
	s.mu.Lock()
	s.entries = entries
	s.lastError = nil
	s.mu.Unlock()
	return nil
}

// Load fetches one annotation by key and stores it as confirmed.
func (s *Store) Load(ctx context.Context, key sii.NotaKey) (sii.Nota, error) {
	nota, err := s.backend.FetchNota(ctx, key)
	if err != nil {
		s.recordError(fmt.Errorf("fetch nota %s: %w", key, err))
		return sii.Nota{}, err
	}
	s.confirm(*nota)
	return *nota, nil
}

// Get returns the local entry at key, when one exists.
func (s *Store) Get(key sii.NotaKey) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok
}

// Entries returns a copy of every local entry.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	return out
}

// LastError returns the most recent action failure, if any.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Create stores a new annotation server-side and mirrors the confirmed
// record locally.
func (s *Store) Create(ctx context.Context, nota sii.Nota) (sii.Nota, error) {
	created, err := s.backend.CreateNota(ctx, nota)
	if err != nil {
		s.recordError(fmt.Errorf("create nota %s: %w", nota.Key(), err))
		return sii.Nota{}, err
	}
	s.confirm(*created)
	return *created, nil
}

// Update replaces every user-editable field of an existing annotation.
func (s *Store) Update(ctx context.Context, nota sii.Nota) (sii.Nota, error) {
	updated, err := s.backend.UpdateNota(ctx, nota)
	if err != nil {
		s.recordError(fmt.Errorf("update nota %s: %w", nota.Key(), err))
		return sii.Nota{}, err
	}
	s.confirm(*updated)
	return *updated, nil
}

// UpdateComentario upserts only the comment of the annotation at key.
func (s *Store) UpdateComentario(ctx context.Context, key sii.NotaKey, comentario string) error {
	if err := s.backend.UpdateComentario(ctx, key, comentario); err != nil {
		s.recordError(fmt.Errorf("update comentario %s: %w", key, err))
		return err
	}
	s.patch(key, func(n *sii.Nota) { n.Comentario = comentario })
	return nil
}

// UpdateContabilizado upserts only the accounting flag of the annotation at
// key.
func (s *Store) UpdateContabilizado(ctx context.Context, key sii.NotaKey, contabilizado bool) error {
	if err := s.backend.UpdateContabilizado(ctx, key, contabilizado); err != nil {
		s.recordError(fmt.Errorf("update contabilizado %s: %w", key, err))
		return err
	}
	s.patch(key, func(n *sii.Nota) { n.Contabilizado = contabilizado })
	return nil
}

// UpdatePagado upserts only the paid flag of the annotation at key.
func (s *Store) UpdatePagado(ctx context.Context, key sii.NotaKey, pagado bool) error {
	if err := s.backend.UpdatePagado(ctx, key, pagado); err != nil {
		s.recordError(fmt.Errorf("update pagado %s: %w", key, err))
		return err
	}
	s.patch(key, func(n *sii.Nota) { n.Pagado = pagado })
	return nil
}

// Delete removes the annotation server-side and locally. A missing local
// entry is not an error; the server deletion already happened.
func (s *Store) Delete(ctx context.Context, key sii.NotaKey) error {
	if err := s.backend.DeleteNota(ctx, key); err != nil {
		s.recordError(fmt.Errorf("delete nota %s: %w", key, err))
		return err
	}
	s.mu.Lock()
	delete(s.entries, key)
	s.lastError = nil
	s.mu.Unlock()
	if s.onRemoved != nil {
		s.onRemoved(key)
	}
	return nil
}

// Wait blocks until every in-flight background reconciliation has finished.
// Called on teardown so no goroutine outlives the app.
func (s *Store) Wait() {
	s.reconciles.Wait()
}

// patch applies the optimistic partial-update protocol: an existing local
// entry is modified in place with a fresh update timestamp; a missing one
// gets a pending placeholder (id 0) and a best-effort background fetch of
// the authoritative record.
func (s *Store) patch(key sii.NotaKey, mutate func(*sii.Nota)) {
	now := time.Now().Format(time.RFC3339)

	s.mu.Lock()
	entry, found := s.entries[key]
	if !found {
		entry = Entry{
			Nota: sii.Nota{
				RutProveedor: key.RutProveedor,
				Folio:        key.Folio,
				TipoDte:      key.TipoDte,
				CreatedAt:    now,
			},
			State: StatePending,
		}
	}
	mutate(&entry.Nota)
	entry.Nota.UpdatedAt = now
	s.entries[key] = entry
	s.lastError = nil
	s.mu.Unlock()

	if s.onApplied != nil {
		s.onApplied(entry.Nota)
	}
	if !found {
		s.reconciles.Add(1)
		go s.reconcile(key)
	}
}

// reconcile replaces a pending placeholder with the server record. Failures
// are swallowed: the placeholder stays authoritative client-side until the
// next full load.
func (s *Store) reconcile(key sii.NotaKey) {
	defer s.reconciles.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	nota, err := s.backend.FetchNota(ctx, key)
	if err != nil {
		s.log.Debug().Err(err).Str("nota", key.String()).Msg("nota reconciliation failed")
		return
	}
	s.confirm(*nota)
}

// confirm stores a server record locally, replacing any entry at its key.
func (s *Store) confirm(nota sii.Nota) {
	s.mu.Lock()
	s.entries[nota.Key()] = Entry{Nota: nota, State: StateConfirmed}
	s.lastError = nil
	s.mu.Unlock()
	if s.onApplied != nil {
		s.onApplied(nota)
	}
}

func (s *Store) recordError(err error) {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
	s.log.Error().Err(err).Msg("nota action failed")
}
