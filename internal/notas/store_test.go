package notas

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tiagowhuber/ConsultasSII/internal/sii"
)

// fakeBackend stores notas in memory the way the server would: partial
// update PUTs upsert a record and assign ids.
type fakeBackend struct {
	mu     sync.Mutex
	nextID int64
	notas  map[sii.NotaKey]sii.Nota

	fetchOneErr error
	writeErr    error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{nextID: 100, notas: make(map[sii.NotaKey]sii.Nota)}
}

func (f *fakeBackend) FetchNotas(context.Context) ([]sii.Nota, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sii.Nota, 0, len(f.notas))
	for _, n := range f.notas {
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeBackend) FetchNota(_ context.Context, key sii.NotaKey) (*sii.Nota, error) {
	if f.fetchOneErr != nil {
		return nil, f.fetchOneErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notas[key]
	if !ok {
		return nil, &sii.StatusError{Status: 404, Path: "/api/notas/buscar"}
	}
	return &n, nil
}

func (f *fakeBackend) CreateNota(_ context.Context, nota sii.Nota) (*sii.Nota, error) {
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	nota.ID = f.nextID
	f.nextID++
	f.notas[nota.Key()] = nota
	return &nota, nil
}

func (f *fakeBackend) UpdateNota(_ context.Context, nota sii.Nota) (*sii.Nota, error) {
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notas[nota.Key()] = nota
	return &nota, nil
}

func (f *fakeBackend) upsert(key sii.NotaKey, mutate func(*sii.Nota)) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notas[key]
	if !ok {
		n = sii.Nota{ID: f.nextID, RutProveedor: key.RutProveedor, Folio: key.Folio, TipoDte: key.TipoDte}
		f.nextID++
	}
	mutate(&n)
	f.notas[key] = n
	return nil
}

func (f *fakeBackend) UpdateComentario(_ context.Context, key sii.NotaKey, comentario string) error {
	return f.upsert(key, func(n *sii.Nota) { n.Comentario = comentario })
}

func (f *fakeBackend) UpdateContabilizado(_ context.Context, key sii.NotaKey, contabilizado bool) error {
	return f.upsert(key, func(n *sii.Nota) { n.Contabilizado = contabilizado })
}

func (f *fakeBackend) UpdatePagado(_ context.Context, key sii.NotaKey, pagado bool) error {
	return f.upsert(key, func(n *sii.Nota) { n.Pagado = pagado })
}

func (f *fakeBackend) DeleteNota(_ context.Context, key sii.NotaKey) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.notas, key)
	return nil
}

var testKey = sii.NotaKey{RutProveedor: "76.111.222-3", Folio: "101", TipoDte: 33}

func TestStore_CreateThenFetchByKey(t *testing.T) {
	t.Parallel()

	s := NewStore(newFakeBackend(), zerolog.Nop())
	ctx := context.Background()

	created, err := s.Create(ctx, sii.Nota{
		RutProveedor: testKey.RutProveedor, Folio: testKey.Folio, TipoDte: testKey.TipoDte,
		Comentario: "revisar",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("Create returned id 0, want server-assigned id")
	}

	fetched, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if fetched.Key() != testKey {
		t.Fatalf("Load key = %#v, want %#v", fetched.Key(), testKey)
	}

	entry, ok := s.Get(testKey)
	if !ok || entry.State != StateConfirmed {
		t.Fatalf("Get = %#v/%v, want confirmed entry", entry, ok)
	}
}

func TestStore_PartialUpdatePreservesUnrelatedFields(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	s := NewStore(backend, zerolog.Nop())
	ctx := context.Background()

	if _, err := s.Create(ctx, sii.Nota{
		RutProveedor: testKey.RutProveedor, Folio: testKey.Folio, TipoDte: testKey.TipoDte,
		Comentario: "original", Contabilizado: true, Pagado: true,
	}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := s.UpdateComentario(ctx, testKey, "cambiado"); err != nil {
		t.Fatalf("UpdateComentario returned error: %v", err)
	}

	entry, ok := s.Get(testKey)
	if !ok {
		t.Fatalf("entry missing after partial update")
	}
	if entry.Nota.Comentario != "cambiado" {
		t.Fatalf("Comentario = %q, want cambiado", entry.Nota.Comentario)
	}
	if !entry.Nota.Contabilizado || !entry.Nota.Pagado {
		t.Fatalf("flags changed by comment-only update: %#v", entry.Nota)
	}
	if entry.Nota.UpdatedAt == "" {
		t.Fatalf("UpdatedAt not stamped")
	}
	if entry.State != StateConfirmed {
		t.Fatalf("State = %v, want confirmed (entry existed locally)", entry.State)
	}
}

func TestStore_ToggleWithoutLocalEntryCreatesPlaceholderThenReconciles(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()

	var applied []sii.Nota
	var appliedMu sync.Mutex
	s := NewStore(backend, zerolog.Nop(), WithApplied(func(n sii.Nota) {
		appliedMu.Lock()
		applied = append(applied, n)
		appliedMu.Unlock()
	}))

	if err := s.UpdateContabilizado(context.Background(), testKey, true); err != nil {
		t.Fatalf("UpdateContabilizado returned error: %v", err)
	}

	// The placeholder must be visible immediately, before reconciliation.
	appliedMu.Lock()
	if len(applied) == 0 || applied[0].ID != 0 || !applied[0].Contabilizado {
		t.Fatalf("first applied nota = %#v, want id-0 placeholder with flag set", applied)
	}
	appliedMu.Unlock()

	s.Wait()

	entry, ok := s.Get(testKey)
	if !ok {
		t.Fatalf("entry missing after reconciliation")
	}
	if entry.State != StateConfirmed {
		t.Fatalf("State = %v, want confirmed after reconciliation", entry.State)
	}
	if entry.Nota.ID == 0 {
		t.Fatalf("ID = 0 after reconciliation, want server-assigned id")
	}
	if !entry.Nota.Contabilizado {
		t.Fatalf("flag changed by reconciliation: %#v", entry.Nota)
	}
}

func TestStore_ReconciliationFailureKeepsPlaceholder(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.fetchOneErr = errors.New("backend cold")
	s := NewStore(backend, zerolog.Nop())

	if err := s.UpdatePagado(context.Background(), testKey, true); err != nil {
		t.Fatalf("UpdatePagado returned error: %v", err)
	}
	s.Wait()

	entry, ok := s.Get(testKey)
	if !ok {
		t.Fatalf("placeholder missing after failed reconciliation")
	}
	if entry.State != StatePending || entry.Nota.ID != 0 {
		t.Fatalf("entry = %#v, want pending id-0 placeholder kept", entry)
	}
	if !entry.Nota.Pagado {
		t.Fatalf("Pagado = false, want optimistic value kept")
	}
}

func TestStore_ServerFailureLeavesLocalUntouched(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	s := NewStore(backend, zerolog.Nop())
	ctx := context.Background()

	if _, err := s.Create(ctx, sii.Nota{
		RutProveedor: testKey.RutProveedor, Folio: testKey.Folio, TipoDte: testKey.TipoDte,
		Comentario: "original",
	}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	backend.writeErr = errors.New("boom")
	if err := s.UpdateComentario(ctx, testKey, "cambiado"); err == nil {
		t.Fatalf("UpdateComentario returned nil error, want server failure")
	}
	if s.LastError() == nil {
		t.Fatalf("LastError = nil, want recorded failure")
	}

	entry, _ := s.Get(testKey)
	if entry.Nota.Comentario != "original" {
		t.Fatalf("Comentario = %q, want original (no optimistic patch on failure)", entry.Nota.Comentario)
	}
}

func TestStore_DeleteTolerantOfMissingLocalEntry(t *testing.T) {
	t.Parallel()

	var removed []sii.NotaKey
	s := NewStore(newFakeBackend(), zerolog.Nop(), WithRemoved(func(k sii.NotaKey) {
		removed = append(removed, k)
	}))

	if err := s.Delete(context.Background(), testKey); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if len(removed) != 1 || removed[0] != testKey {
		t.Fatalf("removed = %#v, want delete notification", removed)
	}
}

func TestStore_LoadAllReplacesWholesale(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	s := NewStore(backend, zerolog.Nop())
	ctx := context.Background()

	if err := s.UpdateComentario(ctx, testKey, "local"); err != nil {
		t.Fatalf("UpdateComentario returned error: %v", err)
	}
	s.Wait()

	otherKey := sii.NotaKey{RutProveedor: "77.444.555-6", Folio: "202", TipoDte: 61}
	if _, err := backend.CreateNota(ctx, sii.Nota{
		RutProveedor: otherKey.RutProveedor, Folio: otherKey.Folio, TipoDte: otherKey.TipoDte,
	}); err != nil {
		t.Fatalf("seed CreateNota returned error: %v", err)
	}

	if err := s.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	entries := s.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries = %d, want 2 after wholesale reload", len(entries))
	}
	for _, e := range entries {
		if e.State != StateConfirmed {
			t.Fatalf("entry %#v not confirmed after LoadAll", e)
		}
	}
}
