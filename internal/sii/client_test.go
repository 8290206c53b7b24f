package sii

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("scheme = %q, want http", u.Scheme)
	}
	if u.Host != defaultAPIBind {
		t.Fatalf("host = %q, want %q", u.Host, defaultAPIBind)
	}

	u, err = parseBaseURL("https://consultassii.onrender.com/path?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}

func TestClient_FetchesEndpointsAndEncodesQueries(t *testing.T) {
	t.Parallel()

	var gotPeriodosQuery url.Values
	var gotDetallesQuery url.Values
	var gotUserAgent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/api/dte/empresas":
			_ = json.NewEncoder(w).Encode([]Empresa{{Rut: "65.145.564-2", RazonSocial: "Empresa Uno"}})
		case "/api/dte/periodos":
			gotPeriodosQuery = r.URL.Query()
			_ = json.NewEncoder(w).Encode([]Periodo{{ID: 9, RutEmpresa: "65.145.564-2", Anio: 2025, Mes: 8}})
		case "/api/dte/resumen/9":
			_ = json.NewEncoder(w).Encode([]ResumenCompra{{TipoDte: 33, TotalDocumentos: 3, MontoTotal: "357000"}})
		case "/api/dte/detalles":
			gotDetallesQuery = r.URL.Query()
			_ = json.NewEncoder(w).Encode(DetalleListResponse{
				Items: []DetalleCompra{{Folio: "123", RutProveedor: "76.111.222-3"}},
				Total: 1,
			})
		case "/api/sii/llamadas":
			_ = json.NewEncoder(w).Encode(Llamadas{Llamadas: 12, Limite: 50})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	empresas, err := c.FetchEmpresas(ctx)
	if err != nil {
		t.Fatalf("FetchEmpresas returned error: %v", err)
	}
	if len(empresas) != 1 || empresas[0].Rut != "65.145.564-2" {
		t.Fatalf("FetchEmpresas = %#v, want 1 empresa", empresas)
	}

	periodos, err := c.FetchPeriodos(ctx, PeriodoQuery{Rut: "65.145.564-2", Mes: 8, Anio: 2025})
	if err != nil {
		t.Fatalf("FetchPeriodos returned error: %v", err)
	}
	if len(periodos) != 1 || periodos[0].ID != 9 {
		t.Fatalf("FetchPeriodos = %#v, want 1 periodo id=9", periodos)
	}
	if gotPeriodosQuery.Get("rut") != "65.145.564-2" ||
		gotPeriodosQuery.Get("mes") != "8" ||
		gotPeriodosQuery.Get("anio") != "2025" {
		t.Fatalf("FetchPeriodos query = %v, want params encoded", gotPeriodosQuery)
	}

	resumen, err := c.FetchResumen(ctx, 9)
	if err != nil {
		t.Fatalf("FetchResumen returned error: %v", err)
	}
	if len(resumen) != 1 || resumen[0].TipoDte != 33 {
		t.Fatalf("FetchResumen = %#v, want 1 row tipoDte=33", resumen)
	}

	detalles, err := c.FetchDetalles(ctx, DetalleQuery{PeriodoID: 9, TipoDte: 33, Estado: EstadoPendiente})
	if err != nil {
		t.Fatalf("FetchDetalles returned error: %v", err)
	}
	if len(detalles) != 1 || detalles[0].Folio != "123" {
		t.Fatalf("FetchDetalles = %#v, want 1 row folio=123", detalles)
	}
	if gotDetallesQuery.Get("periodo") != "9" ||
		gotDetallesQuery.Get("tipoDte") != "33" ||
		gotDetallesQuery.Get("estado") != EstadoPendiente ||
		gotDetallesQuery.Get("limit") != "10000" {
		t.Fatalf("FetchDetalles query = %v, want params + default limit", gotDetallesQuery)
	}
	if gotDetallesQuery.Has("rutProveedor") {
		t.Fatalf("FetchDetalles sent empty rutProveedor filter: %v", gotDetallesQuery)
	}

	llamadas, err := c.FetchLlamadas(ctx)
	if err != nil {
		t.Fatalf("FetchLlamadas returned error: %v", err)
	}
	if llamadas.Llamadas != 12 || llamadas.Limite != 50 {
		t.Fatalf("FetchLlamadas = %#v, want 12/50", llamadas)
	}

	if gotUserAgent == "" || !strings.HasPrefix(gotUserAgent, "librocompras/") {
		t.Fatalf("User-Agent = %q, want librocompras/*", gotUserAgent)
	}
}

func TestClient_NotaWritesEncodeBodies(t *testing.T) {
	t.Parallel()

	var gotComentarioBody map[string]any
	var gotCreateBody Nota
	var gotDeleteBody NotaKey
	var gotFetchBody url.Values

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/api/notas" && r.Method == http.MethodPost:
			_ = json.NewDecoder(r.Body).Decode(&gotCreateBody)
			created := gotCreateBody
			created.ID = 77
			_ = json.NewEncoder(w).Encode(created)
		case r.URL.Path == "/api/notas/comentario" && r.Method == http.MethodPut:
			_ = json.NewDecoder(r.Body).Decode(&gotComentarioBody)
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/api/notas" && r.Method == http.MethodDelete:
			_ = json.NewDecoder(r.Body).Decode(&gotDeleteBody)
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/api/notas/buscar":
			gotFetchBody = r.URL.Query()
			_ = json.NewEncoder(w).Encode(Nota{ID: 77, Folio: "123", RutProveedor: "76.111.222-3", TipoDte: 33})
		case r.URL.Path == "/api/sii/fetch" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusAccepted)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := context.Background()
	key := NotaKey{RutProveedor: "76.111.222-3", Folio: "123", TipoDte: 33}

	created, err := c.CreateNota(ctx, Nota{RutProveedor: key.RutProveedor, Folio: key.Folio, TipoDte: key.TipoDte, Comentario: "ok"})
	if err != nil {
		t.Fatalf("CreateNota returned error: %v", err)
	}
	if created.ID != 77 || created.Comentario != "ok" {
		t.Fatalf("CreateNota = %#v, want id=77 comentario=ok", created)
	}

	if err := c.UpdateComentario(ctx, key, "revisar factura"); err != nil {
		t.Fatalf("UpdateComentario returned error: %v", err)
	}
	if gotComentarioBody["comentario"] != "revisar factura" ||
		gotComentarioBody["folio"] != "123" ||
		gotComentarioBody["rutProveedor"] != "76.111.222-3" {
		t.Fatalf("UpdateComentario body = %v, want key + comentario", gotComentarioBody)
	}

	nota, err := c.FetchNota(ctx, key)
	if err != nil {
		t.Fatalf("FetchNota returned error: %v", err)
	}
	if nota.ID != 77 {
		t.Fatalf("FetchNota = %#v, want id=77", nota)
	}
	if gotFetchBody.Get("folio") != "123" || gotFetchBody.Get("tipoDte") != "33" {
		t.Fatalf("FetchNota query = %v, want key encoded", gotFetchBody)
	}

	if err := c.DeleteNota(ctx, key); err != nil {
		t.Fatalf("DeleteNota returned error: %v", err)
	}
	if gotDeleteBody != key {
		t.Fatalf("DeleteNota body = %#v, want %#v", gotDeleteBody, key)
	}

	if err := c.TriggerFetch(ctx, "65.145.564-2", 8, 2025); err != nil {
		t.Fatalf("TriggerFetch returned error: %v", err)
	}
}

func TestClient_StatusErrorCarriesServerMessage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/dte/empresas":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"sii no disponible"}`))
		case "/api/dte/tipos":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{not-json"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	_, err = c.FetchEmpresas(context.Background())
	if err == nil {
		t.Fatalf("FetchEmpresas returned nil error, want status error")
	}
	if got := UserMessage(err); got != "sii no disponible" {
		t.Fatalf("UserMessage = %q, want server message", got)
	}

	_, err = c.FetchTiposDte(context.Background())
	if err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("FetchTiposDte error = %v, want decode response error", err)
	}
}

func TestClient_RequiredIDs(t *testing.T) {
	c, err := NewClient("127.0.0.1:1")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := c.FetchResumen(context.Background(), 0); err == nil {
		t.Fatalf("FetchResumen(0) returned nil error, want error")
	}
	if _, err := c.FetchDetalles(context.Background(), DetalleQuery{}); err == nil {
		t.Fatalf("FetchDetalles without periodo returned nil error, want error")
	}
	if _, err := c.UpdateNota(context.Background(), Nota{}); err == nil {
		t.Fatalf("UpdateNota without id returned nil error, want error")
	}
}

func TestIsTimeout_DistinguishesDeadline(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	t.Cleanup(cancel)

	_, err = c.FetchEmpresas(ctx)
	if err == nil {
		t.Fatalf("FetchEmpresas returned nil error, want timeout")
	}
	if !IsTimeout(err) {
		t.Fatalf("IsTimeout(%v) = false, want true", err)
	}
	if IsTimeout(&StatusError{Status: 500, Path: "/x"}) {
		t.Fatalf("IsTimeout(status error) = true, want false")
	}
}
