package sii

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the ConsultasSII HTTP API. The stores declare the narrow
// interfaces they consume; *Client satisfies all of them.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultAPIBind   = "127.0.0.1:3000"
	defaultUserAgent = "librocompras/0.1"

	// One shared timeout for every call. The manual SII fetch walks the
	// government portal server-side and can legitimately take minutes.
	requestTimeout = 5 * time.Minute

	// Large enough that the detail listing behaves as "all matching rows"
	// rather than one page.
	defaultPageSize = 10000
)

// NewClient builds a Client using the provided apiURL host:port or URL value.
func NewClient(apiURL string) (*Client, error) {
	base, err := parseBaseURL(apiURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// FetchEmpresas retrieves the registered companies.
func (c *Client) FetchEmpresas(ctx context.Context) ([]Empresa, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload []Empresa
	if err := c.do(ctx, http.MethodGet, "/api/dte/empresas", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// PeriodoQuery configures /api/dte/periodos requests. Zero-valued fields are
// omitted from the query string.
type PeriodoQuery struct {
	Rut  string
	Mes  int
	Anio int
}

// FetchPeriodos retrieves the periods matching the query.
func (c *Client) FetchPeriodos(ctx context.Context, query PeriodoQuery) ([]Periodo, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	if rut := strings.TrimSpace(query.Rut); rut != "" {
		values.Set("rut", rut)
	}
	if query.Mes > 0 {
		values.Set("mes", strconv.Itoa(query.Mes))
	}
	if query.Anio > 0 {
		values.Set("anio", strconv.Itoa(query.Anio))
	}
	rel := &url.URL{Path: "/api/dte/periodos", RawQuery: values.Encode()}
	var payload []Periodo
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// FetchResumen retrieves the per-document-type aggregates for a period.
func (c *Client) FetchResumen(ctx context.Context, periodoID int64) ([]ResumenCompra, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if periodoID <= 0 {
		return nil, fmt.Errorf("periodo id required")
	}
	var payload []ResumenCompra
	path := fmt.Sprintf("/api/dte/resumen/%d", periodoID)
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// DetalleQuery configures /api/dte/detalles requests. Zero-valued optional
// filters are omitted; a zero Limit requests defaultPageSize rows.
type DetalleQuery struct {
	PeriodoID    int64
	RutProveedor string
	TipoDte      int
	Estado       string
	Limit        int
}

// FetchDetalles retrieves the purchase documents of a period.
func (c *Client) FetchDetalles(ctx context.Context, query DetalleQuery) ([]DetalleCompra, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if query.PeriodoID <= 0 {
		return nil, fmt.Errorf("periodo id required")
	}
	values := url.Values{}
	values.Set("periodo", strconv.FormatInt(query.PeriodoID, 10))
	if rut := strings.TrimSpace(query.RutProveedor); rut != "" {
		values.Set("rutProveedor", rut)
	}
	if query.TipoDte > 0 {
		values.Set("tipoDte", strconv.Itoa(query.TipoDte))
	}
	if estado := strings.TrimSpace(query.Estado); estado != "" {
		values.Set("estado", estado)
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	values.Set("limit", strconv.Itoa(limit))
	rel := &url.URL{Path: "/api/dte/detalles", RawQuery: values.Encode()}
	var payload DetalleListResponse
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// FetchProveedores retrieves the supplier reference data.
func (c *Client) FetchProveedores(ctx context.Context) ([]Proveedor, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload []Proveedor
	if err := c.do(ctx, http.MethodGet, "/api/dte/proveedores", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// FetchTiposDte retrieves the document-type reference data.
func (c *Client) FetchTiposDte(ctx context.Context) ([]TipoDte, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload []TipoDte
	if err := c.do(ctx, http.MethodGet, "/api/dte/tipos", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// FetchNotas retrieves every stored annotation.
func (c *Client) FetchNotas(ctx context.Context) ([]Nota, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload []Nota
	if err := c.do(ctx, http.MethodGet, "/api/notas", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// FetchNota retrieves one annotation by its composite key.
func (c *Client) FetchNota(ctx context.Context, key NotaKey) (*Nota, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	values.Set("rutProveedor", key.RutProveedor)
	values.Set("folio", key.Folio)
	values.Set("tipoDte", strconv.Itoa(key.TipoDte))
	rel := &url.URL{Path: "/api/notas/buscar", RawQuery: values.Encode()}
	var payload Nota
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// CreateNota stores a new annotation and returns the server record with its
// assigned id.
func (c *Client) CreateNota(ctx context.Context, nota Nota) (*Nota, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload Nota
	if err := c.do(ctx, http.MethodPost, "/api/notas", nota, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// UpdateNota replaces every user-editable field of an annotation.
func (c *Client) UpdateNota(ctx context.Context, nota Nota) (*Nota, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if nota.ID <= 0 {
		return nil, fmt.Errorf("nota id required")
	}
	var payload Nota
	path := fmt.Sprintf("/api/notas/%d", nota.ID)
	if err := c.do(ctx, http.MethodPut, path, nota, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// UpdateComentario upserts only the comment of the annotation at key.
func (c *Client) UpdateComentario(ctx context.Context, key NotaKey, comentario string) error {
	body := struct {
		NotaKey
		Comentario string `json:"comentario"`
	}{NotaKey: key, Comentario: comentario}
	return c.putSubresource(ctx, "/api/notas/comentario", body)
}

// UpdateContabilizado upserts only the accounting flag of the annotation at key.
func (c *Client) UpdateContabilizado(ctx context.Context, key NotaKey, contabilizado bool) error {
	body := struct {
		NotaKey
		Contabilizado bool `json:"contabilizado"`
	}{NotaKey: key, Contabilizado: contabilizado}
	return c.putSubresource(ctx, "/api/notas/contabilizado", body)
}

// UpdatePagado upserts only the paid flag of the annotation at key.
func (c *Client) UpdatePagado(ctx context.Context, key NotaKey, pagado bool) error {
	body := struct {
		NotaKey
		Pagado bool `json:"pagado"`
	}{NotaKey: key, Pagado: pagado}
	return c.putSubresource(ctx, "/api/notas/pagado", body)
}

// DeleteNota removes the annotation at key. Deleting a missing annotation is
// not an error server-side.
func (c *Client) DeleteNota(ctx context.Context, key NotaKey) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	return c.do(ctx, http.MethodDelete, "/api/notas", key, nil)
}

// TriggerFetch asks the backend to pull fresh data from the SII portal and
// store it. Not retried: the operation is not idempotent.
func (c *Client) TriggerFetch(ctx context.Context, rut string, mes, anio int) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	body := struct {
		Rut  string `json:"rut"`
		Mes  int    `json:"mes"`
		Anio int    `json:"anio"`
	}{Rut: rut, Mes: mes, Anio: anio}
	return c.do(ctx, http.MethodPost, "/api/sii/fetch", body, nil)
}

// FetchLlamadas retrieves the SII call-count diagnostics.
func (c *Client) FetchLlamadas(ctx context.Context) (Llamadas, error) {
	if c == nil {
		return Llamadas{}, fmt.Errorf("client is nil")
	}
	var payload Llamadas
	if err := c.do(ctx, http.MethodGet, "/api/sii/llamadas", nil, &payload); err != nil {
		return Llamadas{}, err
	}
	return payload, nil
}

// WakeUp probes the health endpoint so a cold backend instance starts
// spinning up before the first real load.
func (c *Client) WakeUp(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) putSubresource(ctx context.Context, path string, body any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	return c.do(ctx, http.MethodPut, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	rel := &url.URL{Path: path}
	return c.doURL(ctx, method, rel, body, dest)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, body, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return &StatusError{
			Status:  resp.StatusCode,
			Path:    rel.Path,
			Message: decodeErrorMessage(resp),
		}
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeErrorMessage pulls the server-supplied message out of an error body
// when one exists. Bodies are small; malformed ones yield an empty message.
func decodeErrorMessage(resp *http.Response) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

func parseBaseURL(apiURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiURL)
	if trimmed == "" {
		trimmed = defaultAPIBind
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", apiURL, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
