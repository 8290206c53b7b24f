package sii

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const fechaLayout = "2006-01-02"

// Estado values reported by the backend for summaries and detail rows.
const (
	EstadoConfirmado = "Confirmado"
	EstadoPendiente  = "Pendiente"
	EstadoReclamado  = "Reclamado"
)

// Empresa mirrors /api/dte/empresas entries.
type Empresa struct {
	Rut         string `json:"rut"`
	RazonSocial string `json:"razonSocial"`
}

// Periodo mirrors /api/dte/periodos entries. A rut+anio+mes combination is
// unique server-side; the client never enforces it.
type Periodo struct {
	ID         int64  `json:"id"`
	RutEmpresa string `json:"rutEmpresa"`
	Anio       int    `json:"anio"`
	Mes        int    `json:"mes"`
}

// Label renders the period as "MM-YYYY" for headers and export filenames.
func (p Periodo) Label() string {
	return fmt.Sprintf("%02d-%d", p.Mes, p.Anio)
}

// ResumenCompra is one per-document-type aggregate row for a period.
// Monetary fields travel as decimal strings; use ParseMonto before arithmetic.
type ResumenCompra struct {
	TipoDte          int    `json:"tipoDte"`
	TotalDocumentos  int    `json:"totalDocumentos"`
	MontoExento      string `json:"montoExento"`
	MontoNeto        string `json:"montoNeto"`
	IvaRecuperable   string `json:"ivaRecuperable"`
	IvaNoRecuperable string `json:"ivaNoRecuperable"`
	MontoTotal       string `json:"montoTotal"`
	Estado           string `json:"estado"`
}

// DetalleCompra is one purchase document as served by /api/dte/detalles.
// Monetary fields travel as decimal strings; dates as "2006-01-02".
type DetalleCompra struct {
	TipoDte                int            `json:"tipoDte"`
	TipoCompra             string         `json:"tipoCompra"`
	RutProveedor           string         `json:"rutProveedor"`
	RazonSocial            string         `json:"razonSocial"`
	Folio                  string         `json:"folio"`
	FechaEmision           string         `json:"fechaEmision"`
	FechaRecepcion         string         `json:"fechaRecepcion"`
	FechaAcuse             string         `json:"fechaAcuse,omitempty"`
	MontoExento            string         `json:"montoExento"`
	MontoNeto              string         `json:"montoNeto"`
	IvaRecuperable         string         `json:"montoIvaRecuperable"`
	IvaNoRecuperable       string         `json:"montoIvaNoRecuperable"`
	CodigoIvaNoRecuperable string         `json:"codigoIvaNoRec,omitempty"`
	MontoTotal             string         `json:"montoTotal"`
	MontoNetoActivoFijo    string         `json:"montoNetoActivoFijo,omitempty"`
	IvaActivoFijo          string         `json:"ivaActivoFijo,omitempty"`
	IvaUsoComun            string         `json:"ivaUsoComun,omitempty"`
	ImpuestoSinDerCredito  string         `json:"impuestoSinDerechoCredito,omitempty"`
	IvaRetenidoTotal       string         `json:"ivaRetenidoTotal,omitempty"`
	IvaRetenidoParcial     string         `json:"ivaRetenidoParcial,omitempty"`
	TabacosPuros           string         `json:"tabacosPuros,omitempty"`
	TabacosCigarrillos     string         `json:"tabacosCigarrillos,omitempty"`
	TabacosElaborados      string         `json:"tabacosElaborados,omitempty"`
	ValorOtroImpuesto      string         `json:"valorOtroImpuesto,omitempty"`
	TasaOtroImpuesto       string         `json:"tasaOtroImpuesto,omitempty"`
	OtrosImpuestos         []OtroImpuesto `json:"otrosImpuestos,omitempty"`
	Estado                 string         `json:"estado"`
	Nota                   *Nota          `json:"nota,omitempty"`
}

// OtroImpuesto is a code/rate/value triple attached to some documents.
type OtroImpuesto struct {
	Codigo int    `json:"codigo"`
	Tasa   string `json:"tasa"`
	Valor  string `json:"valor"`
}

// ParsedFechaEmision returns the issue date as time.Time when possible.
func (d DetalleCompra) ParsedFechaEmision() time.Time {
	return parseFecha(d.FechaEmision)
}

// ParsedFechaRecepcion returns the reception date as time.Time when possible.
func (d DetalleCompra) ParsedFechaRecepcion() time.Time {
	return parseFecha(d.FechaRecepcion)
}

// DetalleListResponse mirrors the /api/dte/detalles envelope.
type DetalleListResponse struct {
	Items []DetalleCompra `json:"items"`
	Total int             `json:"total"`
}

// NotaKey identifies an annotation. The backend exposes two incompatible key
// schemes (folio-only in one variant); this client uses the composite key
// everywhere: supplier RUT + folio + document-type code.
type NotaKey struct {
	RutProveedor string `json:"rutProveedor"`
	Folio        string `json:"folio"`
	TipoDte      int    `json:"tipoDte"`
}

func (k NotaKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.RutProveedor, k.Folio, k.TipoDte)
}

// Nota is a bookkeeper annotation attached to one purchase document.
// ID 0 means "not yet persisted server-side".
type Nota struct {
	ID            int64  `json:"id"`
	RutProveedor  string `json:"rutProveedor"`
	Folio         string `json:"folio"`
	TipoDte       int    `json:"tipoDte"`
	Comentario    string `json:"comentario"`
	Contabilizado bool   `json:"contabilizado"`
	Pagado        bool   `json:"pagado"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// Key returns the composite identity of the annotation.
func (n Nota) Key() NotaKey {
	return NotaKey{RutProveedor: n.RutProveedor, Folio: n.Folio, TipoDte: n.TipoDte}
}

// Proveedor mirrors /api/dte/proveedores entries.
type Proveedor struct {
	Rut         string `json:"rut"`
	RazonSocial string `json:"razonSocial"`
}

// TipoDte mirrors /api/dte/tipos entries.
type TipoDte struct {
	Codigo      int    `json:"codigo"`
	Descripcion string `json:"descripcion"`
}

// Llamadas reports the SII call-count diagnostics from /api/sii/llamadas.
type Llamadas struct {
	Llamadas int `json:"llamadas"`
	Limite   int `json:"limite"`
}

// NewRecordEvent is the payload of a "new_record" push event.
type NewRecordEvent struct {
	Folio        string `json:"folio"`
	RutProveedor string `json:"rutProveedor"`
	RazonSocial  string `json:"razonSocial"`
	MontoTotal   string `json:"montoTotal"`
	TipoDte      int    `json:"tipoDte"`
	TipoDteLabel string `json:"tipoDteLabel"`
	FechaEmision string `json:"fechaEmision"`
	Timestamp    string `json:"timestamp"`
}

// ParseMonto converts a decimal-string monetary amount to float64. Empty and
// whitespace-only input count as zero; thousands separators are not accepted.
func ParseMonto(value string) (float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("parse monto %q: %w", value, err)
	}
	return parsed, nil
}

// MontoOrZero is ParseMonto with malformed input collapsed to zero. Detail
// rows occasionally arrive with blank tax columns; totals must not fail on
// them.
func MontoOrZero(value string) float64 {
	parsed, err := ParseMonto(value)
	if err != nil {
		return 0
	}
	return parsed
}

func parseFecha(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{fechaLayout, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
