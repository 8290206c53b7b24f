package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tiagowhuber/ConsultasSII/internal/sii"
)

// Row is one purchase document denormalized for display: monetary strings
// parsed, reference labels flattened, annotation fields inlined.
type Row struct {
	TipoDte      int
	TipoDteLabel string
	TipoCompra   string
	RutProveedor string
	RazonSocial  string
	Folio        string

	FechaEmision   time.Time
	FechaRecepcion time.Time
	FechaAcuse     time.Time

	MontoExento           float64
	MontoNeto             float64
	IvaRecuperable        float64
	IvaNoRecuperable      float64
	IvaActivoFijo         float64
	IvaUsoComun           float64
	ImpuestoSinDerCredito float64
	IvaRetenidoTotal      float64
	MontoTotal            float64

	OtrosImpuestos []sii.OtroImpuesto
	Estado         string

	NotaID        int64
	Comentario    string
	Contabilizado bool
	Pagado        bool
}

// Key returns the composite annotation identity of the row.
func (r Row) Key() sii.NotaKey {
	return sii.NotaKey{RutProveedor: r.RutProveedor, Folio: r.Folio, TipoDte: r.TipoDte}
}

// FolioNum returns the folio as a number for ordering. Folios are
// string-valued on the wire but numerically ordered; unparseable folios
// sort as zero.
func (r Row) FolioNum() int64 {
	n, err := strconv.ParseInt(r.Folio, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ResumenRow is one per-document-type aggregate with parsed amounts.
type ResumenRow struct {
	TipoDte          int
	TipoDteLabel     string
	TotalDocumentos  int
	MontoExento      float64
	MontoNeto        float64
	IvaRecuperable   float64
	IvaNoRecuperable float64
	MontoTotal       float64
	Estado           string
}

// buildRow flattens one wire detail onto a Row using the reference maps.
// Missing reference entries fall back to synthesized labels so rendering
// never depends on reference data having loaded.
func buildRow(d sii.DetalleCompra, tipos map[int]string, proveedores map[string]string) Row {
	row := Row{
		TipoDte:      d.TipoDte,
		TipoDteLabel: tipoLabel(tipos, d.TipoDte),
		TipoCompra:   d.TipoCompra,
		RutProveedor: d.RutProveedor,
		RazonSocial:  d.RazonSocial,
		Folio:        d.Folio,

		FechaEmision:   d.ParsedFechaEmision(),
		FechaRecepcion: d.ParsedFechaRecepcion(),

		MontoExento:           sii.MontoOrZero(d.MontoExento),
		MontoNeto:             sii.MontoOrZero(d.MontoNeto),
		IvaRecuperable:        sii.MontoOrZero(d.IvaRecuperable),
		IvaNoRecuperable:      sii.MontoOrZero(d.IvaNoRecuperable),
		IvaActivoFijo:         sii.MontoOrZero(d.IvaActivoFijo),
		IvaUsoComun:           sii.MontoOrZero(d.IvaUsoComun),
		ImpuestoSinDerCredito: sii.MontoOrZero(d.ImpuestoSinDerCredito),
		IvaRetenidoTotal:      sii.MontoOrZero(d.IvaRetenidoTotal),
		MontoTotal:            sii.MontoOrZero(d.MontoTotal),

		OtrosImpuestos: d.OtrosImpuestos,
		Estado:         d.Estado,
	}
	if d.FechaAcuse != "" {
		row.FechaAcuse = parseAcuse(d.FechaAcuse)
	}
	if row.RazonSocial == "" {
		if name, ok := proveedores[d.RutProveedor]; ok {
			row.RazonSocial = name
		}
	}
	if d.Nota != nil {
		row.NotaID = d.Nota.ID
		row.Comentario = d.Nota.Comentario
		row.Contabilizado = d.Nota.Contabilizado
		row.Pagado = d.Nota.Pagado
	}
	return row
}

func buildResumenRow(r sii.ResumenCompra, tipos map[int]string) ResumenRow {
	return ResumenRow{
		TipoDte:          r.TipoDte,
		TipoDteLabel:     tipoLabel(tipos, r.TipoDte),
		TotalDocumentos:  r.TotalDocumentos,
		MontoExento:      sii.MontoOrZero(r.MontoExento),
		MontoNeto:        sii.MontoOrZero(r.MontoNeto),
		IvaRecuperable:   sii.MontoOrZero(r.IvaRecuperable),
		IvaNoRecuperable: sii.MontoOrZero(r.IvaNoRecuperable),
		MontoTotal:       sii.MontoOrZero(r.MontoTotal),
		Estado:           r.Estado,
	}
}

func tipoLabel(tipos map[int]string, codigo int) string {
	if label, ok := tipos[codigo]; ok && label != "" {
		return label
	}
	return fmt.Sprintf("Tipo %d", codigo)
}

func parseAcuse(value string) time.Time {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
