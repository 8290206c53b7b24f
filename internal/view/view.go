package view

import (
	"sort"
	"strings"
	"time"

	"github.com/tiagowhuber/ConsultasSII/internal/ledger"
)

// SortField selects the row attribute the table is ordered by.
type SortField string

const (
	SortTipoDte        SortField = "tipoDte"
	SortRutProveedor   SortField = "rutProveedor"
	SortRazonSocial    SortField = "razonSocial"
	SortFolio          SortField = "folio"
	SortFechaEmision   SortField = "fechaEmision"
	SortFechaRecepcion SortField = "fechaRecepcion"
	SortMontoNeto      SortField = "montoNeto"
	SortIvaRecuperable SortField = "ivaRecuperable"
	SortMontoTotal     SortField = "montoTotal"
	SortEstado         SortField = "estado"
)

// SortDir is the sort direction; ascending is the natural order.
type SortDir int

const (
	Ascending SortDir = iota
	Descending
)

// Filters are the independent per-field constraints, AND-combined. Zero
// values mean "no constraint".
type Filters struct {
	RutProveedor string // substring match on supplier RUT
	RazonSocial  string // substring match on supplier name
	TipoDte      int    // exact document-type code
	Estado       string // exact status

	EmisionDesde time.Time // inclusive lower bound on issue date
	EmisionHasta time.Time // inclusive upper bound on issue date

	TotalMin *float64 // inclusive lower bound on total amount
	TotalMax *float64 // inclusive upper bound on total amount
}

// State is the full view configuration the projection derives from.
type State struct {
	Search    string
	Filters   Filters
	SortField SortField
	SortDir   SortDir
	Columns   ColumnSet
}

// DefaultState returns the initial view configuration.
func DefaultState() State {
	return State{
		SortField: SortFechaEmision,
		SortDir:   Ascending,
		Columns:   PresetDefault(),
	}
}

// ToggleSort switches direction when field is already selected and resets
// to ascending when a new field is selected.
func (s *State) ToggleSort(field SortField) {
	if s.SortField == field {
		if s.SortDir == Ascending {
			s.SortDir = Descending
		} else {
			s.SortDir = Ascending
		}
		return
	}
	s.SortField = field
	s.SortDir = Ascending
}

// Apply derives the filtered, searched, and sorted projection of rows. The
// input slice is never mutated.
func Apply(rows []ledger.Row, state State) []ledger.Row {
	out := make([]ledger.Row, 0, len(rows))
	search := strings.ToLower(strings.TrimSpace(state.Search))
	for _, row := range rows {
		if search != "" && !strings.Contains(strings.ToLower(searchHaystack(row)), search) {
			continue
		}
		if !matchesFilters(row, state.Filters) {
			continue
		}
		out = append(out, row)
	}
	sortRows(out, state.SortField, state.SortDir)
	return out
}

// Totals is the linear reduction over a (typically filtered) row set.
type Totals struct {
	Documentos     int
	MontoNeto      float64
	IvaRecuperable float64
	MontoTotal     float64
}

// Sum computes the totals of rows.
func Sum(rows []ledger.Row) Totals {
	t := Totals{Documentos: len(rows)}
	for _, row := range rows {
		t.MontoNeto += row.MontoNeto
		t.IvaRecuperable += row.IvaRecuperable
		t.MontoTotal += row.MontoTotal
	}
	return t
}

// searchHaystack joins every display-formatted field of the row, so a
// search for a formatted currency string or a localized date substring
// succeeds the same way it would against the rendered table.
func searchHaystack(row ledger.Row) string {
	parts := []string{
		row.TipoDteLabel,
		row.RutProveedor,
		row.RazonSocial,
		row.Folio,
		FormatFecha(row.FechaEmision),
		FormatFecha(row.FechaRecepcion),
		FormatCLP(row.MontoNeto),
		FormatCLP(row.IvaRecuperable),
		FormatCLP(row.MontoTotal),
		row.Estado,
		row.Comentario,
	}
	return strings.Join(parts, " ")
}

func matchesFilters(row ledger.Row, f Filters) bool {
	if rut := strings.TrimSpace(f.RutProveedor); rut != "" {
		if !strings.Contains(strings.ToLower(row.RutProveedor), strings.ToLower(rut)) {
			return false
		}
	}
	if name := strings.TrimSpace(f.RazonSocial); name != "" {
		if !strings.Contains(strings.ToLower(row.RazonSocial), strings.ToLower(name)) {
			return false
		}
	}
	if f.TipoDte != 0 && row.TipoDte != f.TipoDte {
		return false
	}
	if f.Estado != "" && row.Estado != f.Estado {
		return false
	}
	if !f.EmisionDesde.IsZero() {
		if row.FechaEmision.IsZero() || row.FechaEmision.Before(f.EmisionDesde) {
			return false
		}
	}
	if !f.EmisionHasta.IsZero() {
		if row.FechaEmision.IsZero() || row.FechaEmision.After(f.EmisionHasta) {
			return false
		}
	}
	if f.TotalMin != nil && row.MontoTotal < *f.TotalMin {
		return false
	}
	if f.TotalMax != nil && row.MontoTotal > *f.TotalMax {
		return false
	}
	return true
}

func sortRows(rows []ledger.Row, field SortField, dir SortDir) {
	if field == "" {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		cmp := compareRows(rows[i], rows[j], field)
		if dir == Descending {
			cmp = -cmp
		}
		return cmp < 0
	})
}

// compareRows orders two rows on field. Zero-valued dates do not order
// against anything: they contribute zero to the comparison, so the stable
// sort leaves their relative position untouched.
func compareRows(a, b ledger.Row, field SortField) int {
	switch field {
	case SortTipoDte:
		return compareInt(a.TipoDte, b.TipoDte)
	case SortRutProveedor:
		return strings.Compare(a.RutProveedor, b.RutProveedor)
	case SortRazonSocial:
		return strings.Compare(a.RazonSocial, b.RazonSocial)
	case SortFolio:
		return compareInt64(a.FolioNum(), b.FolioNum())
	case SortFechaEmision:
		return compareFecha(a.FechaEmision, b.FechaEmision)
	case SortFechaRecepcion:
		return compareFecha(a.FechaRecepcion, b.FechaRecepcion)
	case SortMontoNeto:
		return compareFloat(a.MontoNeto, b.MontoNeto)
	case SortIvaRecuperable:
		return compareFloat(a.IvaRecuperable, b.IvaRecuperable)
	case SortMontoTotal:
		return compareFloat(a.MontoTotal, b.MontoTotal)
	case SortEstado:
		return strings.Compare(a.Estado, b.Estado)
	default:
		return 0
	}
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFecha(a, b time.Time) int {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
