package ui

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/tiagowhuber/ConsultasSII/internal/ledger"
	"github.com/tiagowhuber/ConsultasSII/internal/sii"
	"github.com/tiagowhuber/ConsultasSII/internal/view"
)

// columnWidths fixes the rendered width per column id.
var columnWidths = map[view.ColumnID]int{
	view.ColTipoDte:        24,
	view.ColRutProveedor:   14,
	view.ColRazonSocial:    28,
	view.ColFolio:          8,
	view.ColFechaEmision:   12,
	view.ColFechaRecepcion: 12,
	view.ColMontoNeto:      12,
	view.ColIvaRecuperable: 12,
	view.ColMontoTotal:     12,
	view.ColEstado:         12,
	view.ColContabilizado:  6,
	view.ColPagado:         6,
	view.ColComentario:     30,
}

// sortCycle is the order the sort hotkey walks through.
var sortCycle = []view.SortField{
	view.SortFechaEmision,
	view.SortFolio,
	view.SortMontoTotal,
	view.SortRazonSocial,
	view.SortTipoDte,
	view.SortEstado,
}

// estadoCycle is the order the estado filter hotkey walks through; the
// empty entry clears the filter.
var estadoCycle = []string{"", sii.EstadoConfirmado, sii.EstadoPendiente, sii.EstadoReclamado}

func newTable(columns view.ColumnSet) table.Model {
	t := table.New(
		table.WithColumns(tableColumns(columns)),
		table.WithFocused(true),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func tableColumns(columns view.ColumnSet) []table.Column {
	visible := columns.VisibleColumns()
	out := make([]table.Column, len(visible))
	for i, col := range visible {
		out[i] = table.Column{Title: col.Title, Width: columnWidths[col.ID]}
	}
	return out
}

// project recomputes the visible rows from the snapshot and view state and
// pushes them into the table, keeping the cursor on a valid row.
func (m *Model) project() {
	m.visible = view.Apply(m.snapshot.Rows, m.state)

	rows := make([]table.Row, len(m.visible))
	visible := m.state.Columns.VisibleColumns()
	for i, row := range m.visible {
		cells := make(table.Row, len(visible))
		for j, col := range visible {
			cells[j] = cellValue(row, col.ID)
		}
		rows[i] = cells
	}

	cursor := m.table.Cursor()
	m.table.SetRows(rows)
	if cursor >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

// layoutTable resizes the table to the current window and column set.
func (m *Model) layoutTable() {
	m.table.SetColumns(tableColumns(m.state.Columns))
	if m.width > 0 {
		m.table.SetWidth(m.width)
	}
	if m.height > 0 {
		h := m.height - m.chromeHeight()
		if h < 3 {
			h = 3
		}
		m.table.SetHeight(h)
	}
}

// cellValue renders one row attribute with the display formatting the
// search and the export use.
func cellValue(row ledger.Row, id view.ColumnID) string {
	switch id {
	case view.ColTipoDte:
		return row.TipoDteLabel
	case view.ColRutProveedor:
		return row.RutProveedor
	case view.ColRazonSocial:
		return row.RazonSocial
	case view.ColFolio:
		return row.Folio
	case view.ColFechaEmision:
		return view.FormatFecha(row.FechaEmision)
	case view.ColFechaRecepcion:
		return view.FormatFecha(row.FechaRecepcion)
	case view.ColMontoNeto:
		return view.FormatCLP(row.MontoNeto)
	case view.ColIvaRecuperable:
		return view.FormatCLP(row.IvaRecuperable)
	case view.ColMontoTotal:
		return view.FormatCLP(row.MontoTotal)
	case view.ColEstado:
		return row.Estado
	case view.ColContabilizado:
		return view.FormatBool(row.Contabilizado)
	case view.ColPagado:
		return view.FormatBool(row.Pagado)
	case view.ColComentario:
		return row.Comentario
	default:
		return ""
	}
}

func uniqueTipos(rows []ledger.Row) []int {
	seen := make(map[int]struct{}, 8)
	for _, row := range rows {
		seen[row.TipoDte] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for tipo := range seen {
		out = append(out, tipo)
	}
	sort.Ints(out)
	return out
}

func (m *Model) cycleSortField() {
	next := sortCycle[0]
	for i, field := range sortCycle {
		if field == m.state.SortField {
			next = sortCycle[(i+1)%len(sortCycle)]
			break
		}
	}
	m.state.SortField = next
	m.state.SortDir = view.Ascending
}

func (m *Model) cycleEstado() {
	m.estadoIdx = (m.estadoIdx + 1) % len(estadoCycle)
	m.state.Filters.Estado = estadoCycle[m.estadoIdx]
}

// cycleTipo walks "all" plus every document type present in the period.
func (m *Model) cycleTipo() {
	if len(m.tipos) == 0 {
		m.tipoIdx = 0
		m.state.Filters.TipoDte = 0
		return
	}
	m.tipoIdx = (m.tipoIdx + 1) % (len(m.tipos) + 1)
	if m.tipoIdx == 0 {
		m.state.Filters.TipoDte = 0
		return
	}
	m.state.Filters.TipoDte = m.tipos[m.tipoIdx-1]
}

func (m *Model) cyclePreset() {
	switch m.preset {
	case view.PresetNameDefault:
		m.preset = view.PresetNameAll
	case view.PresetNameAll:
		m.preset = view.PresetNameEsencial
	default:
		m.preset = view.PresetNameDefault
	}
	m.state.Columns = view.PresetByName(m.preset)
}

func estadoLabel(estado string) string {
	if estado == "" {
		return "todos"
	}
	return estado
}

func tipoFilterLabel(tipo int) string {
	if tipo == 0 {
		return "todos"
	}
	return fmt.Sprintf("%d", tipo)
}
