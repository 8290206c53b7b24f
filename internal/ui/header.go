package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/tiagowhuber/ConsultasSII/internal/live"
	"github.com/tiagowhuber/ConsultasSII/internal/sii"
	"github.com/tiagowhuber/ConsultasSII/internal/view"
)

// timeNow is swapped in tests.
var timeNow = time.Now

func (m Model) View() string {
	if m.width == 0 {
		return "cargando..."
	}
	if m.mode == modeLogs {
		return m.renderLogs()
	}

	sections := []string{m.renderHeader(), m.renderFilterBar()}
	if toasts := m.renderToasts(); toasts != "" {
		sections = append(sections, toasts)
	}
	if m.mode == modePermission {
		sections = append(sections, m.renderPermissionModal())
	}
	sections = append(sections, m.table.View())
	switch m.mode {
	case modeSearch:
		sections = append(sections, "Buscar: "+m.search.View())
	case modeComment:
		sections = append(sections, "Comentario: "+m.comment.View())
	}
	sections = append(sections, m.renderStatusLine(), m.help.View(m.keys))
	return strings.Join(sections, "\n")
}

// chromeHeight is the number of terminal rows everything but the table
// occupies, used to size the table.
func (m Model) chromeHeight() int {
	h := 4 // header, filter bar, status line, short help
	if m.help.ShowAll {
		h += 4
	}
	if m.mode == modeSearch || m.mode == modeComment {
		h++
	}
	if m.mode == modePermission {
		h += 5
	}
	h += len(m.opts.Center.Active()) * 3
	return h
}

func (m Model) renderHeader() string {
	s := m.styles
	parts := []string{s.logo.Render("LibroCompras")}

	if m.snapshot.Empresa.RazonSocial != "" {
		parts = append(parts, s.header.Render(m.snapshot.Empresa.RazonSocial))
	}
	if m.snapshot.HasPeriodo {
		parts = append(parts, s.accent.Render(m.snapshot.Periodo.Label()))
	}

	parts = append(parts, m.renderConnDot())

	if quota := formatLlamadas(m.snapshot.Llamadas); quota != "" {
		parts = append(parts, s.muted.Render(quota))
	}
	if unread := m.opts.Center.Unread(); unread > 0 {
		parts = append(parts, s.accent.Render(fmt.Sprintf("● %d nuevas", unread)))
	}
	if m.snapshot.Loading {
		parts = append(parts, s.warning.Render("Cargando..."))
	}
	if m.snapshot.LastError != nil {
		parts = append(parts, s.danger.Render("ERROR "+truncate(m.snapshot.ErrorMessage(), 60)))
	}

	return strings.Join(parts, "  ")
}

func (m Model) renderConnDot() string {
	switch m.opts.Channel.State() {
	case live.Connected:
		return m.styles.success.Render("● en vivo")
	case live.Connecting:
		return m.styles.warning.Render("● conectando")
	default:
		return m.styles.muted.Render("○ sin push")
	}
}

// renderFilterBar shows the projection state: counts, totals over the
// filtered set, and the active sort and filters.
func (m Model) renderFilterBar() string {
	s := m.styles
	totals := view.Sum(m.visible)

	dir := "↑"
	if m.state.SortDir == view.Descending {
		dir = "↓"
	}

	parts := []string{
		fmt.Sprintf("Docs %d/%d", len(m.visible), len(m.snapshot.Rows)),
		"Total " + view.FormatCLP(totals.MontoTotal),
		"Neto " + view.FormatCLP(totals.MontoNeto),
		"IVA " + view.FormatCLP(totals.IvaRecuperable),
		"orden " + sortFieldLabel(m.state.SortField) + " " + dir,
		"estado " + estadoLabel(m.state.Filters.Estado),
		"tipo " + tipoFilterLabel(m.state.Filters.TipoDte),
		"columnas " + m.preset,
	}
	if m.state.Search != "" {
		parts = append(parts, fmt.Sprintf("búsqueda %q", m.state.Search))
	}
	return s.muted.Render(strings.Join(parts, " │ "))
}

func (m Model) renderToasts() string {
	active := m.opts.Center.Active()
	if len(active) == 0 {
		return ""
	}
	boxes := make([]string, len(active))
	for i, n := range active {
		boxes[i] = m.styles.toast.Render(m.styles.accent.Render(n.Title) + "\n" + n.Body)
	}
	return strings.Join(boxes, "\n")
}

func (m Model) renderPermissionModal() string {
	return m.styles.modal.Render(
		"Nuevo documento recibido.\n" +
			"¿Mostrar notificaciones de nuevos documentos? (s/n)")
}

func (m Model) renderStatusLine() string {
	if m.status == "" || timeNow().After(m.statusUntil) {
		return ""
	}
	if m.statusError {
		return m.styles.danger.Render(m.status)
	}
	return m.styles.status.Render(m.status)
}

func (m Model) renderLogs() string {
	s := m.styles
	header := s.logo.Render("LibroCompras") + "  " + s.header.Render("log") + "  " +
		s.muted.Render(m.opts.Config.LogPath())

	max := m.height - 3
	if max < 1 {
		max = 1
	}
	lines := m.logLines
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}

	footer := s.muted.Render("esc/l volver  q salir")
	return header + "\n" + strings.Join(lines, "\n") + "\n" + footer
}

func formatLlamadas(l sii.Llamadas) string {
	if l.Limite == 0 && l.Llamadas == 0 {
		return ""
	}
	return fmt.Sprintf("SII %d/%d", l.Llamadas, l.Limite)
}

func sortFieldLabel(field view.SortField) string {
	switch field {
	case view.SortTipoDte:
		return "tipo"
	case view.SortRutProveedor:
		return "rut"
	case view.SortRazonSocial:
		return "razón social"
	case view.SortFolio:
		return "folio"
	case view.SortFechaEmision:
		return "fecha emisión"
	case view.SortFechaRecepcion:
		return "fecha recepción"
	case view.SortMontoNeto:
		return "neto"
	case view.SortIvaRecuperable:
		return "iva"
	case view.SortMontoTotal:
		return "total"
	case view.SortEstado:
		return "estado"
	default:
		return string(field)
	}
}

// truncate shortens a string to max runes with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
