package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/tiagowhuber/ConsultasSII/internal/config"
	"github.com/tiagowhuber/ConsultasSII/internal/ledger"
	"github.com/tiagowhuber/ConsultasSII/internal/live"
	"github.com/tiagowhuber/ConsultasSII/internal/logtail"
	"github.com/tiagowhuber/ConsultasSII/internal/notas"
	"github.com/tiagowhuber/ConsultasSII/internal/prefs"
	"github.com/tiagowhuber/ConsultasSII/internal/sii"
	"github.com/tiagowhuber/ConsultasSII/internal/view"
)

// Options carry everything the TUI needs from the composition root.
type Options struct {
	Context            context.Context
	Config             config.Config
	Prefs              prefs.Prefs
	PrefsPath          string
	Ledger             *ledger.Store
	Notas              *notas.Store
	Center             *live.Center
	Channel            *live.Channel
	PermissionRequests <-chan chan live.Permission
	Log                zerolog.Logger
}

// Run starts the TUI and blocks until the user quits or the context is
// cancelled.
func Run(opts Options) error {
	program := tea.NewProgram(newModel(opts), tea.WithAltScreen(), tea.WithContext(opts.Context))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && opts.Context.Err() != nil {
		// Cancellation (SIGINT/SIGTERM) is a normal exit.
		return nil
	}
	return err
}

type mode int

const (
	modeTable mode = iota
	modeSearch
	modeComment
	modeLogs
	modePermission
)

const (
	refreshEvery   = time.Second
	statusLifetime = 5 * time.Second
	logViewLines   = 500
)

// Model is the single bubbletea model for the whole dashboard.
type Model struct {
	opts   Options
	keys   keyMap
	help   help.Model
	styles styles

	width  int
	height int
	mode   mode

	snapshot ledger.Snapshot
	state    view.State
	preset   string
	visible  []ledger.Row

	table   table.Model
	search  textinput.Model
	comment textinput.Model

	commentKey sii.NotaKey
	estadoIdx  int
	tipoIdx    int
	tipos      []int

	logLines []string

	permReply chan<- live.Permission

	status      string
	statusError bool
	statusUntil time.Time
}

func newModel(opts Options) Model {
	state := view.DefaultState()
	state.Columns = view.ColumnSetFromPrefs(opts.Prefs.Preset, opts.Prefs.HiddenColumns)

	search := textinput.New()
	search.Placeholder = "buscar en todas las columnas"
	search.CharLimit = 120

	comment := textinput.New()
	comment.Placeholder = "comentario"
	comment.CharLimit = 500

	m := Model{
		opts:    opts,
		keys:    newKeyMap(),
		help:    help.New(),
		styles:  defaultStyles(),
		state:   state,
		preset:  opts.Prefs.Preset,
		search:  search,
		comment: comment,
		table:   newTable(state.Columns),
	}
	m.refresh()
	return m
}

type (
	tickMsg              time.Time
	permissionRequestMsg chan live.Permission
	reloadDoneMsg        struct{ err error }
	triggerDoneMsg       struct{ err error }
	exportDoneMsg        struct {
		path string
		err  error
	}
	notaDoneMsg struct{ err error }
)

func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), waitPermission(m.opts.PermissionRequests))
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// waitPermission blocks on the next permission request from the
// notification center and surfaces it as a message.
func waitPermission(requests <-chan chan live.Permission) tea.Cmd {
	if requests == nil {
		return nil
	}
	return func() tea.Msg {
		reply, ok := <-requests
		if !ok {
			return nil
		}
		return permissionRequestMsg(reply)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.layoutTable()
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case permissionRequestMsg:
		m.mode = modePermission
		m.permReply = msg
		return m, nil

	case reloadDoneMsg:
		if msg.err != nil {
			m.setStatus("recarga fallida: "+sii.UserMessage(msg.err), true)
		} else {
			m.setStatus("periodo recargado", false)
		}
		m.refresh()
		return m, nil

	case triggerDoneMsg:
		if msg.err != nil {
			m.setStatus("consulta SII fallida: "+sii.UserMessage(msg.err), true)
		} else {
			m.setStatus("consulta SII completada", false)
		}
		m.refresh()
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.setStatus("exportación fallida: "+sii.UserMessage(msg.err), true)
		} else {
			m.setStatus("exportado a "+msg.path, false)
		}
		return m, nil

	case notaDoneMsg:
		if msg.err != nil {
			m.setStatus("anotación fallida: "+sii.UserMessage(msg.err), true)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeSearch:
		return m.handleSearchKey(msg)
	case modeComment:
		return m.handleCommentKey(msg)
	case modePermission:
		return m.handlePermissionKey(msg)
	case modeLogs:
		return m.handleLogsKey(msg)
	}
	return m.handleTableKey(msg)
}

func (m Model) handleTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := m.keys
	switch {
	case keyMatches(msg, keys.Quit):
		m.savePrefs()
		return m, tea.Quit

	case keyMatches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layoutTable()
		return m, nil

	case keyMatches(msg, keys.Search):
		m.mode = modeSearch
		m.search.SetValue(m.state.Search)
		return m, m.search.Focus()

	case keyMatches(msg, keys.ClearFilters):
		m.state.Search = ""
		m.state.Filters = view.Filters{}
		m.estadoIdx = 0
		m.tipoIdx = 0
		m.project()
		return m, nil

	case keyMatches(msg, keys.SortField):
		m.cycleSortField()
		m.project()
		return m, nil

	case keyMatches(msg, keys.SortDir):
		m.state.ToggleSort(m.state.SortField)
		m.project()
		return m, nil

	case keyMatches(msg, keys.FilterEstado):
		m.cycleEstado()
		m.project()
		return m, nil

	case keyMatches(msg, keys.FilterTipo):
		m.cycleTipo()
		m.project()
		return m, nil

	case keyMatches(msg, keys.Columns):
		m.cyclePreset()
		m.layoutTable()
		m.project()
		return m, nil

	case keyMatches(msg, keys.Export):
		return m, m.exportCmd()

	case keyMatches(msg, keys.Fetch):
		m.setStatus("consultando al SII...", false)
		return m, m.triggerCmd()

	case keyMatches(msg, keys.Reload):
		m.setStatus("recargando periodo...", false)
		return m, m.reloadCmd()

	case keyMatches(msg, keys.Logs):
		m.mode = modeLogs
		m.loadLogLines()
		return m, nil

	case keyMatches(msg, keys.Bell):
		m.opts.Center.MarkRead()
		return m, nil

	case keyMatches(msg, keys.Comment):
		row, ok := m.selectedRow()
		if !ok {
			return m, nil
		}
		m.mode = modeComment
		m.commentKey = row.Key()
		m.comment.SetValue(row.Comentario)
		return m, m.comment.Focus()

	case keyMatches(msg, keys.Contabilizado):
		row, ok := m.selectedRow()
		if !ok {
			return m, nil
		}
		return m, m.toggleContabilizadoCmd(row)

	case keyMatches(msg, keys.Pagado):
		row, ok := m.selectedRow()
		if !ok {
			return m, nil
		}
		return m, m.togglePagadoCmd(row)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeTable
		m.search.Blur()
		m.state.Search = ""
		m.project()
		return m, nil
	case "enter":
		m.mode = modeTable
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	// Live projection: the table narrows while the user types.
	m.state.Search = m.search.Value()
	m.project()
	return m, cmd
}

func (m Model) handleCommentKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeTable
		m.comment.Blur()
		return m, nil
	case "enter":
		m.mode = modeTable
		m.comment.Blur()
		return m, m.saveCommentCmd(m.commentKey, m.comment.Value())
	}

	var cmd tea.Cmd
	m.comment, cmd = m.comment.Update(msg)
	return m, cmd
}

func (m Model) handlePermissionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var decision live.Permission
	switch msg.String() {
	case "y", "Y", "s", "S":
		decision = live.PermissionGranted
	case "n", "N", "esc":
		decision = live.PermissionDenied
	default:
		return m, nil
	}

	if m.permReply != nil {
		m.permReply <- decision
		m.permReply = nil
	}
	if decision == live.PermissionGranted {
		m.opts.Prefs.Notifications = "granted"
	} else {
		m.opts.Prefs.Notifications = "denied"
	}
	m.savePrefs()
	m.mode = modeTable
	return m, waitPermission(m.opts.PermissionRequests)
}

func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case keyMatches(msg, m.keys.Quit):
		m.savePrefs()
		return m, tea.Quit
	case keyMatches(msg, m.keys.Logs):
		m.mode = modeTable
		return m, nil
	}
	if msg.String() == "esc" {
		m.mode = modeTable
	}
	return m, nil
}

// refresh re-reads the ledger snapshot and recomputes the projection.
func (m *Model) refresh() {
	m.snapshot = m.opts.Ledger.Snapshot()
	m.tipos = uniqueTipos(m.snapshot.Rows)
	if m.tipoIdx > len(m.tipos) {
		m.tipoIdx = 0
		m.state.Filters.TipoDte = 0
	}
	if m.mode == modeLogs {
		m.loadLogLines()
	}
	m.layoutTable()
	m.project()
}

func (m *Model) loadLogLines() {
	lines, err := logtail.Read(m.opts.Config.LogPath(), logViewLines)
	if err != nil {
		m.logLines = []string{"no se pudo leer el log: " + err.Error()}
		return
	}
	m.logLines = logtail.FormatLines(lines)
}

func (m *Model) setStatus(text string, isError bool) {
	m.status = text
	m.statusError = isError
	m.statusUntil = time.Now().Add(statusLifetime)
}

func (m *Model) savePrefs() {
	p := m.opts.Prefs
	p.Preset = m.preset
	p.HiddenColumns = m.state.Columns.HiddenIDs(m.preset)
	if err := prefs.Save(m.opts.PrefsPath, p); err != nil {
		m.opts.Log.Warn().Err(err).Msg("save prefs failed")
	}
	m.opts.Prefs = p
}

func (m Model) selectedRow() (ledger.Row, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.visible) {
		return ledger.Row{}, false
	}
	return m.visible[idx], true
}

func (m Model) reloadCmd() tea.Cmd {
	store, cfg, ctx := m.opts.Ledger, m.opts.Config, m.opts.Context
	return func() tea.Msg {
		return reloadDoneMsg{err: store.LoadAll(ctx, cfg.Rut, cfg.Mes, cfg.Anio)}
	}
}

func (m Model) triggerCmd() tea.Cmd {
	store, cfg, ctx := m.opts.Ledger, m.opts.Config, m.opts.Context
	return func() tea.Msg {
		return triggerDoneMsg{err: store.TriggerFetch(ctx, cfg.Rut, cfg.Mes, cfg.Anio)}
	}
}

func (m Model) exportCmd() tea.Cmd {
	rows := make([]ledger.Row, len(m.visible))
	copy(rows, m.visible)
	label := "sin-periodo"
	if m.snapshot.HasPeriodo {
		label = m.snapshot.Periodo.Label()
	}
	return func() tea.Msg {
		dir, err := os.UserHomeDir()
		if err != nil {
			dir = "."
		}
		path := filepath.Join(dir, view.ExportFilename(label, time.Now()))
		if err := view.Export(rows, path); err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{path: path}
	}
}

func (m Model) saveCommentCmd(key sii.NotaKey, text string) tea.Cmd {
	store, ctx := m.opts.Notas, m.opts.Context
	return func() tea.Msg {
		return notaDoneMsg{err: store.UpdateComentario(ctx, key, text)}
	}
}

func (m Model) toggleContabilizadoCmd(row ledger.Row) tea.Cmd {
	store, ctx := m.opts.Notas, m.opts.Context
	key, next := row.Key(), !row.Contabilizado
	return func() tea.Msg {
		return notaDoneMsg{err: store.UpdateContabilizado(ctx, key, next)}
	}
}

func (m Model) togglePagadoCmd(row ledger.Row) tea.Cmd {
	store, ctx := m.opts.Notas, m.opts.Context
	key, next := row.Key(), !row.Pagado
	return func() tea.Msg {
		return notaDoneMsg{err: store.UpdatePagado(ctx, key, next)}
	}
}
