package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type keyMap struct {
	Up            key.Binding
	Down          key.Binding
	Search        key.Binding
	ClearFilters  key.Binding
	SortField     key.Binding
	SortDir       key.Binding
	FilterEstado  key.Binding
	FilterTipo    key.Binding
	Columns       key.Binding
	Comment       key.Binding
	Contabilizado key.Binding
	Pagado        key.Binding
	Export        key.Binding
	Fetch         key.Binding
	Reload        key.Binding
	Logs          key.Binding
	Bell          key.Binding
	Help          key.Binding
	Quit          key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:            key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "subir")),
		Down:          key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "bajar")),
		Search:        key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "buscar")),
		ClearFilters:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "limpiar filtros")),
		SortField:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "ordenar por")),
		SortDir:       key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "invertir orden")),
		FilterEstado:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "filtrar estado")),
		FilterTipo:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "filtrar tipo")),
		Columns:       key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "columnas")),
		Comment:       key.NewBinding(key.WithKeys("c", "enter"), key.WithHelp("c", "comentario")),
		Contabilizado: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "contabilizado")),
		Pagado:        key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pagado")),
		Export:        key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "exportar xlsx")),
		Fetch:         key.NewBinding(key.WithKeys("F"), key.WithHelp("F", "consultar SII")),
		Reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "recargar")),
		Logs:          key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "ver log")),
		Bell:          key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "marcar leídas")),
		Help:          key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "ayuda")),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "salir")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.SortField, k.FilterEstado, k.Export, k.Reload, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Search, k.ClearFilters},
		{k.SortField, k.SortDir, k.FilterEstado, k.FilterTipo, k.Columns},
		{k.Comment, k.Contabilizado, k.Pagado},
		{k.Export, k.Fetch, k.Reload, k.Logs, k.Bell, k.Quit},
	}
}

func keyMatches(msg tea.KeyMsg, binding key.Binding) bool {
	return key.Matches(msg, binding)
}
