package view

// ColumnID identifies one of the 13 fixed table columns.
type ColumnID string

const (
	ColTipoDte        ColumnID = "tipoDte"
	ColRutProveedor   ColumnID = "rutProveedor"
	ColRazonSocial    ColumnID = "razonSocial"
	ColFolio          ColumnID = "folio"
	ColFechaEmision   ColumnID = "fechaEmision"
	ColFechaRecepcion ColumnID = "fechaRecepcion"
	ColMontoNeto      ColumnID = "montoNeto"
	ColIvaRecuperable ColumnID = "ivaRecuperable"
	ColMontoTotal     ColumnID = "montoTotal"
	ColEstado         ColumnID = "estado"
	ColContabilizado  ColumnID = "contabilizado"
	ColPagado         ColumnID = "pagado"
	ColComentario     ColumnID = "comentario"
)

// Column pairs a column id with its display title.
type Column struct {
	ID    ColumnID
	Title string
}

// Columns returns the fixed column layout, in table (and export) order.
func Columns() []Column {
	return []Column{
		{ColTipoDte, "Tipo DTE"},
		{ColRutProveedor, "RUT Proveedor"},
		{ColRazonSocial, "Razón Social"},
		{ColFolio, "Folio"},
		{ColFechaEmision, "Fecha Emisión"},
		{ColFechaRecepcion, "Fecha Recepción"},
		{ColMontoNeto, "Monto Neto"},
		{ColIvaRecuperable, "IVA Recuperable"},
		{ColMontoTotal, "Monto Total"},
		{ColEstado, "Estado"},
		{ColContabilizado, "Contabilizado"},
		{ColPagado, "Pagado"},
		{ColComentario, "Comentario"},
	}
}

// ColumnSet is the per-column visibility map. It affects rendering only,
// never the underlying filtered/sorted data, and the export ignores it.
type ColumnSet map[ColumnID]bool

// PresetAll shows every column.
func PresetAll() ColumnSet {
	set := make(ColumnSet, 13)
	for _, c := range Columns() {
		set[c.ID] = true
	}
	return set
}

// PresetEsencial shows the minimal reading set.
func PresetEsencial() ColumnSet {
	return ColumnSet{
		ColTipoDte:     true,
		ColRazonSocial: true,
		ColFolio:       true,
		ColMontoTotal:  true,
		ColEstado:      true,
	}
}

// PresetDefault shows everything except the reception date, which mostly
// duplicates the issue date.
func PresetDefault() ColumnSet {
	set := PresetAll()
	set[ColFechaRecepcion] = false
	return set
}

// Preset names as persisted in the preferences file.
const (
	PresetNameAll      = "todas"
	PresetNameEsencial = "esencial"
	PresetNameDefault  = "default"
)

// PresetByName maps a persisted preset name to its ColumnSet. Unknown
// names resolve to the default preset.
func PresetByName(name string) ColumnSet {
	switch name {
	case PresetNameAll:
		return PresetAll()
	case PresetNameEsencial:
		return PresetEsencial()
	default:
		return PresetDefault()
	}
}

// ColumnSetFromPrefs rebuilds a persisted visibility state: the named
// preset with the listed columns hidden on top. Unknown ids are ignored.
func ColumnSetFromPrefs(preset string, hidden []string) ColumnSet {
	set := PresetByName(preset)
	for _, id := range hidden {
		if _, ok := set[ColumnID(id)]; ok {
			set[ColumnID(id)] = false
		}
	}
	return set
}

// HiddenIDs returns the ids hidden relative to the named preset, in table
// order, for persistence.
func (s ColumnSet) HiddenIDs(preset string) []string {
	base := PresetByName(preset)
	var out []string
	for _, c := range Columns() {
		if base[c.ID] && !s[c.ID] {
			out = append(out, string(c.ID))
		}
	}
	return out
}

// Toggle flips the visibility of one column.
func (s ColumnSet) Toggle(id ColumnID) {
	s[id] = !s[id]
}

// Visible reports whether the column is shown.
func (s ColumnSet) Visible(id ColumnID) bool {
	return s[id]
}

// VisibleColumns returns the fixed layout restricted to the visible set.
func (s ColumnSet) VisibleColumns() []Column {
	out := make([]Column, 0, 13)
	for _, c := range Columns() {
		if s[c.ID] {
			out = append(out, c)
		}
	}
	return out
}
