package view

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tiagowhuber/ConsultasSII/internal/ledger"
)

const exportSheet = "Libro de Compras"

// ExportFilename builds the workbook filename for a period label ("MM-YYYY")
// and the export date: Libro_Compras_<month>-<year>_<ISO-date>.xlsx.
func ExportFilename(periodLabel string, now time.Time) string {
	return fmt.Sprintf("Libro_Compras_%s_%s.xlsx", periodLabel, now.Format("2006-01-02"))
}

// BuildWorkbook serializes rows (the currently filtered and sorted
// projection, not the full dataset) into a workbook with the fixed
// 13-column layout and human-formatted values. Column visibility is
// ignored: the export always carries every column. Zero rows still produce
// a valid workbook with the header row.
func BuildWorkbook(rows []ledger.Row) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	columns := Columns()
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(exportSheet, cell, col.Title); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(exportSheet, "A1", "M1", headerStyle); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}
	if err := f.SetColWidth(exportSheet, "A", "M", 18); err != nil {
		return nil, fmt.Errorf("column width: %w", err)
	}

	for rowIdx, row := range rows {
		values := exportValues(row)
		for colIdx, value := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(exportSheet, cell, value); err != nil {
				return nil, fmt.Errorf("write row %d: %w", rowIdx+1, err)
			}
		}
	}
	return f, nil
}

// Export writes the workbook for rows to path.
func Export(rows []ledger.Row, path string) error {
	f, err := BuildWorkbook(rows)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// exportValues renders one row in the fixed column order with the same
// human formatting the table uses.
func exportValues(row ledger.Row) []string {
	return []string{
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
		FormatBool(row.Contabilizado),
		FormatBool(row.Pagado),
		row.Comentario,
	}
}
