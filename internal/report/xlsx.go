package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"patchwork.studio/internal/quilt"
)

const (
	SummarySheet = "Summary"
	CutSheet     = "Cut List"
)

// WriteXLSX writes a workbook with a summary sheet and one cut-list row per
// quilt slot.
func WriteXLSX(w io.Writer, q *quilt.Quilt) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	s := Summarize(q)
	rows := [][]any{
		{"Item", "Value"},
		{"Blocks across", s.BlocksAcross},
		{"Blocks down", s.BlocksDown},
		{"Block size (in)", s.BlockSize},
		{"Finished width (in)", s.FinishedWidth},
		{"Finished length (in)", s.FinishedLength},
		{"Fabric A (sq in)", s.FabricA},
		{"Fabric B (sq in)", s.FabricB},
		{"Backing (sq in)", s.Backing},
		{"Binding length (in)", s.BindingLength},
		{"Binding (sq in)", s.Binding},
		{"Fabric A colour", colour(s.Colours[0])},
		{"Fabric B colour", colour(s.Colours[1])},
	}
	for _, p := range s.Patches {
		rows = append(rows, []any{p.Kind + " patches", p.Count})
	}
	if err := writeRows(f, SummarySheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "B1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", 24); err != nil {
		return err
	}

	if _, err := f.NewSheet(CutSheet); err != nil {
		return err
	}
	cut := [][]any{{"Slot", "Row", "Col", "Block", "Fabric A (sq in)", "Fabric B (sq in)", "Square", "HalfSquare", "HalfSquareTriangle"}}
	for i, b := range q.Blocks() {
		row, col, err := q.SlotPosition(i)
		if err != nil {
			return err
		}
		r := []any{i + 1, row + 1, col + 1}
		if b == nil {
			r = append(r, "")
		} else {
			r = append(r, DisplayName(b.BlockType()),
				b.CalculateFabric(quilt.FabricA), b.CalculateFabric(quilt.FabricB))
			for _, k := range quilt.Kinds() {
				r = append(r, b.CountPatches(k))
			}
		}
		cut = append(cut, r)
	}
	if err := writeRows(f, CutSheet, cut); err != nil {
		return err
	}
	if err := f.SetCellStyle(CutSheet, "A1", "I1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(CutSheet, "D", "D", 20); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func colour(c *string) string {
	if c == nil {
		return ""
	}
	return *c
}
