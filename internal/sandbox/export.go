package sandbox

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet the XLSX export writes to.
const SheetName = "Registrations"

// rows lays the roster out the way the registration template does: one
// header row, then one row per player with a column per played round.
func (t *Tournament) rows() [][]string {
	players := t.Players()
	rounds := t.Rounds()

	header := []string{"ID", "Name", "Riot ID", "Team", "Registered", "Checked In"}
	for _, r := range rounds {
		header = append(header, "Round "+r)
	}
	out := [][]string{header}
	for _, p := range players {
		row := []string{p.Identifier, p.DisplayName, p.GameID, p.Team, yesNo(p.Registered), yesNo(p.CheckedIn)}
		for _, r := range rounds {
			if pts, ok := p.Points[r]; ok {
				row = append(row, strconv.Itoa(pts))
			} else {
				row = append(row, "")
			}
		}
		out = append(out, row)
	}
	return out
}

// CSV renders the sheet as a CSV export.
func (t *Tournament) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(t.rows()); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// XLSX renders the sheet as a workbook with a single SheetName worksheet.
func (t *Tournament) XLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	for i, row := range t.rows() {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
