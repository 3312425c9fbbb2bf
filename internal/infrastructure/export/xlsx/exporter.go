package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
)

const SheetName = "Leads"

type column struct {
	header string
	width  float64
	value  func(domain.Lead) any
}

var columns = []column{
	{"ID", 8, func(l domain.Lead) any { return l.ID }},
	{"Created", 20, func(l domain.Lead) any { return l.CreatedAt.UTC().Format("2006-01-02 15:04") }},
	{"Organization", 32, func(l domain.Lead) any { return l.OrgName }},
	{"Org Type", 16, func(l domain.Lead) any { return l.OrgType }},
	{"Title", 48, func(l domain.Lead) any { return l.Title }},
	{"Source", 24, func(l domain.Lead) any { return l.SourceName }},
	{"Source Type", 12, func(l domain.Lead) any { return string(l.SourceType) }},
	{"Confidence", 12, func(l domain.Lead) any {
		if l.ConfidenceScore == nil {
			return ""
		}
		return *l.ConfidenceScore
	}},
	{"Services", 36, func(l domain.Lead) any {
		names := make([]string, 0, len(l.ServiceMatches))
		for _, s := range l.ServiceMatches {
			names = append(names, string(s))
		}
		return strings.Join(names, ", ")
	}},
	{"Intent Signals", 36, func(l domain.Lead) any { return strings.Join(l.IntentSignals, "; ") }},
	{"Status", 12, func(l domain.Lead) any { return string(l.Status) }},
	{"EIN", 12, func(l domain.Lead) any {
		if l.Enrichment == nil {
			return ""
		}
		return l.Enrichment.EIN
	}},
	{"Revenue", 14, func(l domain.Lead) any {
		if l.Enrichment == nil || l.Enrichment.TotalRevenue == nil {
			return ""
		}
		return *l.Enrichment.TotalRevenue
	}},
	{"URL", 40, func(l domain.Lead) any { return l.SourceURL }},
	{"Summary", 60, func(l domain.Lead) any { return l.Summary }},
	{"Notes", 40, func(l domain.Lead) any { return l.Notes }},
}

// Write renders leads as a single-sheet workbook with a frozen header row.
func Write(w io.Writer, leads []domain.Lead) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	header := make([]any, len(columns))
	for i, col := range columns {
		header[i] = col.header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(SheetName, name, name, col.width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	for i, lead := range leads {
		row := make([]any, len(columns))
		for j, col := range columns {
			row[j] = col.value(lead)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row cell: %w", err)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write lead %d: %w", lead.ID, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
