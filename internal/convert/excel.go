package convert

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet はExcelの1シート分のデータをCSVテキストとして保持します。
type Sheet struct {
	Name string
	CSV  string
}

// ExcelToSheets はxlsxファイルの全シートをCSVテキストへ変換します。
func ExcelToSheets(path string) ([]Sheet, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer file.Close()

	var sheets []Sheet
	for _, name := range file.GetSheetList() {
		rows, err := file.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}

		var buf strings.Builder
		writer := csv.NewWriter(&buf)
		for _, row := range rows {
			if err := writer.Write(row); err != nil {
				return nil, fmt.Errorf("failed to convert sheet %s: %w", name, err)
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, fmt.Errorf("failed to convert sheet %s: %w", name, err)
		}

		sheets = append(sheets, Sheet{Name: name, CSV: buf.String()})
	}

	return sheets, nil
}

// SheetsToExcel はCSVテキストのシート群をxlsxファイルとして書き出します。
func SheetsToExcel(sheets []Sheet, outputPath string) error {
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets to write")
	}

	file := excelize.NewFile()
	defer file.Close()

	for i, sheet := range sheets {
		if i == 0 {
			if err := file.SetSheetName(file.GetSheetName(0), sheet.Name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else {
			if _, err := file.NewSheet(sheet.Name); err != nil {
				return fmt.Errorf("failed to add sheet %s: %w", sheet.Name, err)
			}
		}

		reader := csv.NewReader(strings.NewReader(sheet.CSV))
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true
		records, err := reader.ReadAll()
		if err != nil {
			return fmt.Errorf("failed to parse sheet %s: %w", sheet.Name, err)
		}

		for rowIdx, record := range records {
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+1)
			if err != nil {
				return fmt.Errorf("failed to address row %d: %w", rowIdx+1, err)
			}
			values := make([]interface{}, len(record))
			for i, v := range record {
				values[i] = v
			}
			if err := file.SetSheetRow(sheet.Name, cell, &values); err != nil {
				return fmt.Errorf("failed to write row %d of sheet %s: %w", rowIdx+1, sheet.Name, err)
			}
		}
	}

	if err := file.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save excel file: %w", err)
	}
	return nil
}
