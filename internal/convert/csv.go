package convert

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
)

// Row はCSV1行分のカラム名から値への対応です。
type Row map[string]string

// Table はヘッダー付きの表データです。カラムの並び順を保持します。
type Table struct {
	Columns []string
	Rows    []Row
}

// ParseCSV はUTF-8のCSVテキストを Table に変換します。
// 1行目をヘッダーとして扱い、行ごとのカラム数の不揃いを許容します。
func ParseCSV(text string) (*Table, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	columns := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

// FormatCSV は行データをCSVテキストへ整形します。columns の並び順を保ち、
// どの行にも columns にないキーがあれば末尾にソート順で追加します。
// 追加されたカラム名を第2戻り値で報告します。
func FormatCSV(columns []string, rows []Row) (string, []string, error) {
	known := make(map[string]bool, len(columns))
	for _, col := range columns {
		known[col] = true
	}

	extraSet := make(map[string]bool)
	for _, row := range rows {
		for key := range row {
			if !known[key] {
				extraSet[key] = true
			}
		}
	}
	extras := make([]string, 0, len(extraSet))
	for key := range extraSet {
		extras = append(extras, key)
	}
	sort.Strings(extras)

	header := append(append([]string{}, columns...), extras...)

	var buf strings.Builder
	writer := csv.NewWriter(&buf)
	if err := writer.Write(header); err != nil {
		return "", nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			record[i] = row[col]
		}
		if err := writer.Write(record); err != nil {
			return "", nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	return buf.String(), extras, nil
}
