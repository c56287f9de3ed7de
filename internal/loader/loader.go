// Package loader читает выгрузки старой системы: JSON-массивы объектов и листы xlsx.
// На выходе сырые строки, нормализация делается в workflow.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrMissingColumn: в заголовке листа нет обязательной колонки.
var ErrMissingColumn = errors.New("missing column")

// Row: одна строка источника: ключ колонки -> значение. Пустые ячейки отсутствуют.
type Row = map[string]any

// Table: лист с заголовком. Columns в порядке листа, без пустых имен.
type Table struct {
	Columns []string
	Rows    []Row
}

// Require проверяет наличие колонок в заголовке.
func (t Table) Require(cols ...string) error {
	for _, c := range cols {
		if !slices.Contains(t.Columns, c) {
			return fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	return nil
}

// LoadJSON читает массив объектов или один объект. Числа остаются json.Number.
func LoadJSON(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []Row{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if data[0] == '{' {
		var one Row
		if err := dec.Decode(&one); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return []Row{one}, nil
	}

	var rows []Row
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	// null внутри массива не запись
	return slices.DeleteFunc(rows, func(r Row) bool { return r == nil }), nil
}

// LoadSheet читает первый лист: первая строка заголовок, далее данные.
// Полностью пустые строки пропускаются.
func LoadSheet(path string) (Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, fmt.Errorf("%s: workbook has no sheets", path)
	}

	raw, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return Table{Columns: []string{}, Rows: []Row{}}, nil
	}

	header := make([]string, len(raw[0]))
	columns := make([]string, 0, len(raw[0]))
	for i, h := range raw[0] {
		h = strings.TrimSpace(h)
		if h == "" || slices.Contains(columns, h) {
			continue
		}
		header[i] = h
		columns = append(columns, h)
	}

	rows := make([]Row, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		row := Row{}
		for i, cell := range cells {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if strings.TrimSpace(cell) == "" {
				continue
			}
			row[header[i]] = cell
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}

	return Table{Columns: columns, Rows: rows}, nil
}
