package rowstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
)

// Workbook persists tables as sheets of a single .xlsx file. Row 1 of each
// sheet is the header; data index i lives on sheet row i+2. The file is
// saved after every write.
type Workbook struct {
	mu   sync.Mutex
	path string
	file *excelize.File
}

func OpenWorkbook(path string) (*Workbook, error) {
	var (
		f   *excelize.File
		err error
	)
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		f = excelize.NewFile()
	} else {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open workbook %s: %w", path, err)
		}
	}
	return &Workbook{path: path, file: f}, nil
}

func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *Workbook) hasSheet(table string) bool {
	idx, err := w.file.GetSheetIndex(table)
	return err == nil && idx >= 0
}

func (w *Workbook) EnsureTable(_ context.Context, table string, header []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasSheet(table) {
		if _, err := w.file.NewSheet(table); err != nil {
			return fmt.Errorf("create sheet %s: %w", table, err)
		}
	}
	rows, err := w.file.GetRows(table)
	if err != nil {
		return err
	}
	var current []string
	if len(rows) > 0 {
		current = rows[0]
	}
	changed := false
	for i := len(current); i < len(header); i++ {
		if err := w.setCell(table, 1, i, header[i]); err != nil {
			return err
		}
		changed = true
	}
	if !changed {
		return nil
	}
	return w.file.SaveAs(w.path)
}

func (w *Workbook) Header(_ context.Context, table string) (Row, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, err := w.sheetRows(table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return Row{}, nil
	}
	return Row(rows[0]), nil
}

func (w *Workbook) Rows(_ context.Context, table string) ([]Row, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, err := w.sheetRows(table)
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return []Row{}, nil
	}
	out := make([]Row, 0, len(rows)-1)
	for _, r := range rows[1:] {
		out = append(out, Row(r))
	}
	return out, nil
}

func (w *Workbook) ReadRow(_ context.Context, table string, idx int) (Row, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, err := w.sheetRows(table)
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx+1 >= len(rows) {
		return nil, fmt.Errorf("%w: %s[%d]", ErrRowMissing, table, idx)
	}
	return Row(rows[idx+1]), nil
}

func (w *Workbook) WriteCells(_ context.Context, table string, idx int, cells map[int]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, err := w.sheetRows(table)
	if err != nil {
		return err
	}
	if idx < 0 || idx+1 >= len(rows) {
		return fmt.Errorf("%w: %s[%d]", ErrRowMissing, table, idx)
	}
	for col, v := range cells {
		if err := w.setCell(table, idx+2, col, v); err != nil {
			return err
		}
	}
	return w.file.SaveAs(w.path)
}

func (w *Workbook) AppendRow(_ context.Context, table string, row Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, err := w.sheetRows(table)
	if err != nil {
		return err
	}
	next := len(rows) + 1
	if next < 2 {
		next = 2
	}
	for col, v := range row {
		if err := w.setCell(table, next, col, v); err != nil {
			return err
		}
	}
	return w.file.SaveAs(w.path)
}

func (w *Workbook) sheetRows(table string) ([][]string, error) {
	if !w.hasSheet(table) {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, table)
	}
	return w.file.GetRows(table)
}

func (w *Workbook) setCell(table string, sheetRow, col int, v string) error {
	name, err := excelize.CoordinatesToCellName(col+1, sheetRow)
	if err != nil {
		return err
	}
	return w.file.SetCellStr(table, name, v)
}
