package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ErrSheetNotFound distinguishes a missing partition from transient I/O
// failure. Callers map it to their own not-found semantics.
var ErrSheetNotFound = errors.New("sheet not found")

// SheetRepository is the record store: row-oriented read and single-cell
// write access to the ceremony workbook. It never retries; retry policy
// belongs to the writer above it.
//
// excelize files are not safe for concurrent use, so every operation holds
// the repository mutex.
type SheetRepository struct {
	mu     sync.Mutex
	file   *excelize.File
	path   string
	logger *zap.Logger
}

// NewSheetRepository opens the workbook at path.
func NewSheetRepository(path string, logger *zap.Logger) (*SheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return &SheetRepository{file: f, path: path, logger: logger}, nil
}

// Read returns the ordered rows of the named sheet, header row included.
// Cells are strings; rows beyond the data range are simply absent.
func (r *SheetRepository) Read(ctx context.Context, sheet string) ([][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureSheet(sheet); err != nil {
		return nil, err
	}

	rows, err := r.file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// WriteCell updates a single cell, identified by 1-based row and column, and
// persists the workbook.
func (r *SheetRepository) WriteCell(ctx context.Context, sheet string, row, col int, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureSheet(sheet); err != nil {
		return err
	}

	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell coordinates (%d,%d): %w", col, row, err)
	}
	if err := r.file.SetCellStr(sheet, cell, value); err != nil {
		return fmt.Errorf("set cell %s!%s: %w", sheet, cell, err)
	}
	if err := r.file.Save(); err != nil {
		return fmt.Errorf("save workbook %s: %w", r.path, err)
	}
	return nil
}

// ListSheets returns all sheet names in workbook order.
func (r *SheetRepository) ListSheets(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.GetSheetList(), nil
}

// RenameSheet relabels a sheet; used to toggle the ceremony state suffix.
func (r *SheetRepository) RenameSheet(ctx context.Context, oldName, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureSheet(oldName); err != nil {
		return err
	}
	if err := r.file.SetSheetName(oldName, newName); err != nil {
		return fmt.Errorf("rename sheet %s to %s: %w", oldName, newName, err)
	}
	if err := r.file.Save(); err != nil {
		return fmt.Errorf("save workbook %s: %w", r.path, err)
	}
	r.logger.Info("sheet renamed", zap.String("from", oldName), zap.String("to", newName))
	return nil
}

// Close releases the workbook handle.
func (r *SheetRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

func (r *SheetRepository) ensureSheet(sheet string) error {
	idx, err := r.file.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("lookup sheet %s: %w", sheet, err)
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	return nil
}
