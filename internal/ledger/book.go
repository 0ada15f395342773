package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sells-group/xray-ledger/internal/models"
)

// ErrTabNotFound signals that a required country worksheet tab is missing
// from the segment's workbook. The affected country is skipped; the run
// continues.
var ErrTabNotFound = errors.New("ledger: worksheet tab not found")

// Book is one seller segment's spreadsheet workbook.
type Book struct {
	file           *excelize.File
	path           string
	logger         *slog.Logger
	highlightStyle int
}

// OpenBook opens an existing workbook file for a segment.
func OpenBook(path string, logger *slog.Logger) (*Book, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &Book{
		file:   f,
		path:   path,
		logger: logger.With("component", "ledger", "workbook", path),
	}, nil
}

// Tab resolves a country worksheet within the workbook. Returns
// ErrTabNotFound when the tab does not exist.
func (b *Book) Tab(country string) (*Tab, error) {
	idx, err := b.file.GetSheetIndex(country)
	if err != nil {
		return nil, fmt.Errorf("failed to look up tab %q: %w", country, err)
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrTabNotFound, country)
	}

	cols, err := b.file.GetCols(country)
	if err != nil {
		return nil, fmt.Errorf("failed to read tab %q: %w", country, err)
	}
	columnCount := len(cols)
	if columnCount < RowWidth {
		columnCount = RowWidth
	}

	return &Tab{book: b, name: country, columnCount: columnCount}, nil
}

// Save persists all pending cell writes back to the workbook file. Failures
// propagate uncaught; the caller owns retry policy.
func (b *Book) Save() error {
	if err := b.file.Save(); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", b.path, err)
	}
	return nil
}

// Close releases the underlying file handle.
func (b *Book) Close() error {
	return b.file.Close()
}

// highlight returns the style id for machine-written cells (black
// background, white font), created once per workbook.
func (b *Book) highlight() (int, error) {
	if b.highlightStyle != 0 {
		return b.highlightStyle, nil
	}
	style, err := b.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"000000"}, Pattern: 1},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create highlight style: %w", err)
	}
	b.highlightStyle = style
	return style, nil
}

// Tab is one country worksheet inside a segment workbook.
type Tab struct {
	book        *Book
	name        string
	columnCount int
}

// Name returns the worksheet title (the country code).
func (t *Tab) Name() string { return t.name }

// FirstEmptyRow scans column A from row 1 downward and returns the 1-based
// position of the first row past the last filled one.
func (t *Tab) FirstEmptyRow() (int, error) {
	colA, err := t.columnA()
	if err != nil {
		return 0, err
	}
	used := 0
	for i, v := range colA {
		if strings.TrimSpace(v) != "" {
			used = i + 1
		}
	}
	return used + 1, nil
}

// DuplicateLastRow inserts a new blank row directly below the last filled
// row and copies values, formulas and formatting from that row into it,
// returning the new row's 1-based position. On an empty sheet it inserts a
// blank row at the top and returns 1.
func (t *Tab) DuplicateLastRow() (int, error) {
	firstEmpty, err := t.FirstEmptyRow()
	if err != nil {
		return 0, err
	}
	lastFilled := firstEmpty - 1

	if lastFilled < 1 {
		if err := t.book.file.InsertRows(t.name, 1, 1); err != nil {
			return 0, fmt.Errorf("failed to insert row into empty tab %q: %w", t.name, err)
		}
		return 1, nil
	}

	// DuplicateRowTo shifts rows below down and carries the source row's
	// values, formulas and cell formats into the copy.
	if err := t.book.file.DuplicateRowTo(t.name, lastFilled, lastFilled+1); err != nil {
		return 0, fmt.Errorf("failed to duplicate row %d in tab %q: %w", lastFilled, t.name, err)
	}
	return lastFilled + 1, nil
}

// WriteCells overwrites only the supplied non-empty cells of a row.
// Columns absent from the map, and empty string values, are skipped so
// pre-existing formulas and values survive. Values beginning with "=" are
// written as formulas.
func (t *Tab) WriteCells(row int, cells map[int]string) error {
	for col := 0; col < t.columnCount; col++ {
		val, ok := cells[col]
		if !ok || val == "" {
			continue
		}

		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("invalid cell coordinates (%d,%d): %w", col, row, err)
		}

		if strings.HasPrefix(val, "=") {
			err = t.book.file.SetCellFormula(t.name, cell, strings.TrimPrefix(val, "="))
		} else if num, convErr := strconv.ParseFloat(val, 64); convErr == nil {
			err = t.book.file.SetCellValue(t.name, cell, num)
		} else {
			err = t.book.file.SetCellValue(t.name, cell, val)
		}
		if err != nil {
			return fmt.Errorf("failed to write %s!%s: %w", t.name, cell, err)
		}
	}
	return nil
}

// ClearCells blanks the given columns of a row. Unlike WriteCells this is
// an explicit erase, used where a duplicated template value must not
// survive.
func (t *Tab) ClearCells(row int, cols ...int) error {
	for _, col := range cols {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("invalid cell coordinates (%d,%d): %w", col, row, err)
		}
		if err := t.book.file.SetCellValue(t.name, cell, ""); err != nil {
			return fmt.Errorf("failed to clear %s!%s: %w", t.name, cell, err)
		}
	}
	return nil
}

// NextSequenceNumber scans column A bottom-up for the last integer "No."
// value and returns it incremented, starting at 1 for a blank column.
func (t *Tab) NextSequenceNumber() (int, error) {
	colA, err := t.columnA()
	if err != nil {
		return 0, err
	}
	for i := len(colA) - 1; i >= 0; i-- {
		n, err := strconv.Atoi(strings.TrimSpace(colA[i]))
		if err == nil {
			return n + 1, nil
		}
	}
	return 1, nil
}

// Highlight applies the machine-written marker (black background, white
// font) to the given columns of a row.
func (t *Tab) Highlight(row int, cols []int) error {
	style, err := t.book.highlight()
	if err != nil {
		return err
	}
	for _, col := range cols {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("invalid cell coordinates (%d,%d): %w", col, row, err)
		}
		if err := t.book.file.SetCellStyle(t.name, cell, cell, style); err != nil {
			return fmt.Errorf("failed to style %s!%s: %w", t.name, cell, err)
		}
	}
	return nil
}

// ReadCell returns the rendered value at (row, col).
func (t *Tab) ReadCell(row, col int) (string, error) {
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return "", fmt.Errorf("invalid cell coordinates (%d,%d): %w", col, row, err)
	}
	v, err := t.book.file.GetCellValue(t.name, cell)
	if err != nil {
		return "", fmt.Errorf("failed to read %s!%s: %w", t.name, cell, err)
	}
	return v, nil
}

func (t *Tab) columnA() ([]string, error) {
	cols, err := t.book.file.GetCols(t.name)
	if err != nil {
		return nil, fmt.Errorf("failed to read column A of tab %q: %w", t.name, err)
	}
	if len(cols) == 0 {
		return nil, nil
	}
	return cols[0], nil
}

// Set holds the open workbook per seller segment for the lifetime of a run.
type Set struct {
	books map[models.SellerSegment]*Book
}

// OpenSet opens the configured workbook for each segment. A missing path is
// a configuration error raised before any extraction begins.
func OpenSet(paths map[models.SellerSegment]string, logger *slog.Logger) (*Set, error) {
	segments := []models.SellerSegment{
		models.SegmentNewSeller, models.SegmentExistingSeller, models.SegmentVendor,
	}

	for _, segment := range segments {
		if paths[segment] == "" {
			return nil, fmt.Errorf("missing ledger workbook path for segment %s", segment)
		}
	}

	books := make(map[models.SellerSegment]*Book, len(paths))
	for _, segment := range segments {
		book, err := OpenBook(paths[segment], logger)
		if err != nil {
			for _, b := range books {
				b.Close()
			}
			return nil, err
		}
		books[segment] = book
	}
	return &Set{books: books}, nil
}

// ForSegment returns the workbook a run's output is written to.
func (s *Set) ForSegment(segment models.SellerSegment) (*Book, error) {
	book, ok := s.books[segment]
	if !ok {
		return nil, fmt.Errorf("no ledger workbook configured for segment %s", segment)
	}
	return book, nil
}

// Close closes every segment workbook.
func (s *Set) Close() error {
	var errs []error
	for _, b := range s.books {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing ledgers: %v", errs)
	}
	return nil
}
