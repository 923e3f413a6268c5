package report

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/zenvor/report-writer/internal/timeutil"
)

// Failure classification for report document operations. The orchestrator
// reports these as actionable diagnostics.
var (
	ErrFileMissing  = errors.New("report document does not exist")
	ErrBadExtension = errors.New("report document must be an .xlsx file")
	ErrFileLocked   = errors.New("report document is locked or not accessible")
	ErrBadFormat    = errors.New("report document is corrupt or not a workbook")
	ErrRowNotFound  = errors.New("no row matches the target date")
)

// Columns is the fixed layout of the report grid: 1-based column indices and
// the first data row.
type Columns struct {
	Date     int
	Content  int
	Hours    int
	StartRow int
}

// Store locates date-keyed rows in a report workbook and projects entries
// into them. It never inserts or deletes rows.
type Store struct {
	columns Columns
	logger  *slog.Logger
}

func NewStore(columns Columns, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{columns: columns, logger: logger}
}

// FormatDate renders a date the way report rows carry it: slash separated,
// no zero padding on month or day.
func FormatDate(date time.Time) string {
	return fmt.Sprintf("%d/%d/%d", date.Year(), int(date.Month()), date.Day())
}

// Validate checks that the document exists, has the expected extension and
// is readable, returning a classified error otherwise.
func Validate(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return fmt.Errorf("%w: %s", ErrBadExtension, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileMissing, path)
		}
		return fmt.Errorf("%w: %v", ErrFileLocked, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrBadExtension, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileLocked, err)
	}
	return file.Close()
}

// WriteEntry writes summaryText into the content column of the row whose
// date cell exactly matches the formatted date, and workHours into the hours
// column only when that cell is empty. The workbook is saved only after a
// row matched; an unmatched date leaves the file untouched and returns
// ErrRowNotFound.
func (s *Store) WriteEntry(path string, date time.Time, summaryText string, workHours int) error {
	if err := Validate(path); err != nil {
		return err
	}

	file, err := openWorkbook(path)
	if err != nil {
		return err
	}
	defer file.Close()

	sheet := activeSheet(file)
	target := FormatDate(date)

	row, err := s.findRow(file, sheet, func(cellValue string) bool {
		return strings.TrimSpace(cellValue) == target
	})
	if err != nil {
		return err
	}
	if row == 0 {
		s.logger.Warn("no report row for date", "document", path, "date", target)
		return fmt.Errorf("%w: %s", ErrRowNotFound, target)
	}

	contentCell, err := excelize.CoordinatesToCellName(s.columns.Content, row)
	if err != nil {
		return fmt.Errorf("content cell for row %d: %w", row, err)
	}
	if err := file.SetCellValue(sheet, contentCell, summaryText); err != nil {
		return fmt.Errorf("set content cell %s: %w", contentCell, err)
	}
	if err := s.applyWrapStyle(file, sheet, contentCell); err != nil {
		return err
	}

	hoursCell, err := excelize.CoordinatesToCellName(s.columns.Hours, row)
	if err != nil {
		return fmt.Errorf("hours cell for row %d: %w", row, err)
	}
	existingHours, err := file.GetCellValue(sheet, hoursCell)
	if err != nil {
		return fmt.Errorf("read hours cell %s: %w", hoursCell, err)
	}
	// Hours already filled in by hand stay untouched; content is always
	// overwritten.
	if strings.TrimSpace(existingHours) == "" {
		if err := file.SetCellValue(sheet, hoursCell, workHours); err != nil {
			return fmt.Errorf("set hours cell %s: %w", hoursCell, err)
		}
	}

	if err := file.Save(); err != nil {
		return fmt.Errorf("%w: save failed: %v", ErrFileLocked, err)
	}

	s.logger.Info("report row updated", "document", path, "date", target, "row", row)
	return nil
}

// ReadEntryForDate returns the content cell of the row matching date. Unlike
// the write path it accepts multiple date representations and compares
// calendar dates, not strings. The second return value is false when no row
// matches or the matched content cell is empty.
func (s *Store) ReadEntryForDate(path string, date time.Time) (string, bool, error) {
	if err := Validate(path); err != nil {
		return "", false, err
	}

	file, err := openWorkbook(path)
	if err != nil {
		return "", false, err
	}
	defer file.Close()

	sheet := activeSheet(file)

	row, err := s.findRow(file, sheet, func(cellValue string) bool {
		return timeutil.DatesMatch(cellValue, date)
	})
	if err != nil {
		return "", false, err
	}
	if row == 0 {
		return "", false, nil
	}

	contentCell, err := excelize.CoordinatesToCellName(s.columns.Content, row)
	if err != nil {
		return "", false, fmt.Errorf("content cell for row %d: %w", row, err)
	}
	content, err := file.GetCellValue(sheet, contentCell)
	if err != nil {
		return "", false, fmt.Errorf("read content cell %s: %w", contentCell, err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", false, nil
	}
	return content, true, nil
}

// findRow scans the date column from the configured start row to the last
// populated row and returns the first row whose cell matches, or 0.
func (s *Store) findRow(file *excelize.File, sheet string, match func(string) bool) (int, error) {
	rows, err := file.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("%w: read rows: %v", ErrBadFormat, err)
	}

	for row := s.columns.StartRow; row <= len(rows); row++ {
		cell, err := excelize.CoordinatesToCellName(s.columns.Date, row)
		if err != nil {
			return 0, fmt.Errorf("date cell for row %d: %w", row, err)
		}
		value, err := file.GetCellValue(sheet, cell)
		if err != nil {
			return 0, fmt.Errorf("read date cell %s: %w", cell, err)
		}
		if match(value) {
			return row, nil
		}
	}
	return 0, nil
}

func (s *Store) applyWrapStyle(file *excelize.File, sheet, cell string) error {
	styleID, err := file.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("create wrap style: %w", err)
	}
	if err := file.SetCellStyle(sheet, cell, cell, styleID); err != nil {
		return fmt.Errorf("apply wrap style to %s: %w", cell, err)
	}
	return nil
}

func openWorkbook(path string) (*excelize.File, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrFileLocked, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	return file, nil
}

func activeSheet(file *excelize.File) string {
	return file.GetSheetName(file.GetActiveSheetIndex())
}
