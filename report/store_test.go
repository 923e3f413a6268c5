package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

var testColumns = Columns{Date: 6, Content: 7, Hours: 8, StartRow: 3}

// buildWorkbook writes a fixture report with date cells in column F starting
// at row 3, one row per entry.
func buildWorkbook(t *testing.T, path string, dates []string, hours []string) {
	t.Helper()

	file := excelize.NewFile()
	defer file.Close()

	sheet := file.GetSheetName(0)
	for i, date := range dates {
		row := testColumns.StartRow + i
		dateCell, _ := excelize.CoordinatesToCellName(testColumns.Date, row)
		if err := file.SetCellValue(sheet, dateCell, date); err != nil {
			t.Fatalf("set date cell: %v", err)
		}
		if i < len(hours) && hours[i] != "" {
			hoursCell, _ := excelize.CoordinatesToCellName(testColumns.Hours, row)
			if err := file.SetCellValue(sheet, hoursCell, hours[i]); err != nil {
				t.Fatalf("set hours cell: %v", err)
			}
		}
	}
	if err := file.SaveAs(path); err != nil {
		t.Fatalf("save fixture workbook: %v", err)
	}
}

func cellValue(t *testing.T, path string, column, row int) string {
	t.Helper()

	file, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer file.Close()

	cell, _ := excelize.CoordinatesToCellName(column, row)
	value, err := file.GetCellValue(file.GetSheetName(0), cell)
	if err != nil {
		t.Fatalf("read cell %s: %v", cell, err)
	}
	return value
}

func TestFormatDate(t *testing.T) {
	t.Parallel()

	date := time.Date(2025, 3, 5, 0, 0, 0, 0, time.Local)
	if got := FormatDate(date); got != "2025/3/5" {
		t.Fatalf("expected 2025/3/5, got %q", got)
	}

	date = time.Date(2025, 12, 31, 0, 0, 0, 0, time.Local)
	if got := FormatDate(date); got != "2025/12/31" {
		t.Fatalf("expected 2025/12/31, got %q", got)
	}
}

func TestWriteEntry_FillsContentAndEmptyHours(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "monthly.xlsx")
	buildWorkbook(t, path, []string{"2025/3/4", "2025/3/5"}, nil)

	store := NewStore(testColumns, nil)
	date := time.Date(2025, 3, 5, 0, 0, 0, 0, time.Local)
	if err := store.WriteEntry(path, date, "1. fix login bug", 8); err != nil {
		t.Fatalf("write entry: %v", err)
	}

	if got := cellValue(t, path, testColumns.Content, 4); got != "1. fix login bug" {
		t.Fatalf("unexpected content: %q", got)
	}
	if got := cellValue(t, path, testColumns.Hours, 4); got != "8" {
		t.Fatalf("unexpected hours: %q", got)
	}
}

func TestWriteEntry_PreservesExistingHours(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "monthly.xlsx")
	buildWorkbook(t, path, []string{"2025/3/5"}, []string{"6"})

	store := NewStore(testColumns, nil)
	date := time.Date(2025, 3, 5, 0, 0, 0, 0, time.Local)
	if err := store.WriteEntry(path, date, "summary text", 8); err != nil {
		t.Fatalf("write entry: %v", err)
	}

	if got := cellValue(t, path, testColumns.Hours, 3); got != "6" {
		t.Fatalf("expected hours preserved as 6, got %q", got)
	}
}

func TestWriteEntry_IsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "monthly.xlsx")
	buildWorkbook(t, path, []string{"2025/3/5"}, nil)

	store := NewStore(testColumns, nil)
	date := time.Date(2025, 3, 5, 0, 0, 0, 0, time.Local)
	for i := 0; i < 2; i++ {
		if err := store.WriteEntry(path, date, "same summary", 8); err != nil {
			t.Fatalf("write entry round %d: %v", i+1, err)
		}
	}

	if got := cellValue(t, path, testColumns.Content, 3); got != "same summary" {
		t.Fatalf("unexpected content: %q", got)
	}
	if got := cellValue(t, path, testColumns.Hours, 3); got != "8" {
		t.Fatalf("unexpected hours: %q", got)
	}
}

func TestWriteEntry_NoMatchingRowLeavesFileUnchanged(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "monthly.xlsx")
	buildWorkbook(t, path, []string{"2025/3/5"}, nil)

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	store := NewStore(testColumns, nil)
	date := time.Date(2025, 3, 6, 0, 0, 0, 0, time.Local)
	writeErr := store.WriteEntry(path, date, "summary", 8)
	if !errors.Is(writeErr, ErrRowNotFound) {
		t.Fatalf("expected ErrRowNotFound, got %v", writeErr)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture after write: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("document bytes changed for unmatched date")
	}
}

func TestWriteEntry_FirstMatchingRowWins(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "monthly.xlsx")
	buildWorkbook(t, path, []string{"2025/3/5", "2025/3/5"}, nil)

	store := NewStore(testColumns, nil)
	date := time.Date(2025, 3, 5, 0, 0, 0, 0, time.Local)
	if err := store.WriteEntry(path, date, "first row only", 8); err != nil {
		t.Fatalf("write entry: %v", err)
	}

	if got := cellValue(t, path, testColumns.Content, 3); got != "first row only" {
		t.Fatalf("first row not written: %q", got)
	}
	if got := cellValue(t, path, testColumns.Content, 4); got != "" {
		t.Fatalf("duplicate row was written: %q", got)
	}
}

func TestWriteEntry_ClassifiesMissingAndBadFiles(t *testing.T) {
	t.Parallel()

	store := NewStore(testColumns, nil)
	date := time.Now()

	err := store.WriteEntry(filepath.Join(t.TempDir(), "absent.xlsx"), date, "s", 8)
	if !errors.Is(err, ErrFileMissing) {
		t.Fatalf("expected ErrFileMissing, got %v", err)
	}

	err = store.WriteEntry("report.txt", date, "s", 8)
	if !errors.Is(err, ErrBadExtension) {
		t.Fatalf("expected ErrBadExtension, got %v", err)
	}

	corrupt := filepath.Join(t.TempDir(), "corrupt.xlsx")
	if err := os.WriteFile(corrupt, []byte("not a workbook"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	err = store.WriteEntry(corrupt, date, "s", 8)
	if !errors.Is(err, ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat, got %v", err)
	}
}

func TestReadEntryForDate_MatchesFlexibleDateFormats(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "monthly.xlsx")
	buildWorkbook(t, path, []string{"2025-03-05"}, nil)

	file, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	contentCell, _ := excelize.CoordinatesToCellName(testColumns.Content, 3)
	if err := file.SetCellValue(file.GetSheetName(0), contentCell, "did things"); err != nil {
		t.Fatalf("set content: %v", err)
	}
	if err := file.Save(); err != nil {
		t.Fatalf("save fixture: %v", err)
	}
	file.Close()

	store := NewStore(testColumns, nil)
	date := time.Date(2025, 3, 5, 0, 0, 0, 0, time.Local)
	content, found, err := store.ReadEntryForDate(path, date)
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if !found {
		t.Fatalf("expected entry for dash-formatted date cell")
	}
	if content != "did things" {
		t.Fatalf("unexpected content: %q", content)
	}

	_, found, err = store.ReadEntryForDate(path, date.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("read missing entry: %v", err)
	}
	if found {
		t.Fatalf("expected no entry for next day")
	}
}
