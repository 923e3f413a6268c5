package weekly

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/zenvor/report-writer/internal/timeutil"
	"github.com/zenvor/report-writer/report"
)

const (
	// ContentColumn is column B of the weekly grid, where the numbered
	// work items live.
	ContentColumn = 2

	// StartRow is the row of item 1; Monday through Friday occupy rows
	// StartRow through StartRow+4.
	StartRow = 3

	// WeekToken is replaced with the ISO week number when a weekly
	// document is produced from a template.
	WeekToken = "{week}"

	// Title cells are searched for WeekToken within this many leading rows.
	titleRows = 2
)

var (
	ErrNoEntries       = errors.New("no daily entries found for the week")
	ErrTemplateMissing = errors.New("weekly template does not exist")
)

// DayEntry is one weekday's projection from the monthly document.
type DayEntry struct {
	Date    time.Time
	Content string
	Found   bool
}

// Writer projects the week's daily entries from the monthly report into a
// weekly document. It fills rows Monday through Friday in order and leaves
// rows for missing days untouched.
type Writer struct {
	monthly *report.Store
	logger  *slog.Logger
}

func NewWriter(monthly *report.Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{monthly: monthly, logger: logger}
}

// ReadWeek collects the Monday through Friday entries of the week containing
// weekStart from the monthly document. The result always has five elements;
// days without an entry carry Found=false.
func (w *Writer) ReadWeek(monthlyPath string, weekStart time.Time) ([]DayEntry, error) {
	monday := timeutil.WeekStart(weekStart)
	entries := make([]DayEntry, 0, 5)

	for _, date := range timeutil.WeekDates(monday) {
		content, found, err := w.monthly.ReadEntryForDate(monthlyPath, date)
		if err != nil {
			return nil, fmt.Errorf("read monthly entry for %s: %w", date.Format("2006-01-02"), err)
		}
		if !found {
			w.logger.Debug("no daily entry for weekday", "date", date.Format("2006-01-02"))
		}
		entries = append(entries, DayEntry{Date: date, Content: content, Found: found})
	}
	return entries, nil
}

// Generate fills the weekly document at weeklyPath from the monthly document.
// It fails when the week has no entries at all; single missing days are
// skipped so hand-written rows survive.
func (w *Writer) Generate(monthlyPath, weeklyPath string, weekStart time.Time) error {
	monday := timeutil.WeekStart(weekStart)
	w.logger.Info("generating weekly report",
		"monthly", monthlyPath, "weekly", weeklyPath,
		"week_start", monday.Format("2006-01-02"))

	entries, err := w.ReadWeek(monthlyPath, monday)
	if err != nil {
		return err
	}

	found := 0
	for _, entry := range entries {
		if entry.Found {
			found++
		}
	}
	if found == 0 {
		return fmt.Errorf("%w: week of %s", ErrNoEntries, monday.Format("2006-01-02"))
	}
	w.logger.Info("daily entries collected", "found", found, "days", len(entries))

	if err := report.Validate(weeklyPath); err != nil {
		return err
	}
	return w.writeEntries(weeklyPath, entries)
}

// GenerateFromTemplate copies templatePath to weeklyPath, substitutes the
// week-number token in the title area, then fills the copy like Generate.
// An existing destination is not overwritten.
func (w *Writer) GenerateFromTemplate(monthlyPath, templatePath, weeklyPath string, weekStart time.Time) error {
	monday := timeutil.WeekStart(weekStart)

	if _, err := os.Stat(weeklyPath); err == nil {
		w.logger.Info("weekly document already exists, filling in place", "weekly", weeklyPath)
		return w.Generate(monthlyPath, weeklyPath, monday)
	}

	if err := copyTemplate(templatePath, weeklyPath); err != nil {
		return err
	}
	if err := w.stampWeekNumber(weeklyPath, timeutil.WeekNumber(monday)); err != nil {
		return err
	}
	return w.Generate(monthlyPath, weeklyPath, monday)
}

func (w *Writer) writeEntries(weeklyPath string, entries []DayEntry) error {
	file, err := excelize.OpenFile(weeklyPath)
	if err != nil {
		return fmt.Errorf("open weekly document: %w", err)
	}
	defer file.Close()

	sheet := file.GetSheetName(file.GetActiveSheetIndex())
	written := 0

	for i, entry := range entries {
		if !entry.Found {
			continue
		}

		cell, err := excelize.CoordinatesToCellName(ContentColumn, StartRow+i)
		if err != nil {
			return fmt.Errorf("weekly cell for row %d: %w", StartRow+i, err)
		}
		if err := file.SetCellValue(sheet, cell, entry.Content); err != nil {
			return fmt.Errorf("set weekly cell %s: %w", cell, err)
		}
		styleID, err := file.NewStyle(&excelize.Style{
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		})
		if err != nil {
			return fmt.Errorf("create wrap style: %w", err)
		}
		if err := file.SetCellStyle(sheet, cell, cell, styleID); err != nil {
			return fmt.Errorf("apply wrap style to %s: %w", cell, err)
		}
		written++
	}

	if err := file.Save(); err != nil {
		return fmt.Errorf("save weekly document: %w", err)
	}
	w.logger.Info("weekly report written", "weekly", weeklyPath, "rows", written)
	return nil
}

// stampWeekNumber replaces the week token in the title area of a freshly
// copied template.
func (w *Writer) stampWeekNumber(weeklyPath string, week int) error {
	file, err := excelize.OpenFile(weeklyPath)
	if err != nil {
		return fmt.Errorf("open weekly document: %w", err)
	}
	defer file.Close()

	sheet := file.GetSheetName(file.GetActiveSheetIndex())
	rows, err := file.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read weekly rows: %w", err)
	}

	stamped := false
	for rowIdx, row := range rows {
		if rowIdx >= titleRows {
			break
		}
		for colIdx, value := range row {
			if !strings.Contains(value, WeekToken) {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return fmt.Errorf("title cell: %w", err)
			}
			replaced := strings.ReplaceAll(value, WeekToken, fmt.Sprintf("%d", week))
			if err := file.SetCellValue(sheet, cell, replaced); err != nil {
				return fmt.Errorf("stamp week number into %s: %w", cell, err)
			}
			stamped = true
		}
	}

	if !stamped {
		w.logger.Warn("template has no week token in title area", "token", WeekToken)
		return nil
	}
	if err := file.Save(); err != nil {
		return fmt.Errorf("save weekly document: %w", err)
	}
	w.logger.Info("week number stamped", "weekly", weeklyPath, "week", week)
	return nil
}

func copyTemplate(templatePath, weeklyPath string) error {
	src, err := os.Open(templatePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrTemplateMissing, templatePath)
		}
		return fmt.Errorf("open template: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(weeklyPath)
	if err != nil {
		return fmt.Errorf("create weekly document: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy template: %w", err)
	}
	return dst.Close()
}
