package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zenvor/report-writer/config"
	"github.com/zenvor/report-writer/storage"
	"github.com/zenvor/report-writer/updater"
)

// defaultWorkHours is written into the hours cell when it is still empty.
const defaultWorkHours = 8

// defaultDataDir is searched when no report file is given explicitly.
const defaultDataDir = "data"

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadAndValidate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func buildUpdater(cfg *config.Config, trigger string) (*updater.Updater, *storage.HistoryStore, error) {
	history, err := openHistory(cfg)
	if err != nil {
		// Run history is a convenience, not a requirement.
		slog.Warn("run history unavailable", "error", err)
		history = nil
	}

	var historyOpt updater.History
	if history != nil {
		historyOpt = history
	}
	u, err := updater.New(updater.Options{
		Config:  cfg,
		History: historyOpt,
		Trigger: trigger,
		Logger:  slog.Default(),
	})
	if err != nil {
		if history != nil {
			history.Close()
		}
		return nil, nil, err
	}
	return u, history, nil
}

func openHistory(cfg *config.Config) (*storage.HistoryStore, error) {
	path := strings.TrimSpace(cfg.History.Path)
	if path == "" {
		return nil, fmt.Errorf("history path not configured")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	return storage.OpenHistory(path)
}

// resolveDocument returns the explicit path when given, otherwise discovers
// the report workbook in the data directory.
func resolveDocument(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	return discoverDocument(defaultDataDir)
}

// discoverDocument picks the report workbook from a directory: the most
// recently modified .xlsx file, preferring names containing "report". Office
// lock files ("~$...") are ignored.
func discoverDocument(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.xlsx"))
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", dir, err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	candidates := make([]candidate, 0, len(matches))
	for _, match := range matches {
		name := filepath.Base(match)
		if strings.HasPrefix(name, "~$") {
			continue
		}
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{path: match, modTime: info.ModTime()})
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no .xlsx workbook found in %s (use -f to pass one explicitly)", dir)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(filepath.Base(c.path)), "report") {
			return c.path, nil
		}
	}
	return candidates[0].path, nil
}

// parseDateFlag parses a --date value, defaulting to today when empty.
func parseDateFlag(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Now(), nil
	}
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(value), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", value)
	}
	return day, nil
}

// scheduleLocation resolves the configured timezone, falling back to local.
func scheduleLocation(cfg *config.Config) *time.Location {
	name := strings.TrimSpace(cfg.Schedule.Timezone)
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("unknown schedule timezone, using local", "timezone", name, "error", err)
		return time.Local
	}
	return loc
}
