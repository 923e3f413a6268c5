package backup

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	dirName         = "backups"
	timestampLayout = "20060102_150405"
)

// Manager snapshots the report document before mutations and prunes old
// snapshots past the retention count.
type Manager struct {
	enabled    bool
	maxBackups int
	logger     *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

func NewManager(enabled bool, maxBackups int, logger *slog.Logger) *Manager {
	if maxBackups < 1 {
		maxBackups = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		enabled:    enabled,
		maxBackups: maxBackups,
		logger:     logger,
		now:        time.Now,
	}
}

// Snapshot copies documentPath into the backups directory next to it and
// prunes snapshots beyond the retention count. When backups are disabled it
// is a successful no-op. The returned path is empty when nothing was copied.
func (m *Manager) Snapshot(documentPath string) (string, error) {
	if !m.enabled {
		m.logger.Debug("backup disabled, skipping snapshot")
		return "", nil
	}

	backupDir := filepath.Join(filepath.Dir(documentPath), dirName)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir %s: %w", backupDir, err)
	}

	stem := strings.TrimSuffix(filepath.Base(documentPath), filepath.Ext(documentPath))
	name := fmt.Sprintf("%s_%s%s", stem, m.now().Format(timestampLayout), filepath.Ext(documentPath))
	backupPath := filepath.Join(backupDir, name)

	if err := copyFile(documentPath, backupPath); err != nil {
		return "", fmt.Errorf("copy %s to %s: %w", documentPath, backupPath, err)
	}
	m.logger.Info("backup created", "path", backupPath)

	if err := m.Prune(backupDir, stem, filepath.Ext(documentPath)); err != nil {
		// Pruning problems never fail the snapshot that just succeeded.
		m.logger.Warn("backup pruning failed", "dir", backupDir, "error", err)
	}

	return backupPath, nil
}

// Prune deletes every snapshot of the given document beyond the retention
// count, keeping the most recently modified ones.
func (m *Manager) Prune(backupDir, stem, ext string) error {
	matches, err := filepath.Glob(filepath.Join(backupDir, stem+"_*"+ext))
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}

	type snapshot struct {
		path    string
		modTime time.Time
	}
	snapshots := make([]snapshot, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		snapshots = append(snapshots, snapshot{path: match, modTime: info.ModTime()})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].modTime.After(snapshots[j].modTime)
	})

	for _, old := range snapshots[min(m.maxBackups, len(snapshots)):] {
		if err := os.Remove(old.path); err != nil {
			return fmt.Errorf("remove old backup %s: %w", old.path, err)
		}
		m.logger.Debug("removed old backup", "path", old.path)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
