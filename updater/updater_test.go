package updater

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/zenvor/report-writer/config"
	"github.com/zenvor/report-writer/storage"
)

type fakeFetcher struct {
	projectID string
	branch    string

	commits    map[string][]string // keyed by day label 2006-01-02
	err        error
	reachable  bool
	fetchCalls int
}

func (f *fakeFetcher) FetchCommits(_ context.Context, day time.Time, _ string) ([]string, error) {
	f.fetchCalls++
	return f.commits[day.Format("2006-01-02")], f.err
}

func (f *fakeFetcher) FetchCommitsRange(_ context.Context, start, _ time.Time, _ string) ([]string, error) {
	f.fetchCalls++
	return f.commits[start.Format("2006-01-02")], f.err
}

func (f *fakeFetcher) ValidateConnection(context.Context) bool { return f.reachable }
func (f *fakeFetcher) ProjectID() string                       { return f.projectID }
func (f *fakeFetcher) DefaultBranch() string                   { return f.branch }

type fakeSummarizer struct {
	configured bool
	result     string

	gotByProject map[string][]string
	gotFlat      []string
}

func (f *fakeSummarizer) Summarize(_ context.Context, commitsByProject map[string][]string) string {
	f.gotByProject = commitsByProject
	return f.result
}

func (f *fakeSummarizer) SummarizeCommits(_ context.Context, commits []string) string {
	f.gotFlat = commits
	return f.result
}

func (f *fakeSummarizer) Configured() bool { return f.configured }

type writeCall struct {
	path    string
	date    time.Time
	summary string
	hours   int
}

type fakeStore struct {
	err   error
	calls []writeCall
}

func (f *fakeStore) WriteEntry(path string, date time.Time, summaryText string, workHours int) error {
	f.calls = append(f.calls, writeCall{path: path, date: date, summary: summaryText, hours: workHours})
	return f.err
}

type fakeBackup struct {
	err   error
	calls int
}

func (f *fakeBackup) Snapshot(string) (string, error) {
	f.calls++
	return "backups/report_20250305_180000.xlsx", f.err
}

type fakeHistory struct {
	records []storage.RunRecord
}

func (f *fakeHistory) RecordRun(record storage.RunRecord) (int64, error) {
	f.records = append(f.records, record)
	return int64(len(f.records)), nil
}

func testConfig(projects ...config.Project) *config.Config {
	return &config.Config{
		Columns: config.ColumnsConfig{Date: 6, Content: 7, Hours: 8, StartRow: 3},
		Retry:   config.RetryConfig{MaxRetries: 3, BackoffFactor: 2, TimeoutSeconds: 10},
		GitLab: config.GitLabConfig{
			URL:           "https://gitlab.example.com",
			Token:         "glpat-test",
			DefaultBranch: "dev",
			Projects:      projects,
		},
	}
}

func writeReportDocument(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "report.xlsx")
	file := excelize.NewFile()
	if err := file.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return path
}

func newTestUpdater(t *testing.T, opts Options) *Updater {
	t.Helper()

	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	u, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return u
}

func TestUpdateDailyReport_HappyPath(t *testing.T) {
	t.Parallel()

	date := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	fetchers := map[string]*fakeFetcher{
		"101": {projectID: "101", commits: map[string][]string{"2025-03-05": {"fix login", "add tests"}}},
		"202": {projectID: "202", commits: map[string][]string{"2025-03-05": {"bump deps"}}},
	}
	summarizer := &fakeSummarizer{result: "1. Fixed login\n2. Maintenance"}
	store := &fakeStore{}
	backup := &fakeBackup{}
	history := &fakeHistory{}

	u := newTestUpdater(t, Options{
		Config:     testConfig(config.Project{ID: "101"}, config.Project{ID: "202", Branch: "main"}),
		Store:      store,
		Backup:     backup,
		Summarizer: summarizer,
		History:    history,
		ClientFactory: func(project config.Project) (CommitFetcher, error) {
			return fetchers[project.ID], nil
		},
	})

	path := writeReportDocument(t)
	if ok := u.UpdateDailyReport(context.Background(), path, date, 8); !ok {
		t.Fatal("UpdateDailyReport() = false, want true")
	}

	if backup.calls != 1 {
		t.Errorf("backup calls = %d, want 1", backup.calls)
	}
	if len(store.calls) != 1 {
		t.Fatalf("store calls = %d, want 1", len(store.calls))
	}
	call := store.calls[0]
	if call.summary != summarizer.result || call.hours != 8 || !call.date.Equal(date) {
		t.Errorf("WriteEntry call = %+v", call)
	}
	if got := summarizer.gotByProject; len(got) != 2 || len(got["101"]) != 2 || len(got["202"]) != 1 {
		t.Errorf("summarizer input = %v", got)
	}

	if len(history.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(history.records))
	}
	record := history.records[0]
	if !record.Success || record.CommitCount != 3 || record.ReportDate != "2025-03-05" {
		t.Errorf("run record = %+v", record)
	}
	if record.Trigger != storage.TriggerManual {
		t.Errorf("trigger = %q, want %q", record.Trigger, storage.TriggerManual)
	}
}

func TestUpdateDailyReport_MissingDocumentAborts(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	backup := &fakeBackup{}
	u := newTestUpdater(t, Options{
		Config:     testConfig(config.Project{ID: "101"}),
		Store:      store,
		Backup:     backup,
		Summarizer: &fakeSummarizer{},
		ClientFactory: func(config.Project) (CommitFetcher, error) {
			return &fakeFetcher{}, nil
		},
	})

	missing := filepath.Join(t.TempDir(), "absent.xlsx")
	if ok := u.UpdateDailyReport(context.Background(), missing, time.Now(), 8); ok {
		t.Fatal("UpdateDailyReport() = true for missing document")
	}
	if backup.calls != 0 {
		t.Errorf("backup ran before validation, calls = %d", backup.calls)
	}
	if len(store.calls) != 0 {
		t.Errorf("store was written despite aborted run")
	}
}

func TestUpdateDailyReport_BackupFailureAborts(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{projectID: "101"}
	store := &fakeStore{}
	history := &fakeHistory{}
	u := newTestUpdater(t, Options{
		Config:     testConfig(config.Project{ID: "101"}),
		Store:      store,
		Backup:     &fakeBackup{err: errors.New("disk full")},
		Summarizer: &fakeSummarizer{},
		History:    history,
		ClientFactory: func(config.Project) (CommitFetcher, error) {
			return fetcher, nil
		},
	})

	path := writeReportDocument(t)
	if ok := u.UpdateDailyReport(context.Background(), path, time.Now(), 8); ok {
		t.Fatal("UpdateDailyReport() = true despite backup failure")
	}
	if fetcher.fetchCalls != 0 {
		t.Errorf("commits were fetched despite aborted run")
	}
	if len(store.calls) != 0 {
		t.Errorf("store was written despite aborted run")
	}
	if len(history.records) != 1 || history.records[0].Success {
		t.Errorf("history records = %+v, want one failed record", history.records)
	}
}

func TestUpdateDailyReport_FetchFailureDegradesToPartial(t *testing.T) {
	t.Parallel()

	date := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	fetchers := map[string]*fakeFetcher{
		"101": {projectID: "101", err: errors.New("gateway timeout")},
		"202": {projectID: "202", commits: map[string][]string{"2025-03-05": {"bump deps"}}},
	}
	summarizer := &fakeSummarizer{result: "1. Maintenance"}
	store := &fakeStore{}

	u := newTestUpdater(t, Options{
		Config:     testConfig(config.Project{ID: "101"}, config.Project{ID: "202"}),
		Store:      store,
		Backup:     &fakeBackup{},
		Summarizer: summarizer,
		ClientFactory: func(project config.Project) (CommitFetcher, error) {
			return fetchers[project.ID], nil
		},
	})

	path := writeReportDocument(t)
	if ok := u.UpdateDailyReport(context.Background(), path, date, 8); !ok {
		t.Fatal("UpdateDailyReport() = false, want degraded success")
	}
	if _, present := summarizer.gotByProject["101"]; present {
		t.Errorf("failed project contributed commits: %v", summarizer.gotByProject)
	}
	if len(summarizer.gotByProject["202"]) != 1 {
		t.Errorf("healthy project missing from summarizer input: %v", summarizer.gotByProject)
	}
	if len(store.calls) != 1 {
		t.Errorf("store calls = %d, want 1", len(store.calls))
	}
}

func TestUpdateDailyReport_WriteFailure(t *testing.T) {
	t.Parallel()

	history := &fakeHistory{}
	u := newTestUpdater(t, Options{
		Config:     testConfig(config.Project{ID: "101"}),
		Store:      &fakeStore{err: errors.New("row for date not found")},
		Backup:     &fakeBackup{},
		Summarizer: &fakeSummarizer{result: "1. Work"},
		History:    history,
		ClientFactory: func(config.Project) (CommitFetcher, error) {
			return &fakeFetcher{commits: map[string][]string{"2025-03-05": {"fix login"}}}, nil
		},
	})

	date := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	path := writeReportDocument(t)
	if ok := u.UpdateDailyReport(context.Background(), path, date, 8); ok {
		t.Fatal("UpdateDailyReport() = true despite write failure")
	}
	if len(history.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(history.records))
	}
	record := history.records[0]
	if record.Success || record.CommitCount != 1 {
		t.Errorf("run record = %+v, want failed record with commit count 1", record)
	}
}

func TestUpdateDailyReport_ScheduledTriggerRecorded(t *testing.T) {
	t.Parallel()

	history := &fakeHistory{}
	u := newTestUpdater(t, Options{
		Config:     testConfig(config.Project{ID: "101"}),
		Store:      &fakeStore{},
		Backup:     &fakeBackup{},
		Summarizer: &fakeSummarizer{result: "No commits"},
		History:    history,
		Trigger:    storage.TriggerScheduled,
		ClientFactory: func(config.Project) (CommitFetcher, error) {
			return &fakeFetcher{}, nil
		},
	})

	path := writeReportDocument(t)
	if ok := u.UpdateDailyReport(context.Background(), path, time.Now(), 8); !ok {
		t.Fatal("UpdateDailyReport() = false, want true")
	}
	if got := history.records[0].Trigger; got != storage.TriggerScheduled {
		t.Errorf("trigger = %q, want %q", got, storage.TriggerScheduled)
	}
}

func TestSummarizeProjectRange(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		projectID: "101",
		branch:    "dev",
		commits: map[string][]string{
			"2025-03-03": {"fix login"},
			"2025-03-04": {"add tests", "refactor auth"},
			"2025-03-05": {"bump deps"},
		},
	}
	summarizer := &fakeSummarizer{result: "1. Auth work\n2. Maintenance"}
	u := newTestUpdater(t, Options{
		Config:     testConfig(config.Project{ID: "101"}),
		Store:      &fakeStore{},
		Backup:     &fakeBackup{},
		Summarizer: summarizer,
		ClientFactory: func(config.Project) (CommitFetcher, error) {
			return fetcher, nil
		},
	})

	start := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	result, err := u.SummarizeProjectRange(context.Background(), "101", start, end, "")
	if err != nil {
		t.Fatalf("SummarizeProjectRange() error = %v", err)
	}

	if result.CommitCount != 4 {
		t.Errorf("CommitCount = %d, want 4", result.CommitCount)
	}
	if result.Branch != "dev" {
		t.Errorf("Branch = %q, want branch defaulted from client", result.Branch)
	}
	if result.Summary != summarizer.result {
		t.Errorf("Summary = %q", result.Summary)
	}
	if len(summarizer.gotFlat) != 4 {
		t.Errorf("summarizer received %d commits, want 4", len(summarizer.gotFlat))
	}
}

func TestSummarizeProjectRange_EmptyWindow(t *testing.T) {
	t.Parallel()

	u := newTestUpdater(t, Options{
		Config:     testConfig(config.Project{ID: "101"}),
		Store:      &fakeStore{},
		Backup:     &fakeBackup{},
		Summarizer: &fakeSummarizer{result: "should not be used"},
		ClientFactory: func(config.Project) (CommitFetcher, error) {
			return &fakeFetcher{projectID: "101", branch: "dev"}, nil
		},
	})

	day := time.Date(2025, time.March, 8, 0, 0, 0, 0, time.UTC)
	result, err := u.SummarizeProjectRange(context.Background(), "101", day, day, "dev")
	if err != nil {
		t.Fatalf("SummarizeProjectRange() error = %v", err)
	}
	if !strings.Contains(result.Summary, "No commits") {
		t.Errorf("Summary = %q, want no-activity sentinel", result.Summary)
	}
}

func TestSummarizeProjectRange_RejectsInvertedRange(t *testing.T) {
	t.Parallel()

	u := newTestUpdater(t, Options{
		Config:     testConfig(config.Project{ID: "101"}),
		Store:      &fakeStore{},
		Backup:     &fakeBackup{},
		Summarizer: &fakeSummarizer{},
		ClientFactory: func(config.Project) (CommitFetcher, error) {
			return &fakeFetcher{}, nil
		},
	})

	start := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -2)
	if _, err := u.SummarizeProjectRange(context.Background(), "101", start, end, "dev"); err == nil {
		t.Fatal("SummarizeProjectRange() error = nil for inverted range")
	}
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	u := newTestUpdater(t, Options{
		Config:     testConfig(config.Project{ID: "101"}),
		Store:      &fakeStore{},
		Backup:     &fakeBackup{},
		Summarizer: &fakeSummarizer{configured: true},
		ClientFactory: func(config.Project) (CommitFetcher, error) {
			return &fakeFetcher{reachable: true}, nil
		},
	})

	status := u.HealthCheck(context.Background())
	if !status.SourceConnection || !status.AICredentialPresent || !status.ConfigComplete {
		t.Errorf("HealthCheck() = %+v, want all good", status)
	}
	if !status.AllGood() {
		t.Error("AllGood() = false")
	}
}

func TestHealthCheck_NoProjects(t *testing.T) {
	t.Parallel()

	u := newTestUpdater(t, Options{
		Config:     testConfig(),
		Store:      &fakeStore{},
		Backup:     &fakeBackup{},
		Summarizer: &fakeSummarizer{},
		ClientFactory: func(config.Project) (CommitFetcher, error) {
			t.Fatal("client factory called with no projects configured")
			return nil, nil
		},
	})

	status := u.HealthCheck(context.Background())
	if status.SourceConnection {
		t.Error("SourceConnection = true with no projects")
	}
	if status.ConfigComplete {
		t.Error("ConfigComplete = true with no projects")
	}
}
