package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zenvor/report-writer/backup"
	"github.com/zenvor/report-writer/config"
	"github.com/zenvor/report-writer/gitlab"
	"github.com/zenvor/report-writer/report"
	"github.com/zenvor/report-writer/storage"
	"github.com/zenvor/report-writer/summary"
)

// CommitFetcher is the commit source contract for one project.
type CommitFetcher interface {
	FetchCommits(ctx context.Context, day time.Time, branch string) ([]string, error)
	FetchCommitsRange(ctx context.Context, start, end time.Time, branch string) ([]string, error)
	ValidateConnection(ctx context.Context) bool
	ProjectID() string
	DefaultBranch() string
}

// ClientFactory builds a commit source client for one configured project.
type ClientFactory func(project config.Project) (CommitFetcher, error)

type Summarizer interface {
	Summarize(ctx context.Context, commitsByProject map[string][]string) string
	SummarizeCommits(ctx context.Context, commits []string) string
	Configured() bool
}

type DocumentStore interface {
	WriteEntry(path string, date time.Time, summaryText string, workHours int) error
}

type Backupper interface {
	Snapshot(documentPath string) (string, error)
}

type History interface {
	RecordRun(record storage.RunRecord) (int64, error)
}

// HealthStatus is the health-check probe result.
type HealthStatus struct {
	SourceConnection    bool
	AICredentialPresent bool
	ConfigComplete      bool
}

func (h HealthStatus) AllGood() bool {
	return h.SourceConnection && h.AICredentialPresent && h.ConfigComplete
}

// RangeSummary is the result of an ad-hoc multi-day project summary.
type RangeSummary struct {
	ProjectID   string
	Branch      string
	Commits     []string
	CommitCount int
	Summary     string
}

type Options struct {
	Config *config.Config

	Store         DocumentStore
	Backup        Backupper
	Summarizer    Summarizer
	History       History
	ClientFactory ClientFactory
	Logger        *slog.Logger

	// Trigger labels run-history rows; defaults to storage.TriggerManual.
	Trigger string
}

// Updater drives the daily pipeline: validate, backup, fetch, summarize,
// write. Failures never escape as errors; the caller gets a boolean and a
// log trail.
type Updater struct {
	cfg *config.Config

	store      DocumentStore
	backup     Backupper
	summarizer Summarizer
	history    History
	newClient  ClientFactory
	logger     *slog.Logger
	trigger    string
}

func New(opts Options) (*Updater, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := opts.Config

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := opts.Store
	if store == nil {
		store = report.NewStore(report.Columns{
			Date:     cfg.Columns.Date,
			Content:  cfg.Columns.Content,
			Hours:    cfg.Columns.Hours,
			StartRow: cfg.Columns.StartRow,
		}, logger)
	}

	backupManager := opts.Backup
	if backupManager == nil {
		backupManager = backup.NewManager(cfg.Backup.Enabled, cfg.Backup.MaxBackups, logger)
	}

	summarizer := opts.Summarizer
	if summarizer == nil {
		summarizer = summary.NewGenerator(summary.GeneratorConfig{
			APIKey:       cfg.Deepseek.APIKey,
			BaseURL:      cfg.Summarizer.BaseURL,
			Model:        cfg.Summarizer.Model,
			Temperature:  cfg.Summarizer.Temperature,
			MaxTokens:    cfg.Summarizer.MaxTokens,
			SystemPrompt: cfg.Summarizer.SystemPrompt,
			Logger:       logger,
		})
	}

	factory := opts.ClientFactory
	if factory == nil {
		factory = func(project config.Project) (CommitFetcher, error) {
			return gitlab.NewClient(gitlab.ClientConfig{
				BaseURL:       cfg.GitLab.URL,
				Token:         cfg.GitLab.Token,
				ProjectID:     project.ID,
				DefaultBranch: project.Branch,
				MaxRetries:    cfg.Retry.MaxRetries,
				BackoffFactor: cfg.Retry.BackoffFactor,
				Timeout:       time.Duration(cfg.Retry.TimeoutSeconds) * time.Second,
				Logger:        logger,
			})
		}
	}

	trigger := opts.Trigger
	if trigger == "" {
		trigger = storage.TriggerManual
	}

	return &Updater{
		cfg:        cfg,
		store:      store,
		backup:     backupManager,
		summarizer: summarizer,
		history:    opts.History,
		newClient:  factory,
		logger:     logger,
		trigger:    trigger,
	}, nil
}

// UpdateDailyReport runs the full pipeline for one date. The stages are
// linear: a validation or backup failure aborts before any fetch, a write
// failure is the only later abort. Per-project fetch failures degrade to an
// empty commit list.
func (u *Updater) UpdateDailyReport(ctx context.Context, documentPath string, date time.Time, workHours int) bool {
	dateLabel := date.Format("2006-01-02")
	u.logger.Info("starting daily report update",
		"document", documentPath, "date", dateLabel, "hours", workHours)

	if err := report.Validate(documentPath); err != nil {
		u.logger.Error("report document validation failed",
			"document", documentPath, "date", dateLabel, "stage", "validate", "error", err)
		u.recordRun(documentPath, dateLabel, false, 0, "")
		return false
	}

	if _, err := u.backup.Snapshot(documentPath); err != nil {
		// Never touch the report without a safety copy.
		u.logger.Error("backup failed, aborting update",
			"document", documentPath, "date", dateLabel, "stage", "backup", "error", err)
		u.recordRun(documentPath, dateLabel, false, 0, "")
		return false
	}

	commitsByProject := u.fetchAllCommits(ctx, date)
	commitCount := 0
	for _, commits := range commitsByProject {
		commitCount += len(commits)
	}

	summaryText := u.summarizer.Summarize(ctx, commitsByProject)
	u.logger.Info("summary generated", "date", dateLabel, "commits", commitCount)

	if err := u.store.WriteEntry(documentPath, date, summaryText, workHours); err != nil {
		u.logger.Error("report write failed",
			"document", documentPath, "date", dateLabel, "stage", "write", "error", err)
		u.recordRun(documentPath, dateLabel, false, commitCount, summaryText)
		return false
	}

	u.logger.Info("daily report updated", "document", documentPath, "date", dateLabel)
	u.recordRun(documentPath, dateLabel, true, commitCount, summaryText)
	return true
}

// fetchAllCommits collects commits for every configured project. A failed
// project contributes whatever partial list the client accumulated; projects
// with no commits are left out of the map.
func (u *Updater) fetchAllCommits(ctx context.Context, date time.Time) map[string][]string {
	commitsByProject := make(map[string][]string)

	for _, project := range u.cfg.ResolveProjects() {
		client, err := u.newClient(project)
		if err != nil {
			u.logger.Warn("skipping project, client construction failed",
				"project", project.ID, "error", err)
			continue
		}

		commits, err := client.FetchCommits(ctx, date, project.Branch)
		if err != nil {
			u.logger.Warn("commit fetch failed",
				"project", project.ID, "branch", project.Branch,
				"partial_commits", len(commits), "error", err)
		}
		if len(commits) > 0 {
			commitsByProject[project.ID] = commits
		}
	}

	return commitsByProject
}

// SummarizeProjectRange fetches and summarizes a multi-day window for one
// project; used for ad-hoc reporting outside the daily cadence.
func (u *Updater) SummarizeProjectRange(ctx context.Context, projectID string, start, end time.Time, branch string) (RangeSummary, error) {
	if end.Before(start) {
		return RangeSummary{}, fmt.Errorf("end date %s precedes start date %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	client, err := u.newClient(config.Project{ID: projectID, Branch: branch})
	if err != nil {
		return RangeSummary{}, fmt.Errorf("build client for project %s: %w", projectID, err)
	}
	if branch == "" {
		branch = client.DefaultBranch()
	}

	commits := make([]string, 0, 64)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		dayCommits, err := client.FetchCommits(ctx, day, branch)
		if err != nil {
			u.logger.Warn("range day fetch failed",
				"project", projectID, "day", day.Format("2006-01-02"), "error", err)
		}
		commits = append(commits, dayCommits...)
	}

	summaryText := summary.NoActivity
	if len(commits) > 0 {
		summaryText = u.summarizer.SummarizeCommits(ctx, commits)
	}

	return RangeSummary{
		ProjectID:   projectID,
		Branch:      branch,
		Commits:     commits,
		CommitCount: len(commits),
		Summary:     summaryText,
	}, nil
}

// HealthCheck probes connectivity and configuration without mutating
// anything.
func (u *Updater) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		AICredentialPresent: u.summarizer.Configured(),
		ConfigComplete:      u.cfg.SourceComplete(),
	}

	projects := u.cfg.ResolveProjects()
	if len(projects) == 0 {
		return status
	}

	client, err := u.newClient(projects[0])
	if err != nil {
		u.logger.Warn("health check client construction failed", "error", err)
		return status
	}
	status.SourceConnection = client.ValidateConnection(ctx)
	return status
}

func (u *Updater) recordRun(documentPath, dateLabel string, success bool, commitCount int, summaryText string) {
	if u.history == nil {
		return
	}
	_, err := u.history.RecordRun(storage.RunRecord{
		RanAt:       time.Now(),
		ReportDate:  dateLabel,
		Document:    documentPath,
		Success:     success,
		CommitCount: commitCount,
		Summary:     summaryText,
		Trigger:     u.trigger,
	})
	if err != nil {
		u.logger.Warn("failed to record run history", "error", err)
	}
}
