package config

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	KeyColumnsDate    = "columns.date"
	KeyColumnsContent = "columns.content"
	KeyColumnsHours   = "columns.hours"
	KeyStartRow       = "columns.start_row"

	KeyRetryMaxRetries    = "retry.max_retries"
	KeyRetryBackoffFactor = "retry.backoff_factor"
	KeyRetryTimeout       = "retry.timeout_seconds"

	KeySummarizerBaseURL      = "summarizer.base_url"
	KeySummarizerModel        = "summarizer.model"
	KeySummarizerTemperature  = "summarizer.temperature"
	KeySummarizerMaxTokens    = "summarizer.max_tokens"
	KeySummarizerSystemPrompt = "summarizer.system_prompt"

	KeyScheduleEnabled  = "schedule.enabled"
	KeyScheduleHour     = "schedule.hour"
	KeyScheduleMinute   = "schedule.minute"
	KeyScheduleTimezone = "schedule.timezone"
	KeyScheduleGrace    = "schedule.misfire_grace_seconds"

	KeyBackupEnabled = "backup.enabled"
	KeyBackupMax     = "backup.max_backups"

	KeyGitLabURL           = "gitlab.url"
	KeyGitLabToken         = "gitlab.token"
	KeyGitLabProjectID     = "gitlab.project_id"
	KeyGitLabDefaultBranch = "gitlab.default_branch"
	KeyGitLabProjects      = "gitlab.projects"

	KeyDeepseekAPIKey = "deepseek.api_key"

	KeyHistoryPath = "history.path"
)

// DefaultSystemPrompt is the summarizer instruction used when the config
// does not override it.
const DefaultSystemPrompt = "You are a software engineer who writes concise daily work reports. " +
	"Summarize the commit log into at most a handful of short numbered entries."

type Config struct {
	Columns    ColumnsConfig    `mapstructure:"columns" validate:"required"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Backup     BackupConfig     `mapstructure:"backup"`
	GitLab     GitLabConfig     `mapstructure:"gitlab"`
	Deepseek   DeepseekConfig   `mapstructure:"deepseek"`
	History    HistoryConfig    `mapstructure:"history"`
}

// ColumnsConfig holds the fixed report document layout: 1-based column
// indices for date/content/hours and the first data row.
type ColumnsConfig struct {
	Date     int `mapstructure:"date" validate:"required,min=1"`
	Content  int `mapstructure:"content" validate:"required,min=1"`
	Hours    int `mapstructure:"hours" validate:"required,min=1"`
	StartRow int `mapstructure:"start_row" validate:"required,min=1"`
}

type RetryConfig struct {
	MaxRetries     int     `mapstructure:"max_retries" validate:"min=0"`
	BackoffFactor  float64 `mapstructure:"backoff_factor" validate:"min=0"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" validate:"min=1"`
}

type SummarizerConfig struct {
	BaseURL      string  `mapstructure:"base_url" validate:"omitempty,url"`
	Model        string  `mapstructure:"model"`
	Temperature  float64 `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens    int     `mapstructure:"max_tokens" validate:"min=1"`
	SystemPrompt string  `mapstructure:"system_prompt"`
}

type ScheduleConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	Hour                int    `mapstructure:"hour" validate:"min=0,max=23"`
	Minute              int    `mapstructure:"minute" validate:"min=0,max=59"`
	Timezone            string `mapstructure:"timezone"`
	MisfireGraceSeconds int    `mapstructure:"misfire_grace_seconds" validate:"min=0"`
}

type BackupConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	MaxBackups int  `mapstructure:"max_backups" validate:"min=1"`
}

type GitLabConfig struct {
	URL           string    `mapstructure:"url"`
	Token         string    `mapstructure:"token"`
	ProjectID     string    `mapstructure:"project_id"`
	DefaultBranch string    `mapstructure:"default_branch"`
	Projects      []Project `mapstructure:"projects"`
}

// Project is one configured source project; Branch overrides the default
// branch when set.
type Project struct {
	ID     string `mapstructure:"id"`
	Branch string `mapstructure:"branch"`
}

type DeepseekConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// SetDefaults sets default values if not provided.
func SetDefaults() {
	setDefaults(viper.GetViper())
}

// BindEnv maps credential environment variables over their config keys.
// Environment values always win over file values for these keys.
func BindEnv() {
	v := viper.GetViper()
	_ = v.BindEnv(KeyGitLabURL, "GITLAB_URL")
	_ = v.BindEnv(KeyGitLabToken, "GITLAB_TOKEN")
	_ = v.BindEnv(KeyGitLabProjectID, "GITLAB_PROJECT_ID")
	_ = v.BindEnv(KeyGitLabDefaultBranch, "GITLAB_BRANCH")
	_ = v.BindEnv(KeyDeepseekAPIKey, "DEEPSEEK_API_KEY")
}

// LoadAndValidate loads config from Viper and validates it.
func LoadAndValidate() (*Config, error) {
	return loadAndValidateFromViper(viper.GetViper())
}

// ValidateYAMLContent validates configuration from raw YAML content.
func ValidateYAMLContent(content []byte) (*Config, error) {
	local := viper.New()
	setDefaults(local)
	local.SetConfigType("yaml")
	if err := local.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("read config content: %w", err)
	}
	return loadAndValidateFromViper(local)
}

// ExampleYAML returns the default configuration template.
func ExampleYAML() string {
	return `# report-writer configuration
columns:
  date: 6
  content: 7
  hours: 8
  start_row: 3

retry:
  max_retries: 3
  backoff_factor: 2
  timeout_seconds: 10

summarizer:
  base_url: "https://api.deepseek.com/v1"
  model: "deepseek-chat"
  temperature: 0.4
  max_tokens: 300

schedule:
  enabled: true
  hour: 18
  minute: 0
  timezone: "Asia/Shanghai"
  misfire_grace_seconds: 3600

backup:
  enabled: true
  max_backups: 5

gitlab:
  url: ""
  token: ""
  project_id: ""
  default_branch: "dev"
  projects: []

deepseek:
  api_key: ""

history:
  path: "data/report-writer.db"
`
}

func loadAndValidateFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if err := validateProjects(cfg.GitLab.Projects); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyColumnsDate, 6)
	v.SetDefault(KeyColumnsContent, 7)
	v.SetDefault(KeyColumnsHours, 8)
	v.SetDefault(KeyStartRow, 3)

	v.SetDefault(KeyRetryMaxRetries, 3)
	v.SetDefault(KeyRetryBackoffFactor, 2.0)
	v.SetDefault(KeyRetryTimeout, 10)

	v.SetDefault(KeySummarizerBaseURL, "https://api.deepseek.com/v1")
	v.SetDefault(KeySummarizerModel, "deepseek-chat")
	v.SetDefault(KeySummarizerTemperature, 0.4)
	v.SetDefault(KeySummarizerMaxTokens, 300)
	v.SetDefault(KeySummarizerSystemPrompt, DefaultSystemPrompt)

	v.SetDefault(KeyScheduleEnabled, true)
	v.SetDefault(KeyScheduleHour, 18)
	v.SetDefault(KeyScheduleMinute, 0)
	v.SetDefault(KeyScheduleTimezone, "Asia/Shanghai")
	v.SetDefault(KeyScheduleGrace, 3600)

	v.SetDefault(KeyBackupEnabled, true)
	v.SetDefault(KeyBackupMax, 5)

	v.SetDefault(KeyGitLabDefaultBranch, "dev")
	v.SetDefault(KeyGitLabProjects, []map[string]any{})

	v.SetDefault(KeyHistoryPath, "data/report-writer.db")
}

func validateProjects(projects []Project) error {
	seen := make(map[string]struct{}, len(projects))
	for i, project := range projects {
		id := strings.TrimSpace(project.ID)
		if id == "" {
			return fmt.Errorf("validation failed: gitlab.projects[%d].id is required", i)
		}
		if _, exists := seen[id]; exists {
			return fmt.Errorf("validation failed: duplicate project id %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ResolveProjects returns the effective project set: the configured list, or
// a single entry built from the flat gitlab.project_id when the list is empty.
func (c *Config) ResolveProjects() []Project {
	if len(c.GitLab.Projects) > 0 {
		resolved := make([]Project, 0, len(c.GitLab.Projects))
		for _, project := range c.GitLab.Projects {
			branch := strings.TrimSpace(project.Branch)
			if branch == "" {
				branch = c.GitLab.DefaultBranch
			}
			resolved = append(resolved, Project{ID: strings.TrimSpace(project.ID), Branch: branch})
		}
		return resolved
	}

	if strings.TrimSpace(c.GitLab.ProjectID) == "" {
		return nil
	}
	return []Project{{ID: strings.TrimSpace(c.GitLab.ProjectID), Branch: c.GitLab.DefaultBranch}}
}

// SourceComplete reports whether the commit source credentials are usable.
func (c *Config) SourceComplete() bool {
	return strings.TrimSpace(c.GitLab.URL) != "" &&
		strings.TrimSpace(c.GitLab.Token) != "" &&
		len(c.ResolveProjects()) > 0
}
