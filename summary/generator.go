package summary

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// NoActivity is the sentinel written when no project contributed commits.
	NoActivity = "No commits"

	// maxFallbackItems caps the deterministic fallback list; the remainder is
	// rolled up into a single closing line.
	maxFallbackItems = 10
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type GeneratorConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string

	// Client overrides the OpenAI-compatible client, for tests.
	Client chatCompleter
	Logger *slog.Logger
}

// Generator condenses commit titles into a short report entry. The AI path is
// best effort: any failure degrades to a deterministic numbered list.
type Generator struct {
	client       chatCompleter
	model        string
	temperature  float64
	maxTokens    int
	systemPrompt string
	logger       *slog.Logger
}

func NewGenerator(cfg GeneratorConfig) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := cfg.Client
	if client == nil && strings.TrimSpace(cfg.APIKey) != "" {
		clientConfig := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
		if strings.TrimSpace(cfg.BaseURL) != "" {
			clientConfig.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
		}
		client = openai.NewClientWithConfig(clientConfig)
	}

	model := cfg.Model
	if model == "" {
		model = "deepseek-chat"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = "You are a software engineer who writes concise daily work reports."
	}

	return &Generator{
		client:       client,
		model:        model,
		temperature:  cfg.Temperature,
		maxTokens:    maxTokens,
		systemPrompt: systemPrompt,
		logger:       logger,
	}
}

// Configured reports whether the AI path is available.
func (g *Generator) Configured() bool {
	return g.client != nil
}

// Summarize turns the per-project commit map into one report entry. Commits
// from multiple projects are flattened into a single list before
// summarization so numbering stays consistent across projects. It never
// returns an error: every failure degrades to the deterministic fallback.
func (g *Generator) Summarize(ctx context.Context, commitsByProject map[string][]string) string {
	merged := mergeCommits(commitsByProject)
	if len(merged) == 0 {
		return NoActivity
	}
	return g.SummarizeCommits(ctx, merged)
}

// SummarizeCommits summarizes an already-flattened commit list.
func (g *Generator) SummarizeCommits(ctx context.Context, commits []string) string {
	if len(commits) == 0 {
		return NoActivity
	}

	if g.client == nil {
		g.logger.Warn("summarizer credential not configured, using fallback summary")
		return FallbackSummary(commits)
	}

	generated, err := g.callModel(ctx, commits)
	if err != nil {
		g.logger.Error("ai summary failed, using fallback summary", "error", err)
		return FallbackSummary(commits)
	}
	if generated == "" {
		g.logger.Warn("ai summary was empty, using fallback summary")
		return FallbackSummary(commits)
	}
	return generated
}

func (g *Generator) callModel(ctx context.Context, commits []string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: float32(g.temperature),
		MaxTokens:   g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(commits)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(commits []string) string {
	var b strings.Builder
	b.WriteString("Below are today's git commit titles. Condense them into a short daily report entry.\n")
	b.WriteString("1. Merge related work (multiple fixes in one module become one item).\n")
	b.WriteString("2. Produce 3-5 core items, no detail listing.\n")
	b.WriteString("3. Format: 1. XXX 2. XXX 3. XXX\n")
	b.WriteString("4. Keep each item brief and focused on the outcome.\n\n")
	b.WriteString("Commit titles:\n")
	for _, title := range commits {
		b.WriteString("- ")
		b.WriteString(title)
		b.WriteString("\n")
	}
	return b.String()
}

// FallbackSummary builds the deterministic numbered list used whenever the
// AI path is unavailable or fails.
func FallbackSummary(commits []string) string {
	if len(commits) == 0 {
		return NoActivity
	}

	items := make([]string, 0, maxFallbackItems+1)
	for i, title := range commits {
		if i == maxFallbackItems {
			break
		}
		items = append(items, fmt.Sprintf("%d. %s", i+1, title))
	}
	if remaining := len(commits) - maxFallbackItems; remaining > 0 {
		items = append(items, fmt.Sprintf("%d. and %d more commits", maxFallbackItems+1, remaining))
	}
	return strings.Join(items, "\n")
}

// mergeCommits flattens the project map in stable project order so the
// fallback numbering is deterministic across runs.
func mergeCommits(commitsByProject map[string][]string) []string {
	if len(commitsByProject) == 0 {
		return nil
	}

	projects := make([]string, 0, len(commitsByProject))
	for project := range commitsByProject {
		projects = append(projects, project)
	}
	sort.Strings(projects)

	merged := make([]string, 0, 16)
	for _, project := range projects {
		merged = append(merged, commitsByProject[project]...)
	}
	return merged
}
