package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zenvor/report-writer/internal/timeutil"
)

const (
	apiVersion      = "v4"
	defaultPerPage  = 100
	maxPages        = 10
	defaultTimeout  = 10 * time.Second
	windowLayout    = "2006-01-02T15:04:05Z"
	metadataTimeout = 5 * time.Second
)

// Failure classification for commit source calls. The pipeline treats them
// all the same way, but health checks and diagnostics need the distinction.
var (
	ErrUnauthorized = errors.New("gitlab token invalid or expired")
	ErrForbidden    = errors.New("insufficient permissions for project")
	ErrNotFound     = errors.New("project not found or not accessible")
	ErrRateLimited  = errors.New("gitlab rate limit exceeded")
	ErrConnection   = errors.New("gitlab connection failed")
	ErrTimeout      = errors.New("gitlab request timed out")
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientConfig struct {
	BaseURL       string
	Token         string
	ProjectID     string
	DefaultBranch string

	MaxRetries    int
	BackoffFactor float64
	Timeout       time.Duration

	HTTPClient httpDoer
	Logger     *slog.Logger
}

// Client fetches commit titles from one GitLab project.
type Client struct {
	baseURL       string
	token         string
	projectID     string
	defaultBranch string

	maxRetries    int
	backoffFactor float64

	httpClient httpDoer
	logger     *slog.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	parsedBase, err := url.Parse(baseURL)
	if err != nil || parsedBase.Scheme == "" || parsedBase.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, errors.New("project ID is required")
	}

	branch := strings.TrimSpace(cfg.DefaultBranch)
	if branch == "" {
		branch = "master"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}

	backoff := cfg.BackoffFactor
	if backoff <= 0 {
		backoff = 2
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:       baseURL,
		token:         strings.TrimSpace(cfg.Token),
		projectID:     projectID,
		defaultBranch: branch,
		maxRetries:    cfg.MaxRetries,
		backoffFactor: backoff,
		httpClient:    doer,
		logger:        logger,
	}, nil
}

func (c *Client) ProjectID() string     { return c.projectID }
func (c *Client) DefaultBranch() string { return c.defaultBranch }

type commit struct {
	Title string `json:"title"`
}

// ProjectInfo is the subset of project metadata used by diagnostics.
type ProjectInfo struct {
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace"`
	DefaultBranch     string `json:"default_branch"`
}

// FetchCommits returns the commit titles pushed to branch during the UTC day
// of day, oldest page first. On a page failure it returns the commits
// accumulated so far together with the error; partial results are usable.
func (c *Client) FetchCommits(ctx context.Context, day time.Time, branch string) ([]string, error) {
	since, until := timeutil.DayWindow(day)
	return c.fetchWindow(ctx, since, until, branch)
}

// FetchCommitsRange fetches commits across an inclusive multi-day window.
func (c *Client) FetchCommitsRange(ctx context.Context, start, end time.Time, branch string) ([]string, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s precedes start date %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	since, _ := timeutil.DayWindow(start)
	_, until := timeutil.DayWindow(end)
	return c.fetchWindow(ctx, since, until, branch)
}

func (c *Client) fetchWindow(ctx context.Context, since, until time.Time, branch string) ([]string, error) {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		branch = c.defaultBranch
	}

	query := url.Values{}
	query.Set("since", since.Format(windowLayout))
	query.Set("until", until.Format(windowLayout))
	query.Set("per_page", strconv.Itoa(defaultPerPage))
	query.Set("ref_name", branch)

	path := fmt.Sprintf("/api/%s/projects/%s/repository/commits", apiVersion, url.PathEscape(c.projectID))

	titles := make([]string, 0, defaultPerPage)
	for page := 1; page <= maxPages; page++ {
		query.Set("page", strconv.Itoa(page))

		var pageCommits []commit
		if err := c.getJSON(ctx, path, query, &pageCommits); err != nil {
			c.logger.Error("commit page fetch failed",
				"project", c.projectID, "branch", branch, "page", page, "error", err)
			return titles, err
		}
		if len(pageCommits) == 0 {
			break
		}

		for _, entry := range pageCommits {
			if title := strings.TrimSpace(entry.Title); title != "" {
				titles = append(titles, title)
			}
		}
		c.logger.Debug("fetched commit page",
			"project", c.projectID, "page", page, "commits", len(pageCommits))

		if len(pageCommits) < defaultPerPage {
			break
		}
	}

	return titles, nil
}

// ValidateConnection probes project metadata. Used by health checks only; it
// never returns an error to the caller.
func (c *Client) ValidateConnection(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	info, err := c.Project(probeCtx)
	if err != nil {
		c.logger.Warn("gitlab connection check failed", "project", c.projectID, "error", err)
		return false
	}
	c.logger.Info("gitlab connection verified", "project", c.projectID, "name", info.Name)
	return true
}

// Project fetches the project metadata record.
func (c *Client) Project(ctx context.Context) (ProjectInfo, error) {
	path := fmt.Sprintf("/api/%s/projects/%s", apiVersion, url.PathEscape(c.projectID))
	var info ProjectInfo
	if err := c.getJSON(ctx, path, nil, &info); err != nil {
		return ProjectInfo{}, err
	}
	return info, nil
}

// getJSON issues a GET with bounded retries on transient statuses
// (429/500/502/503/504). Only reads pass through here, so retrying is safe.
func (c *Client) getJSON(ctx context.Context, endpointPath string, query url.Values, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleepBackoff(ctx, attempt); err != nil {
				return err
			}
		}

		retryable, err := c.attemptGET(ctx, endpointPath, query, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
		c.logger.Debug("retrying gitlab request",
			"path", endpointPath, "attempt", attempt+1, "error", err)
	}
	return lastErr
}

func (c *Client) attemptGET(ctx context.Context, endpointPath string, query url.Values, out any) (retryable bool, err error) {
	fullURL := c.baseURL + endpointPath
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return false, fmt.Errorf("create request GET %s: %w", endpointPath, err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return retryableStatus(resp.StatusCode), classifyStatus(resp.StatusCode, resp.Body)
	}

	if out == nil {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response GET %s: %w", endpointPath, err)
	}
	return false, nil
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	delay := time.Duration(c.backoffFactor * math.Pow(2, float64(attempt-1)) * float64(time.Second))
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return classifyTransportError(ctx.Err())
	case <-timer.C:
		return nil
	}
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func classifyStatus(status int, body io.Reader) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}

	detail, _ := io.ReadAll(io.LimitReader(body, 512))
	return fmt.Errorf("unexpected status %d: %s", status, strings.TrimSpace(string(detail)))
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}
