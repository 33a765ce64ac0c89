// Package jira pushes generated backlogs to a Jira instance over the REST
// v2 API. Sync is idempotent per item: anything that already carries a
// remote id is skipped, so re-running a sync never duplicates issues.
// Missing credentials make the whole sync a no-op; local artifacts are
// never blocked on Jira.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/khushiGit123/jira-gen/internal/artifact"
	"github.com/khushiGit123/jira-gen/internal/config"
	"github.com/khushiGit123/jira-gen/internal/errors"
	"github.com/khushiGit123/jira-gen/internal/logging"
)

const (
	issuePath    = "/rest/api/2/issue"
	maxErrorBody = 2 << 10
)

// Client creates Jira issues for backlog items.
type Client struct {
	cfg    config.JiraConfig
	retry  config.RetryConfig
	client *http.Client
	logger *logging.Logger
	sleep  func(context.Context, time.Duration) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Used by tests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(j *Client) {
		j.client = c
	}
}

// WithLogger sets the client logger.
func WithLogger(l *logging.Logger) ClientOption {
	return func(j *Client) {
		j.logger = l
	}
}

func withSleep(fn func(context.Context, time.Duration) error) ClientOption {
	return func(j *Client) {
		j.sleep = fn
	}
}

// NewClient creates a Client from config.
func NewClient(cfg config.JiraConfig, retry config.RetryConfig, opts ...ClientOption) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		retry:  retry,
		client: &http.Client{Timeout: timeout},
		logger: logging.NopLogger(),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Report summarizes one sync pass over a backlog.
type Report struct {
	EpicsCreated   int      `json:"epics_created"`
	StoriesCreated int      `json:"stories_created"`
	Skipped        int      `json:"skipped"`
	Failed         int      `json:"failed"`
	Notes          []string `json:"notes,omitempty"`
}

// Summary returns the human-readable one-liner for the aggregate result.
func (r Report) Summary() string {
	return fmt.Sprintf("Created %d epics and %d stories", r.EpicsCreated, r.StoriesCreated)
}

// Sync walks the backlog creating remote issues. Each item moves through
// local → submitting → synced or sync_failed, recorded on the item itself.
// The epic is created before its stories so stories can link to it; a failed
// epic does not stop its stories, they are created unlinked.
//
// When Jira is not configured, Sync returns errors.ErrSyncSkipped with a
// single explanatory note and touches nothing. Partial failure is normal:
// the report counts what happened and Sync returns nil.
func (c *Client) Sync(ctx context.Context, backlog *artifact.Backlog, projectKey string) (Report, error) {
	var report Report
	if backlog == nil || len(backlog.Epics) == 0 {
		return report, nil
	}
	if !c.cfg.Configured() {
		report.Notes = append(report.Notes, "remote sync skipped: Jira credentials not configured")
		return report, errors.ErrSyncSkipped
	}
	if projectKey == "" {
		projectKey = c.cfg.ProjectKey
	}
	if projectKey == "" {
		report.Notes = append(report.Notes, "remote sync skipped: no Jira project key")
		return report, errors.ErrSyncSkipped
	}

	for i := range backlog.Epics {
		epic := &backlog.Epics[i]
		epicKey := c.syncEpic(ctx, epic, projectKey, &report)
		for j := range epic.Stories {
			c.syncStory(ctx, &epic.Stories[j], projectKey, epicKey, &report)
		}
	}
	return report, nil
}

func (c *Client) syncEpic(ctx context.Context, epic *artifact.Epic, projectKey string, report *Report) string {
	if epic.RemoteID != "" {
		report.Skipped++
		return epic.RemoteID
	}

	epic.SyncState = artifact.SyncSubmitting
	key, err := c.createIssue(ctx, issueFields{
		ProjectKey:  projectKey,
		Summary:     epic.Title,
		Description: epic.Description,
		IssueType:   c.epicIssueType(),
	})
	if err != nil {
		epic.SyncState = artifact.SyncFailed
		epic.SyncError = err.Error()
		report.Failed++
		report.Notes = append(report.Notes, fmt.Sprintf("epic %q: %v", epic.Title, err))
		return ""
	}
	epic.RemoteID = key
	epic.SyncState = artifact.SyncSynced
	epic.SyncError = ""
	report.EpicsCreated++
	return key
}

func (c *Client) syncStory(ctx context.Context, story *artifact.Story, projectKey, epicKey string, report *Report) {
	if story.RemoteID != "" {
		report.Skipped++
		return
	}

	story.SyncState = artifact.SyncSubmitting
	description := story.Description
	if len(story.AcceptanceCriteria) > 0 {
		description += "\n\nAcceptance criteria:\n* " + strings.Join(story.AcceptanceCriteria, "\n* ")
	}
	key, err := c.createIssue(ctx, issueFields{
		ProjectKey:  projectKey,
		Summary:     story.Title,
		Description: description,
		IssueType:   c.storyIssueType(),
		ParentKey:   epicKey,
	})
	if err != nil {
		story.SyncState = artifact.SyncFailed
		story.SyncError = err.Error()
		report.Failed++
		report.Notes = append(report.Notes, fmt.Sprintf("story %q: %v", story.Title, err))
		return
	}
	story.RemoteID = key
	story.SyncState = artifact.SyncSynced
	story.SyncError = ""
	report.StoriesCreated++
}

// Issue type names are configurable because Jira instances rename them;
// the Jira Cloud defaults apply when config leaves them blank.
func (c *Client) epicIssueType() string {
	if c.cfg.EpicIssueType != "" {
		return c.cfg.EpicIssueType
	}
	return "Epic"
}

func (c *Client) storyIssueType() string {
	if c.cfg.StoryIssueType != "" {
		return c.cfg.StoryIssueType
	}
	return "Story"
}

type issueFields struct {
	ProjectKey  string
	Summary     string
	Description string
	IssueType   string
	ParentKey   string
}

type createRequest struct {
	Fields map[string]any `json:"fields"`
}

type createResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// createIssue creates one issue with bounded retries on transient failures
// and returns the remote issue key.
func (c *Client) createIssue(ctx context.Context, fields issueFields) (string, error) {
	maxAttempts := c.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		key, err := c.postIssue(ctx, fields)
		if err == nil {
			return key, nil
		}
		lastErr = err
		if !errors.IsRetryable(err) || attempt == maxAttempts {
			break
		}
		delay := c.backoff(attempt)
		c.logger.Warn("issue creation failed, backing off",
			"summary", fields.Summary, "attempt", attempt, "delay", delay.String())
		if serr := c.sleep(ctx, delay); serr != nil {
			lastErr = serr
			break
		}
	}
	return "", lastErr
}

func (c *Client) postIssue(ctx context.Context, fields issueFields) (string, error) {
	body := createRequest{Fields: map[string]any{
		"project":     map[string]string{"key": fields.ProjectKey},
		"summary":     fields.Summary,
		"description": fields.Description,
		"issuetype":   map[string]string{"name": fields.IssueType},
	}}
	if fields.ParentKey != "" {
		body.Fields["parent"] = map[string]string{"key": fields.ParentKey}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", errors.NewSyncError("encoding issue request", err).WithItem(fields.Summary)
	}

	url := strings.TrimRight(c.cfg.Server, "/") + issuePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", errors.NewSyncError("building issue request", err).WithItem(fields.Summary)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.Username, c.cfg.APIToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.NewSyncError("issue request failed", err).
			WithItem(fields.Summary).WithTransient(true)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", errors.NewSyncError(statusDetail(resp), nil).
			WithItem(fields.Summary).WithTransient(true)
	default:
		return "", errors.NewSyncError(statusDetail(resp), nil).WithItem(fields.Summary)
	}

	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", errors.NewSyncError("malformed issue response", err).WithItem(fields.Summary)
	}
	if created.Key == "" {
		return "", errors.NewSyncError("issue response missing key", nil).WithItem(fields.Summary)
	}
	return created.Key, nil
}

func statusDetail(resp *http.Response) string {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(snippet))
	if detail == "" {
		return fmt.Sprintf("jira returned status %d", resp.StatusCode)
	}
	return fmt.Sprintf("jira returned status %d: %s", resp.StatusCode, detail)
}

func (c *Client) backoff(attempt int) time.Duration {
	base := time.Duration(c.retry.BackoffBaseMs) * time.Millisecond
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	cap := time.Duration(c.retry.BackoffCapMs) * time.Millisecond
	if cap <= 0 {
		cap = 4 * time.Second
	}
	shift := attempt - 1
	if shift > 20 {
		return cap
	}
	delay := base << shift
	if delay > cap || delay <= 0 {
		delay = cap
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
