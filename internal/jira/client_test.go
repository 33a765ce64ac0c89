package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/khushiGit123/jira-gen/internal/artifact"
	"github.com/khushiGit123/jira-gen/internal/config"
	"github.com/khushiGit123/jira-gen/internal/errors"
)

func testBacklog() *artifact.Backlog {
	return &artifact.Backlog{
		Epics: []artifact.Epic{
			{
				Title:       "Storefront",
				Description: "Customer-facing catalog",
				Stories: []artifact.Story{
					{Title: "Browse catalog", Description: "as a customer", AcceptanceCriteria: []string{"products listed"}},
					{Title: "Search products", Description: "as a customer", AcceptanceCriteria: []string{"results ranked"}},
				},
			},
		},
	}
}

func clientFor(srv *httptest.Server, opts ...ClientOption) *Client {
	cfg := config.JiraConfig{
		Server:     srv.URL,
		Username:   "dev@example.com",
		APIToken:   "token",
		ProjectKey: "PROJ",
	}
	retry := config.RetryConfig{MaxAttempts: 3, BackoffBaseMs: 1, BackoffCapMs: 10}
	opts = append([]ClientOption{
		WithHTTPClient(srv.Client()),
		withSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
	}, opts...)
	return NewClient(cfg, retry, opts...)
}

type recordedIssue struct {
	Summary   string
	IssueType string
	Parent    string
}

func issueServer(t *testing.T, issues *[]recordedIssue) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		user, token, ok := r.BasicAuth()
		if !ok || user != "dev@example.com" || token != "token" {
			t.Errorf("bad basic auth: %q %q", user, token)
		}

		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		rec := recordedIssue{
			Summary:   req.Fields["summary"].(string),
			IssueType: req.Fields["issuetype"].(map[string]any)["name"].(string),
		}
		if parent, ok := req.Fields["parent"].(map[string]any); ok {
			rec.Parent = parent["key"].(string)
		}
		*issues = append(*issues, rec)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(createResponse{ID: "10000", Key: fmt.Sprintf("PROJ-%d", len(*issues))})
	}))
}

func TestSyncCreatesEpicThenLinkedStories(t *testing.T) {
	var issues []recordedIssue
	srv := issueServer(t, &issues)
	defer srv.Close()

	backlog := testBacklog()
	report, err := clientFor(srv).Sync(context.Background(), backlog, "")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if len(issues) != 3 {
		t.Fatalf("issues created = %d", len(issues))
	}
	if issues[0].IssueType != "Epic" || issues[0].Summary != "Storefront" {
		t.Errorf("first issue = %+v, want the epic", issues[0])
	}
	for _, story := range issues[1:] {
		if story.IssueType != "Story" {
			t.Errorf("issue type = %q", story.IssueType)
		}
		if story.Parent != "PROJ-1" {
			t.Errorf("story parent = %q, want PROJ-1", story.Parent)
		}
	}

	epic := backlog.Epics[0]
	if epic.SyncState != artifact.SyncSynced || epic.RemoteID != "PROJ-1" {
		t.Errorf("epic state = %q, id = %q", epic.SyncState, epic.RemoteID)
	}
	for _, story := range epic.Stories {
		if story.SyncState != artifact.SyncSynced || story.RemoteID == "" {
			t.Errorf("story %q state = %q, id = %q", story.Title, story.SyncState, story.RemoteID)
		}
	}

	if report.EpicsCreated != 1 || report.StoriesCreated != 2 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	if report.Summary() != "Created 1 epics and 2 stories" {
		t.Errorf("summary = %q", report.Summary())
	}
}

func TestSyncSkipsItemsWithRemoteIDs(t *testing.T) {
	var issues []recordedIssue
	srv := issueServer(t, &issues)
	defer srv.Close()

	backlog := testBacklog()
	backlog.Epics[0].RemoteID = "PROJ-99"
	backlog.Epics[0].SyncState = artifact.SyncSynced
	backlog.Epics[0].Stories[0].RemoteID = "PROJ-100"
	backlog.Epics[0].Stories[0].SyncState = artifact.SyncSynced

	report, err := clientFor(srv).Sync(context.Background(), backlog, "")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if len(issues) != 1 {
		t.Fatalf("issues created = %d, want only the unsynced story", len(issues))
	}
	if issues[0].Summary != "Search products" {
		t.Errorf("created %q", issues[0].Summary)
	}
	if issues[0].Parent != "PROJ-99" {
		t.Errorf("story parent = %q, want existing epic id", issues[0].Parent)
	}
	if report.Skipped != 2 || report.StoriesCreated != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestSyncUnconfiguredIsNoOp(t *testing.T) {
	c := NewClient(config.JiraConfig{}, config.RetryConfig{MaxAttempts: 1})
	backlog := testBacklog()

	report, err := c.Sync(context.Background(), backlog, "")
	if !errors.Is(err, errors.ErrSyncSkipped) {
		t.Fatalf("err = %v, want ErrSyncSkipped", err)
	}
	if len(report.Notes) != 1 || !strings.Contains(report.Notes[0], "skipped") {
		t.Errorf("notes = %v", report.Notes)
	}
	if backlog.Epics[0].SyncState != "" || backlog.Epics[0].RemoteID != "" {
		t.Errorf("unconfigured sync touched the backlog: %+v", backlog.Epics[0])
	}
}

func TestSyncEmptyBacklog(t *testing.T) {
	c := NewClient(config.JiraConfig{}, config.RetryConfig{MaxAttempts: 1})
	if _, err := c.Sync(context.Background(), &artifact.Backlog{}, ""); err != nil {
		t.Errorf("empty backlog should be a silent no-op: %v", err)
	}
}

func TestSyncPartialFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req createRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Fields["summary"] == "Browse catalog" {
			http.Error(w, "field 'priority' is required", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(createResponse{Key: fmt.Sprintf("PROJ-%d", calls)})
	}))
	defer srv.Close()

	backlog := testBacklog()
	report, err := clientFor(srv).Sync(context.Background(), backlog, "")
	if err != nil {
		t.Fatalf("partial failure must not fail the sync: %v", err)
	}

	failed := backlog.Epics[0].Stories[0]
	if failed.SyncState != artifact.SyncFailed {
		t.Errorf("failed story state = %q", failed.SyncState)
	}
	if !strings.Contains(failed.SyncError, "400") {
		t.Errorf("failed story error = %q", failed.SyncError)
	}

	ok := backlog.Epics[0].Stories[1]
	if ok.SyncState != artifact.SyncSynced {
		t.Errorf("sibling story state = %q", ok.SyncState)
	}
	if report.Failed != 1 || report.StoriesCreated != 1 || report.EpicsCreated != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Notes) != 1 {
		t.Errorf("notes = %v", report.Notes)
	}
}

func TestSyncRetriesTransientFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(createResponse{Key: "PROJ-1"})
	}))
	defer srv.Close()

	backlog := &artifact.Backlog{Epics: []artifact.Epic{{Title: "Only epic", Description: "d"}}}
	report, err := clientFor(srv).Sync(context.Background(), backlog, "")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want one retry", calls)
	}
	if report.EpicsCreated != 1 {
		t.Errorf("report = %+v", report)
	}
	if backlog.Epics[0].SyncState != artifact.SyncSynced {
		t.Errorf("epic state = %q", backlog.Epics[0].SyncState)
	}
}

func TestSyncEpicFailureStillCreatesStories(t *testing.T) {
	var issues []recordedIssue
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		json.NewDecoder(r.Body).Decode(&req)
		issueType := req.Fields["issuetype"].(map[string]any)["name"].(string)
		if issueType == "Epic" {
			http.Error(w, "epic type disabled", http.StatusBadRequest)
			return
		}
		rec := recordedIssue{Summary: req.Fields["summary"].(string), IssueType: issueType}
		if parent, ok := req.Fields["parent"].(map[string]any); ok {
			rec.Parent = parent["key"].(string)
		}
		issues = append(issues, rec)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(createResponse{Key: fmt.Sprintf("PROJ-%d", len(issues))})
	}))
	defer srv.Close()

	backlog := testBacklog()
	report, err := clientFor(srv).Sync(context.Background(), backlog, "")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if backlog.Epics[0].SyncState != artifact.SyncFailed {
		t.Errorf("epic state = %q", backlog.Epics[0].SyncState)
	}
	if len(issues) != 2 {
		t.Fatalf("stories created = %d", len(issues))
	}
	for _, story := range issues {
		if story.Parent != "" {
			t.Errorf("story %q should be unlinked, parent = %q", story.Summary, story.Parent)
		}
	}
	if report.Failed != 1 || report.StoriesCreated != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestSyncProjectKeyOverride(t *testing.T) {
	var gotProject string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotProject = req.Fields["project"].(map[string]any)["key"].(string)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(createResponse{Key: "OVR-1"})
	}))
	defer srv.Close()

	backlog := &artifact.Backlog{Epics: []artifact.Epic{{Title: "e", Description: "d"}}}
	if _, err := clientFor(srv).Sync(context.Background(), backlog, "OVR"); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if gotProject != "OVR" {
		t.Errorf("project = %q, want override", gotProject)
	}
}

func TestSyncUsesConfiguredIssueTypes(t *testing.T) {
	var issues []recordedIssue
	srv := issueServer(t, &issues)
	defer srv.Close()

	cfg := config.JiraConfig{
		Server:         srv.URL,
		Username:       "dev@example.com",
		APIToken:       "token",
		ProjectKey:     "PROJ",
		EpicIssueType:  "Initiative",
		StoryIssueType: "Task",
	}
	c := NewClient(cfg, config.RetryConfig{MaxAttempts: 1},
		WithHTTPClient(srv.Client()),
		withSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }))

	if _, err := c.Sync(context.Background(), testBacklog(), ""); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(issues) != 3 {
		t.Fatalf("issues = %d", len(issues))
	}
	if issues[0].IssueType != "Initiative" {
		t.Errorf("epic issue type = %q, want configured name", issues[0].IssueType)
	}
	for _, issue := range issues[1:] {
		if issue.IssueType != "Task" {
			t.Errorf("story issue type = %q, want configured name", issue.IssueType)
		}
	}
}

func TestNewClientTimeoutFromConfig(t *testing.T) {
	c := NewClient(config.JiraConfig{TimeoutSeconds: 7}, config.RetryConfig{})
	if c.client.Timeout != 7*time.Second {
		t.Errorf("timeout = %s, want 7s", c.client.Timeout)
	}

	// Zero config keeps a sane default rather than an unbounded client.
	c = NewClient(config.JiraConfig{}, config.RetryConfig{})
	if c.client.Timeout != 30*time.Second {
		t.Errorf("default timeout = %s, want 30s", c.client.Timeout)
	}
}
