package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/khushiGit123/jira-gen/internal/artifact"
	"github.com/khushiGit123/jira-gen/internal/backend"
	"github.com/khushiGit123/jira-gen/internal/config"
	"github.com/khushiGit123/jira-gen/internal/errors"
	"github.com/khushiGit123/jira-gen/internal/jira"
	"github.com/khushiGit123/jira-gen/internal/run"
	"github.com/khushiGit123/jira-gen/internal/stage"
)

const (
	requirementsResponse = "```json\n" + `{
  "stakeholders": ["Owner", "Customer"],
  "functional_requirements": [
    {"id": "FR-1", "description": "Browse catalog", "priority": "High"},
    {"id": "FR-2", "description": "Place orders", "priority": "High"}
  ],
  "non_functional_requirements": [
    {"id": "NFR-1", "description": "Fast page loads", "priority": "Medium"}
  ]
}` + "\n```"

	designResponse = "```json\n" + `{
  "architecture_summary": "Three-tier web application",
  "components": [
    {"name": "Web Frontend", "description": "customer UI"},
    {"name": "Order API", "description": "business logic"}
  ],
  "technology_choices": [
    {"area": "backend", "choice": "Go", "rationale": "simple deployment"}
  ]
}` + "\n```"

	backlogResponse = "```json\n" + `{
  "epics": [
    {
      "title": "Storefront",
      "description": "customer-facing features",
      "stories": [
        {"title": "Browse catalog", "description": "as a customer", "acceptance_criteria": ["products visible"]},
        {"title": "Place order", "description": "as a customer", "acceptance_criteria": ["order persisted"]}
      ]
    }
  ]
}` + "\n```"
)

type fakeSyncer struct {
	report jira.Report
	err    error
	calls  int
}

func (f *fakeSyncer) Sync(ctx context.Context, backlog *artifact.Backlog, projectKey string) (jira.Report, error) {
	f.calls++
	if f.err == nil {
		for i := range backlog.Epics {
			backlog.Epics[i].SyncState = artifact.SyncSynced
			backlog.Epics[i].RemoteID = "PROJ-1"
			for j := range backlog.Epics[i].Stories {
				backlog.Epics[i].Stories[j].SyncState = artifact.SyncSynced
				backlog.Epics[i].Stories[j].RemoteID = "PROJ-2"
			}
		}
	}
	return f.report, f.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Backend.APIKey = "test-key"
	cfg.Output.Dir = filepath.Join(t.TempDir(), "outputs")
	return cfg
}

func newOrchestrator(t *testing.T, cfg *config.Config, b backend.Backend, syncer Syncer) (*Orchestrator, *run.Store) {
	t.Helper()
	store := run.NewStore()
	runner := stage.NewRunner(b, cfg.Retry)
	return New(cfg, runner, syncer, store, nil), store
}

func happyBackend() *backend.Scripted {
	return backend.NewScripted().
		Respond(requirementsResponse).
		Respond(designResponse).
		Respond(backlogResponse)
}

func TestExecuteHappyPath(t *testing.T) {
	cfg := testConfig(t)
	syncer := &fakeSyncer{report: jira.Report{EpicsCreated: 1, StoriesCreated: 2}}
	o, _ := newOrchestrator(t, cfg, happyBackend(), syncer)

	state, err := o.Start(run.UserInput{Requirements: "online shop for a bakery"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	final, err := o.Execute(context.Background(), state.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if final.Status != run.StatusCompleted {
		t.Fatalf("status = %q, warnings = %v", final.Status, final.Warnings)
	}
	if len(final.Stages) != 3 {
		t.Fatalf("stages = %d", len(final.Stages))
	}
	wantOrder := []string{stage.NameBusinessAnalyst, stage.NameArchitect, stage.NameProjectManager}
	for i, want := range wantOrder {
		if final.Stages[i].Stage != want {
			t.Errorf("stage[%d] = %q, want %q", i, final.Stages[i].Stage, want)
		}
		if final.Stages[i].Status != run.StageSucceeded {
			t.Errorf("stage[%d] status = %q", i, final.Stages[i].Status)
		}
	}
	if syncer.calls != 1 {
		t.Errorf("sync calls = %d", syncer.calls)
	}
	if !strings.Contains(final.Summary, "2 functional") || !strings.Contains(final.Summary, "1 epics with 2 stories") {
		t.Errorf("summary = %q", final.Summary)
	}
	if !strings.Contains(final.Summary, "Synced 3 items") {
		t.Errorf("summary missing sync count: %q", final.Summary)
	}

	design := final.Stages[1].Document.Design
	for _, kind := range artifact.AllDiagramKinds() {
		if strings.TrimSpace(design.Diagrams[kind]) == "" {
			t.Errorf("diagram %s not rendered", kind)
		}
	}

	for _, name := range []string{RequirementsFile, DesignFile, BacklogFile} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name)); err != nil {
			t.Errorf("output file %s: %v", name, err)
		}
	}
}

func TestExecuteStageFailureHaltsPipeline(t *testing.T) {
	cfg := testConfig(t)
	b := backend.NewScripted().
		Respond(requirementsResponse).
		Respond("no structure here at all").
		Respond(backlogResponse)
	o, _ := newOrchestrator(t, cfg, b, nil)

	state, err := o.Start(run.UserInput{Requirements: "x"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	final, err := o.Execute(context.Background(), state.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if final.Status != run.StatusFailed {
		t.Fatalf("status = %q", final.Status)
	}
	if len(final.Stages) != 2 {
		t.Errorf("stages = %d, downstream stage must not run", len(final.Stages))
	}
	if b.Calls() != 2 {
		t.Errorf("backend calls = %d", b.Calls())
	}
	if !strings.Contains(final.Summary, stage.NameArchitect) {
		t.Errorf("summary = %q", final.Summary)
	}
}

func TestStartRejectsMissingAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.APIKey = ""
	o, store := newOrchestrator(t, cfg, happyBackend(), nil)

	_, err := o.Start(run.UserInput{Requirements: "x"})
	if !errors.IsConfiguration(err) {
		t.Fatalf("err = %v, want configuration error", err)
	}
	if got := store.List(); len(got) != 0 {
		t.Errorf("rejected submission created %d runs", len(got))
	}
}

func TestStartRejectsEmptyRequirements(t *testing.T) {
	o, _ := newOrchestrator(t, testConfig(t), happyBackend(), nil)
	_, err := o.Start(run.UserInput{Requirements: "   "})
	if !errors.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestExecuteUnknownRun(t *testing.T) {
	o, _ := newOrchestrator(t, testConfig(t), happyBackend(), nil)
	if _, err := o.Execute(context.Background(), "missing"); !errors.Is(err, errors.ErrRunNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestExecuteCancelledBeforeStart(t *testing.T) {
	o, _ := newOrchestrator(t, testConfig(t), happyBackend(), nil)
	state, err := o.Start(run.UserInput{Requirements: "x"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Cancel(state.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	final, err := o.Execute(context.Background(), state.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if final.Status != run.StatusCancelled {
		t.Errorf("status = %q", final.Status)
	}
	if len(final.Stages) != 0 {
		t.Errorf("stages = %d, cancelled run must not execute stages", len(final.Stages))
	}
}

func TestExecuteContextCancellation(t *testing.T) {
	o, _ := newOrchestrator(t, testConfig(t), happyBackend(), nil)
	state, err := o.Start(run.UserInput{Requirements: "x"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	final, err := o.Execute(ctx, state.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if final.Status != run.StatusCancelled {
		t.Errorf("status = %q", final.Status)
	}
}

func TestCapitalizeFirst(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"a", "A"},
		{"remote sync skipped", "Remote sync skipped"},
		{"Already upper", "Already upper"},
		{"über alles", "Über alles"},
		{"日本語 note", "日本語 note"},
	}
	for _, tt := range tests {
		got := capitalizeFirst(tt.in)
		if got != tt.want {
			t.Errorf("capitalizeFirst(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("capitalizeFirst(%q) produced invalid UTF-8", tt.in)
		}
	}
}

// slowSyncer mutates the backlog one field at a time with pauses in between,
// modelling an in-flight Jira sync that a concurrent reader could observe.
type slowSyncer struct {
	step time.Duration
}

func (s *slowSyncer) Sync(ctx context.Context, backlog *artifact.Backlog, projectKey string) (jira.Report, error) {
	var report jira.Report
	for i := range backlog.Epics {
		epic := &backlog.Epics[i]
		epic.SyncState = artifact.SyncSubmitting
		time.Sleep(s.step)
		epic.RemoteID = "PROJ-1"
		epic.SyncState = artifact.SyncSynced
		report.EpicsCreated++
		for j := range epic.Stories {
			story := &epic.Stories[j]
			story.SyncState = artifact.SyncSubmitting
			time.Sleep(s.step)
			story.RemoteID = "PROJ-2"
			story.SyncState = artifact.SyncSynced
			report.StoriesCreated++
		}
	}
	return report, nil
}

func TestExecuteConcurrentReadsDuringSync(t *testing.T) {
	cfg := testConfig(t)
	o, store := newOrchestrator(t, cfg, happyBackend(), &slowSyncer{step: 2 * time.Millisecond})

	state, err := o.Start(run.UserInput{Requirements: "x"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Execute(context.Background(), state.ID)
	}()

	// Poll and serialize every document the whole time the run executes.
	// Stored documents must be stable copies, so this never observes a
	// mid-mutation artifact.
	for polling := true; polling; {
		select {
		case <-done:
			polling = false
		default:
		}
		snap, err := store.Get(state.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		for kind, doc := range snap.Documents() {
			if _, err := doc.ToJSON(); err != nil {
				t.Fatalf("ToJSON(%s): %v", kind, err)
			}
		}
	}

	final, err := store.Get(state.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.Status != run.StatusCompleted {
		t.Fatalf("status = %q, warnings = %v", final.Status, final.Warnings)
	}
	epic := final.Stages[2].Document.Backlog.Epics[0]
	if epic.RemoteID != "PROJ-1" || epic.SyncState != artifact.SyncSynced {
		t.Errorf("terminal snapshot missing sync result: %+v", epic)
	}
}

func TestExecuteTransportExhaustionFailsRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retry.BackoffBaseMs = 0
	b := backend.NewScripted().
		Respond(requirementsResponse).
		Fail(errors.NewTransportError("gateway timeout", nil).WithStatusCode(504)).
		Fail(errors.NewTransportError("gateway timeout", nil).WithStatusCode(504)).
		Fail(errors.NewTransportError("gateway timeout", nil).WithStatusCode(504))
	o, _ := newOrchestrator(t, cfg, b, nil)

	state, err := o.Start(run.UserInput{Requirements: "x"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	final, err := o.Execute(context.Background(), state.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if final.Status != run.StatusFailed {
		t.Fatalf("status = %q", final.Status)
	}
	if len(final.Stages) != 2 {
		t.Fatalf("stages = %d, want analyst and architect only", len(final.Stages))
	}
	if got := final.Stages[0]; got.Status != run.StageSucceeded || got.Document == nil {
		t.Errorf("first stage not inspectable: %+v", got)
	}
	second := final.Stages[1]
	if second.Status != run.StageFailed || second.Attempts != cfg.Retry.MaxAttempts {
		t.Errorf("second stage = %+v", second)
	}
	if _, ok := final.StageNamed(stage.NameProjectManager); ok {
		t.Error("third stage should never have run")
	}
	if !strings.Contains(final.Summary, stage.NameArchitect) {
		t.Errorf("summary does not name the failing stage: %q", final.Summary)
	}
}

func TestExecuteSyncSkippedCompletesWithWarnings(t *testing.T) {
	cfg := testConfig(t)
	syncer := jira.NewClient(config.JiraConfig{}, cfg.Retry)
	o, _ := newOrchestrator(t, cfg, happyBackend(), syncer)

	state, err := o.Start(run.UserInput{Requirements: "x"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	final, err := o.Execute(context.Background(), state.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if final.Status != run.StatusCompletedWithWarnings {
		t.Fatalf("status = %q, want %q; warnings = %v", final.Status, run.StatusCompletedWithWarnings, final.Warnings)
	}
	found := false
	for _, w := range final.Warnings {
		if strings.Contains(strings.ToLower(w), "sync skipped") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings missing skip note: %v", final.Warnings)
	}
	if !strings.Contains(strings.ToLower(final.Summary), "sync skipped") {
		t.Errorf("summary missing skip note: %q", final.Summary)
	}
}

func TestExecuteSyncFailureDowngradesToWarnings(t *testing.T) {
	cfg := testConfig(t)
	syncer := &fakeSyncer{err: errors.NewSyncError("jira unreachable", nil)}
	o, _ := newOrchestrator(t, cfg, happyBackend(), syncer)

	state, err := o.Start(run.UserInput{Requirements: "x"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	final, err := o.Execute(context.Background(), state.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if final.Status != run.StatusCompletedWithWarnings {
		t.Fatalf("status = %q", final.Status)
	}
	if len(final.Warnings) == 0 || !strings.Contains(final.Warnings[0], "jira sync") {
		t.Errorf("warnings = %v", final.Warnings)
	}
	if len(final.Stages) != 3 {
		t.Errorf("stages = %d, sync failure must not lose stage results", len(final.Stages))
	}
}

func TestExecuteLatestPointerAfterRun(t *testing.T) {
	cfg := testConfig(t)
	o, store := newOrchestrator(t, cfg, happyBackend(), nil)

	state, err := o.Start(run.UserInput{Requirements: "x"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := store.Latest(); !errors.Is(err, errors.ErrRunNotFound) {
		t.Error("latest pointer set before terminal state")
	}

	if _, err := o.Execute(context.Background(), state.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	latest, err := store.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != state.ID {
		t.Errorf("latest = %q", latest.ID)
	}
}
