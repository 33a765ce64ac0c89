// Package orchestrator drives the three-stage pipeline for a run: business
// analysis, technical design, backlog generation, then post-processing
// (diagram rendering, output files, optional Jira sync). Stages run
// sequentially; a stage failure halts everything downstream, while
// post-processing failures only downgrade the run to completed with
// warnings.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/khushiGit123/jira-gen/internal/artifact"
	"github.com/khushiGit123/jira-gen/internal/config"
	"github.com/khushiGit123/jira-gen/internal/diagram"
	"github.com/khushiGit123/jira-gen/internal/errors"
	"github.com/khushiGit123/jira-gen/internal/jira"
	"github.com/khushiGit123/jira-gen/internal/logging"
	"github.com/khushiGit123/jira-gen/internal/run"
	"github.com/khushiGit123/jira-gen/internal/stage"
)

// Syncer pushes a backlog to the remote tracker. *jira.Client implements it.
type Syncer interface {
	Sync(ctx context.Context, backlog *artifact.Backlog, projectKey string) (jira.Report, error)
}

// Orchestrator executes runs against a shared store.
type Orchestrator struct {
	cfg      *config.Config
	runner   *stage.Runner
	renderer *diagram.Renderer
	syncer   Syncer
	store    *run.Store
	logger   *logging.Logger

	mu        sync.Mutex
	cancelled map[string]bool
}

// New creates an Orchestrator.
func New(cfg *config.Config, runner *stage.Runner, syncer Syncer, store *run.Store, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Orchestrator{
		cfg:       cfg,
		runner:    runner,
		renderer:  diagram.NewRenderer(logger),
		syncer:    syncer,
		store:     store,
		logger:    logger,
		cancelled: make(map[string]bool),
	}
}

// Start validates a submission and registers a new run. Missing backend
// credentials or empty requirements reject the submission before any run
// exists.
func (o *Orchestrator) Start(input run.UserInput) (run.RunState, error) {
	if strings.TrimSpace(input.Requirements) == "" {
		return run.RunState{}, errors.NewValidationError("requirements text is empty").WithField("requirements")
	}
	if o.cfg.Backend.APIKey == "" {
		return run.RunState{}, errors.NewConfigurationError("backend API key is not configured").WithKey("backend.api_key")
	}
	state := o.store.Create(input)
	o.logger.WithRun(state.ID).Info("run created")
	return state, nil
}

// Cancel requests cancellation of a run. The pipeline checks the flag
// between stages; an in-flight stage finishes first.
func (o *Orchestrator) Cancel(id string) error {
	if _, err := o.store.Get(id); err != nil {
		return err
	}
	o.mu.Lock()
	o.cancelled[id] = true
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) cancelRequested(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled[id]
}

func (o *Orchestrator) clearCancel(id string) {
	o.mu.Lock()
	delete(o.cancelled, id)
	o.mu.Unlock()
}

// Execute runs the full pipeline for a previously started run and blocks
// until the run reaches a terminal status. The returned state is the
// terminal snapshot; the error is non-nil only when the run id is unknown.
func (o *Orchestrator) Execute(ctx context.Context, id string) (run.RunState, error) {
	state, err := o.store.Get(id)
	if err != nil {
		return run.RunState{}, err
	}
	defer o.clearCancel(id)
	logger := o.logger.WithRun(id)

	input := state.Input
	var (
		reqs    *artifact.BusinessRequirements
		design  *artifact.TechnicalDesign
		backlog *artifact.Backlog
	)

	steps := []struct {
		status run.Status
		spec   func() stage.Spec
		accept func(*artifact.Document)
	}{
		{
			status: run.StatusAnalyzingRequirements,
			spec:   func() stage.Spec { return stage.BusinessAnalyst(o.cfg.Stages.BusinessAnalyst, input) },
			accept: func(doc *artifact.Document) { reqs = doc.Requirements },
		},
		{
			status: run.StatusDesigningArchitecture,
			spec:   func() stage.Spec { return stage.Architect(o.cfg.Stages.Architect, input, reqs) },
			accept: func(doc *artifact.Document) { design = doc.Design },
		},
		{
			status: run.StatusGeneratingBacklog,
			spec:   func() stage.Spec { return stage.ProjectManager(o.cfg.Stages.ProjectManager, input, reqs, design) },
			accept: func(doc *artifact.Document) { backlog = doc.Backlog },
		},
	}

	for _, step := range steps {
		if ctx.Err() != nil || o.cancelRequested(id) {
			logger.Info("run cancelled")
			return o.finish(id, run.StatusCancelled, "Run cancelled before completion.")
		}

		o.store.Update(id, func(r *run.RunState) {
			r.Status = step.status
		})

		result := o.runner.Run(ctx, step.spec())
		// The pipeline keeps writing to the document during post-processing,
		// so the store only ever holds copies the pipeline no longer touches.
		o.store.Update(id, func(r *run.RunState) {
			stored := result
			stored.Document = result.Document.Clone()
			r.Stages = append(r.Stages, stored)
		})

		if result.Status != run.StageSucceeded {
			logger.Error("stage failed, halting pipeline", "stage", result.Stage)
			return o.finish(id, run.StatusFailed,
				fmt.Sprintf("Run failed at stage %s: %s", result.Stage, result.Error))
		}
		step.accept(result.Document)
	}

	warnings, syncNote := o.postProcess(ctx, input, reqs, design, backlog, logger)

	status := run.StatusCompleted
	if len(warnings) > 0 {
		status = run.StatusCompletedWithWarnings
	}
	summary := o.summarize(reqs, design, backlog, warnings, syncNote)
	o.store.Update(id, func(r *run.RunState) {
		r.Warnings = append(r.Warnings, warnings...)
		// Re-store the documents so rendered diagrams and sync state reach
		// readers; the pipeline is done writing to them at this point.
		for i := range r.Stages {
			doc := r.Stages[i].Document
			if doc == nil {
				continue
			}
			switch doc.Kind {
			case artifact.KindDesign:
				doc.Design = design.Clone()
			case artifact.KindBacklog:
				doc.Backlog = backlog.Clone()
			}
		}
	})
	return o.finish(id, status, summary)
}

// postProcess runs the best-effort tail of the pipeline. Every failure here
// becomes a warning; none of it can fail the run. A sync skipped for lack of
// Jira config is surfaced both as a warning and as the sync note carried
// into the summary, so the caller can tell a skip apart from a sync failure.
func (o *Orchestrator) postProcess(ctx context.Context, input run.UserInput, reqs *artifact.BusinessRequirements, design *artifact.TechnicalDesign, backlog *artifact.Backlog, logger *logging.Logger) ([]string, string) {
	var warnings []string
	var syncNote string

	kinds := o.diagramKinds()
	texts, reports := o.renderer.RenderAll(design, kinds)
	if design.Diagrams == nil {
		design.Diagrams = make(map[artifact.DiagramKind]string, len(texts))
	}
	for kind, text := range texts {
		design.Diagrams[kind] = text
	}
	for kind, report := range reports {
		if !report.Valid() {
			warnings = append(warnings, fmt.Sprintf("diagram %s: %s", kind, report))
		}
	}

	if o.syncer != nil {
		report, err := o.syncer.Sync(ctx, backlog, input.JiraProjectKey)
		switch {
		case errors.Is(err, errors.ErrSyncSkipped):
			if len(report.Notes) > 0 {
				syncNote = report.Notes[0]
			} else {
				syncNote = "jira sync skipped"
			}
			warnings = append(warnings, syncNote)
		case err != nil:
			warnings = append(warnings, fmt.Sprintf("jira sync: %v", err))
		default:
			logger.Info("jira sync finished", "summary", report.Summary(), "failed", report.Failed)
			for _, note := range report.Notes {
				warnings = append(warnings, fmt.Sprintf("jira sync: %s", note))
			}
		}
	}

	if o.cfg.Output.Dir != "" {
		for _, err := range writeOutputs(o.cfg.Output.Dir, reqs, design, backlog) {
			warnings = append(warnings, fmt.Sprintf("writing outputs: %v", err))
		}
	}

	return warnings, syncNote
}

func (o *Orchestrator) diagramKinds() []artifact.DiagramKind {
	if len(o.cfg.Diagrams.Kinds) == 0 {
		return artifact.AllDiagramKinds()
	}
	kinds := make([]artifact.DiagramKind, 0, len(o.cfg.Diagrams.Kinds))
	for _, k := range o.cfg.Diagrams.Kinds {
		kinds = append(kinds, artifact.DiagramKind(k))
	}
	return kinds
}

// finish moves the run to a terminal status and returns the final snapshot.
func (o *Orchestrator) finish(id string, status run.Status, summary string) (run.RunState, error) {
	return o.store.Update(id, func(r *run.RunState) {
		r.Status = status
		r.Summary = summary
	})
}

func (o *Orchestrator) summarize(reqs *artifact.BusinessRequirements, design *artifact.TechnicalDesign, backlog *artifact.Backlog, warnings []string, syncNote string) string {
	parts := []string{
		fmt.Sprintf("Identified %d functional and %d non-functional requirements",
			len(reqs.FunctionalRequirements), len(reqs.NonFunctionalRequirements)),
		fmt.Sprintf("designed %d components", len(design.Components)),
		fmt.Sprintf("planned %d epics with %d stories", len(backlog.Epics), backlog.StoryCount()),
	}

	summary := strings.Join(parts, ", ") + "."
	if synced := countSynced(backlog); synced > 0 {
		summary += fmt.Sprintf(" Synced %d items to Jira.", synced)
	}
	if syncNote != "" {
		summary += " " + capitalizeFirst(syncNote) + "."
	}
	if len(warnings) > 0 {
		summary += fmt.Sprintf(" Completed with %d warnings.", len(warnings))
	}
	return summary
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func countSynced(backlog *artifact.Backlog) int {
	n := 0
	for _, epic := range backlog.Epics {
		if epic.SyncState == artifact.SyncSynced {
			n++
		}
		for _, story := range epic.Stories {
			if story.SyncState == artifact.SyncSynced {
				n++
			}
		}
	}
	return n
}
