package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/khushiGit123/jira-gen/internal/artifact"
)

// Output file names, one per pipeline artifact.
const (
	RequirementsFile = "business_requirements.md"
	DesignFile       = "technical_design.md"
	BacklogFile      = "jira_artifacts.json"
)

// writeOutputs persists the run artifacts to the output directory. Each file
// is attempted independently; the returned errors feed the run's warnings.
func writeOutputs(dir string, reqs *artifact.BusinessRequirements, design *artifact.TechnicalDesign, backlog *artifact.Backlog) []error {
	var errs []error
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return []error{fmt.Errorf("creating output dir: %w", err)}
	}

	reqsDoc := &artifact.Document{Kind: artifact.KindRequirements, Requirements: reqs}
	if err := os.WriteFile(filepath.Join(dir, RequirementsFile), []byte(reqsDoc.ToMarkdown()), 0o644); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", RequirementsFile, err))
	}

	designDoc := &artifact.Document{Kind: artifact.KindDesign, Design: design}
	if err := os.WriteFile(filepath.Join(dir, DesignFile), []byte(designDoc.ToMarkdown()), 0o644); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", DesignFile, err))
	}

	backlogDoc := &artifact.Document{Kind: artifact.KindBacklog, Backlog: backlog}
	data, err := backlogDoc.ToJSON()
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", BacklogFile, err))
	} else if err := os.WriteFile(filepath.Join(dir, BacklogFile), data, 0o644); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", BacklogFile, err))
	}

	return errs
}
