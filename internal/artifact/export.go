package artifact

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ToJSON serializes the document's machine-readable form. It round-trips:
// unmarshaling the output and re-marshaling yields field-for-field equal
// structures.
func (d *Document) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// FromJSON parses a document previously produced by ToJSON.
func FromJSON(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing document JSON: %w", err)
	}
	return &doc, nil
}

// ToYAML serializes the document as YAML.
func (d *Document) ToYAML() ([]byte, error) {
	return yaml.Marshal(d)
}

// ToMarkdown renders the document's human-readable form. The markdown
// output is itself parseable: feeding it back through Parse recovers the
// same field values (heuristically for prose sections, exactly for lists).
func (d *Document) ToMarkdown() string {
	switch d.Kind {
	case KindRequirements:
		return requirementsMarkdown(d.Requirements)
	case KindDesign:
		return designMarkdown(d.Design)
	case KindBacklog:
		return backlogMarkdown(d.Backlog)
	default:
		return ""
	}
}

func requirementsMarkdown(br *BusinessRequirements) string {
	if br == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("# Business Requirements\n\n")

	sb.WriteString("## Stakeholders\n\n")
	for _, s := range br.Stakeholders {
		fmt.Fprintf(&sb, "- %s\n", s)
	}

	sb.WriteString("\n## Functional Requirements\n\n")
	for _, r := range br.FunctionalRequirements {
		fmt.Fprintf(&sb, "- %s: %s (Priority: %s)\n", r.ID, r.Description, orDefault(r.Priority, "Medium"))
	}

	if len(br.NonFunctionalRequirements) > 0 {
		sb.WriteString("\n## Non-Functional Requirements\n\n")
		for _, r := range br.NonFunctionalRequirements {
			fmt.Fprintf(&sb, "- %s: %s (Priority: %s)\n", r.ID, r.Description, orDefault(r.Priority, "Medium"))
		}
	}
	if len(br.BusinessRules) > 0 {
		sb.WriteString("\n## Business Rules\n\n")
		for _, r := range br.BusinessRules {
			fmt.Fprintf(&sb, "- %s\n", r)
		}
	}
	if len(br.Assumptions) > 0 {
		sb.WriteString("\n## Assumptions\n\n")
		for _, a := range br.Assumptions {
			fmt.Fprintf(&sb, "- %s\n", a)
		}
	}
	if len(br.Constraints) > 0 {
		sb.WriteString("\n## Constraints\n\n")
		for _, c := range br.Constraints {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}
	return sb.String()
}

func designMarkdown(td *TechnicalDesign) string {
	if td == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("# Technical Design\n\n")

	sb.WriteString("## Architecture Summary\n\n")
	sb.WriteString(td.ArchitectureSummary)
	sb.WriteString("\n")

	if len(td.Components) > 0 {
		sb.WriteString("\n## Components\n\n")
		for _, c := range td.Components {
			if c.Description != "" {
				fmt.Fprintf(&sb, "- %s: %s\n", c.Name, c.Description)
			} else {
				fmt.Fprintf(&sb, "- %s\n", c.Name)
			}
		}
	}
	if len(td.TechnologyChoices) > 0 {
		sb.WriteString("\n## Technology Choices\n\n")
		for _, tc := range td.TechnologyChoices {
			line := fmt.Sprintf("- %s: %s", tc.Area, tc.Choice)
			if tc.Rationale != "" {
				line += " (" + tc.Rationale + ")"
			}
			sb.WriteString(line + "\n")
		}
	}

	// Diagrams render in a fixed kind order so output is deterministic.
	for _, kind := range AllDiagramKinds() {
		body, ok := td.Diagrams[kind]
		if !ok || body == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n## Diagram: %s\n\n```mermaid\n%s\n```\n", kind, body)
	}
	return sb.String()
}

func backlogMarkdown(bl *Backlog) string {
	if bl == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("# Backlog\n\n")

	for _, e := range bl.Epics {
		fmt.Fprintf(&sb, "## Epic: %s\n\n", e.Title)
		if e.Description != "" {
			sb.WriteString(e.Description + "\n\n")
		}
		if e.RemoteID != "" {
			fmt.Fprintf(&sb, "Remote: %s\n\n", e.RemoteID)
		}
		for _, s := range e.Stories {
			fmt.Fprintf(&sb, "### Story: %s\n\n", s.Title)
			if s.Description != "" {
				sb.WriteString(s.Description + "\n\n")
			}
			if s.RemoteID != "" {
				fmt.Fprintf(&sb, "Remote: %s\n\n", s.RemoteID)
			}
			sb.WriteString("Acceptance Criteria:\n\n")
			for _, ac := range s.AcceptanceCriteria {
				fmt.Fprintf(&sb, "- %s\n", ac)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
