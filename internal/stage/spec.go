// Package stage runs the role-specialized reasoning stages of the pipeline.
// Each stage is described by a Spec carrying its persona and an assembled
// prompt; a Spec is built only from the documents that stage is entitled to
// see, enforced by the constructor signatures.
package stage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/khushiGit123/jira-gen/internal/artifact"
	"github.com/khushiGit123/jira-gen/internal/config"
	"github.com/khushiGit123/jira-gen/internal/run"
)

// Stage names as recorded in StageResults.
const (
	NameBusinessAnalyst = "business_analyst"
	NameArchitect       = "architect"
	NameProjectManager  = "project_manager"
)

// Spec is one fully-assembled stage invocation.
type Spec struct {
	Name    string
	Kind    artifact.Kind
	Role    string
	Goal    string
	Timeout time.Duration
	Prompt  string
}

// BusinessAnalyst builds the requirements-analysis stage. It sees only the
// user's submission.
func BusinessAnalyst(cfg config.StageConfig, input run.UserInput) Spec {
	var sb strings.Builder
	writePersona(&sb, cfg)
	writeInput(&sb, input)
	sb.WriteString("\nAnalyze the business requirement above. Identify stakeholders, ")
	sb.WriteString("functional requirements, non-functional requirements, business rules, ")
	sb.WriteString("and assumptions or constraints.\n")
	writeSchema(&sb, requirementsSchema)

	return Spec{
		Name:    NameBusinessAnalyst,
		Kind:    artifact.KindRequirements,
		Role:    cfg.Role,
		Goal:    cfg.Goal,
		Timeout: cfg.Timeout(),
		Prompt:  sb.String(),
	}
}

// Architect builds the technical-design stage. It sees the user's submission
// and the validated business requirements, nothing else.
func Architect(cfg config.StageConfig, input run.UserInput, reqs *artifact.BusinessRequirements) Spec {
	var sb strings.Builder
	writePersona(&sb, cfg)
	writeInput(&sb, input)
	writeDocument(&sb, "Business requirements analysis", reqs)
	sb.WriteString("\nDesign the system architecture for the requirements above. ")
	sb.WriteString("Name the components and their responsibilities, justify technology ")
	sb.WriteString("choices, and include Mermaid diagrams for the architecture and the ")
	sb.WriteString("main request sequence.\n")
	writeSchema(&sb, designSchema)

	return Spec{
		Name:    NameArchitect,
		Kind:    artifact.KindDesign,
		Role:    cfg.Role,
		Goal:    cfg.Goal,
		Timeout: cfg.Timeout(),
		Prompt:  sb.String(),
	}
}

// ProjectManager builds the backlog-generation stage. It sees the user's
// submission, the business requirements, and the technical design.
func ProjectManager(cfg config.StageConfig, input run.UserInput, reqs *artifact.BusinessRequirements, design *artifact.TechnicalDesign) Spec {
	var sb strings.Builder
	writePersona(&sb, cfg)
	writeInput(&sb, input)
	writeDocument(&sb, "Business requirements analysis", reqs)
	writeDocument(&sb, "Technical design", design)
	sb.WriteString("\nBreak the work above into a delivery backlog: epics containing ")
	sb.WriteString("user stories, each story with a title, description, and concrete ")
	sb.WriteString("acceptance criteria.\n")
	writeSchema(&sb, backlogSchema)

	return Spec{
		Name:    NameProjectManager,
		Kind:    artifact.KindBacklog,
		Role:    cfg.Role,
		Goal:    cfg.Goal,
		Timeout: cfg.Timeout(),
		Prompt:  sb.String(),
	}
}

func writePersona(sb *strings.Builder, cfg config.StageConfig) {
	if cfg.Backstory != "" {
		sb.WriteString(cfg.Backstory)
		sb.WriteString("\n\n")
	}
}

func writeInput(sb *strings.Builder, input run.UserInput) {
	sb.WriteString("## Business requirement\n\n")
	sb.WriteString(strings.TrimSpace(input.Requirements))
	sb.WriteString("\n")
	if input.TargetUsers != "" {
		fmt.Fprintf(sb, "\nTarget users: %s\n", input.TargetUsers)
	}
	if input.Timeline != "" {
		fmt.Fprintf(sb, "Timeline: %s\n", input.Timeline)
	}
	if input.Budget != "" {
		fmt.Fprintf(sb, "Budget: %s\n", input.Budget)
	}
}

// writeDocument embeds an upstream artifact as indented JSON so the model
// sees exactly the validated structure, not a prose paraphrase.
func writeDocument(sb *strings.Builder, title string, doc any) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintf(sb, "\n## %s\n\n```json\n%s\n```\n", title, data)
}

func writeSchema(sb *strings.Builder, schema string) {
	sb.WriteString("\nRespond with a single fenced ```json block matching this shape exactly:\n\n")
	sb.WriteString("```json\n")
	sb.WriteString(schema)
	sb.WriteString("\n```\n")
}

const requirementsSchema = `{
  "stakeholders": ["..."],
  "functional_requirements": [
    {"id": "FR-1", "description": "...", "priority": "High"}
  ],
  "non_functional_requirements": [
    {"id": "NFR-1", "description": "...", "priority": "Medium"}
  ],
  "business_rules": ["..."],
  "assumptions": ["..."],
  "constraints": ["..."]
}`

const designSchema = `{
  "architecture_summary": "...",
  "components": [
    {"name": "...", "description": "...", "responsibilities": ["..."]}
  ],
  "technology_choices": [
    {"area": "...", "choice": "...", "rationale": "..."}
  ],
  "diagrams": {
    "architecture": "graph TD\n  ...",
    "sequence": "sequenceDiagram\n  ..."
  }
}`

const backlogSchema = `{
  "epics": [
    {
      "title": "...",
      "description": "...",
      "stories": [
        {
          "title": "...",
          "description": "...",
          "acceptance_criteria": ["..."]
        }
      ]
    }
  ]
}`
