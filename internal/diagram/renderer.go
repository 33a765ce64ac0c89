// Package diagram generates and validates Mermaid diagram text for technical
// designs. Rendering is presentational: it never fails the pipeline. Every
// render returns best-effort text plus a report of any syntax issues that
// survived the repair pass.
package diagram

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/khushiGit123/jira-gen/internal/artifact"
	"github.com/khushiGit123/jira-gen/internal/logging"
)

// Renderer produces Mermaid text for each supported diagram kind.
type Renderer struct {
	logger *logging.Logger
}

// NewRenderer creates a Renderer. A nil logger falls back to a no-op logger.
func NewRenderer(logger *logging.Logger) *Renderer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Renderer{logger: logger}
}

// Render returns diagram text for the given kind plus a validation report.
//
// If the design already carries model-generated text for the kind, that text
// is linted; on issues, one automatic repair pass runs and the result is
// re-linted. Remaining issues are reported as non-fatal warnings, never as
// errors. If the design has no text for the kind, a diagram is generated
// from the component list; a design with zero components still yields a
// minimal valid diagram.
func (r *Renderer) Render(design *artifact.TechnicalDesign, kind artifact.DiagramKind) (string, Report) {
	text := ""
	if design != nil && design.Diagrams != nil {
		text = strings.TrimSpace(design.Diagrams[kind])
	}
	if text == "" {
		text = r.generate(design, kind)
	}

	issues := Lint(text, kind)
	if len(issues) == 0 {
		return text, Report{}
	}

	repaired := Repair(text, kind, issues)
	remaining := Lint(repaired, kind)
	r.logger.Debug("diagram repair pass",
		"kind", string(kind), "issues", len(issues), "remaining", len(remaining))

	return repaired, Report{Issues: remaining, Repaired: true}
}

// RenderAll renders every requested kind independently, so one kind's issues
// never affect another. An empty kinds slice means all supported kinds.
func (r *Renderer) RenderAll(design *artifact.TechnicalDesign, kinds []artifact.DiagramKind) (map[artifact.DiagramKind]string, map[artifact.DiagramKind]Report) {
	if len(kinds) == 0 {
		kinds = artifact.AllDiagramKinds()
	}

	texts := make(map[artifact.DiagramKind]string, len(kinds))
	reports := make(map[artifact.DiagramKind]Report, len(kinds))
	for _, kind := range kinds {
		text, report := r.Render(design, kind)
		texts[kind] = text
		reports[kind] = report
	}
	return texts, reports
}

// generate builds a diagram of the given kind from the design's components.
func (r *Renderer) generate(design *artifact.TechnicalDesign, kind artifact.DiagramKind) string {
	var components []artifact.Component
	if design != nil {
		components = design.Components
	}

	switch kind {
	case artifact.DiagramSequence:
		return generateSequence(components)
	case artifact.DiagramDataFlow:
		return generateDataFlow(components)
	case artifact.DiagramER:
		return generateER(components)
	case artifact.DiagramState:
		return generateState()
	default:
		return generateArchitecture(components)
	}
}

func generateArchitecture(components []artifact.Component) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if len(components) == 0 {
		sb.WriteString("  system[System]\n")
		return sb.String()
	}

	ids := nodeIDs(components)
	for i, c := range components {
		fmt.Fprintf(&sb, "  %s[%s]\n", ids[i], nodeLabel(c.Name))
	}
	for i := 1; i < len(components); i++ {
		fmt.Fprintf(&sb, "  %s --> %s\n", ids[i-1], ids[i])
	}
	return sb.String()
}

func generateSequence(components []artifact.Component) string {
	var sb strings.Builder
	sb.WriteString("sequenceDiagram\n")
	sb.WriteString("  participant user as User\n")
	if len(components) == 0 {
		sb.WriteString("  participant system as System\n")
		sb.WriteString("  user->>system: request\n")
		sb.WriteString("  system-->>user: response\n")
		return sb.String()
	}

	ids := nodeIDs(components)
	for i, c := range components {
		fmt.Fprintf(&sb, "  participant %s as %s\n", ids[i], nodeLabel(c.Name))
	}
	fmt.Fprintf(&sb, "  user->>%s: request\n", ids[0])
	for i := 1; i < len(components); i++ {
		fmt.Fprintf(&sb, "  %s->>%s: forward\n", ids[i-1], ids[i])
	}
	for i := len(components) - 1; i > 0; i-- {
		fmt.Fprintf(&sb, "  %s-->>%s: result\n", ids[i], ids[i-1])
	}
	fmt.Fprintf(&sb, "  %s-->>user: response\n", ids[0])
	return sb.String()
}

func generateDataFlow(components []artifact.Component) string {
	var sb strings.Builder
	sb.WriteString("flowchart LR\n")
	sb.WriteString("  source([Input])\n")
	sb.WriteString("  sink([Output])\n")
	if len(components) == 0 {
		sb.WriteString("  source --> sink\n")
		return sb.String()
	}

	ids := nodeIDs(components)
	for i, c := range components {
		fmt.Fprintf(&sb, "  %s[%s]\n", ids[i], nodeLabel(c.Name))
	}
	fmt.Fprintf(&sb, "  source --> %s\n", ids[0])
	for i := 1; i < len(components); i++ {
		fmt.Fprintf(&sb, "  %s --> %s\n", ids[i-1], ids[i])
	}
	fmt.Fprintf(&sb, "  %s --> sink\n", ids[len(ids)-1])
	return sb.String()
}

func generateER(components []artifact.Component) string {
	var sb strings.Builder
	sb.WriteString("erDiagram\n")
	if len(components) == 0 {
		sb.WriteString("  SYSTEM\n")
		return sb.String()
	}

	names := make([]string, len(components))
	for i, c := range components {
		names[i] = entityName(c.Name)
		fmt.Fprintf(&sb, "  %s\n", names[i])
	}
	for i := 1; i < len(names); i++ {
		fmt.Fprintf(&sb, "  %s ||--o{ %s : uses\n", names[i-1], names[i])
	}
	return sb.String()
}

func generateState() string {
	// Backlog items are the only stateful entities in a generated design.
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")
	sb.WriteString("  [*] --> Local\n")
	sb.WriteString("  Local --> Submitting\n")
	sb.WriteString("  Submitting --> Synced\n")
	sb.WriteString("  Submitting --> SyncFailed\n")
	sb.WriteString("  Synced --> [*]\n")
	sb.WriteString("  SyncFailed --> [*]\n")
	return sb.String()
}

var nonWordRegex = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// nodeIDs derives unique Mermaid node ids from component names.
func nodeIDs(components []artifact.Component) []string {
	seen := make(map[string]int)
	ids := make([]string, len(components))
	for i, c := range components {
		id := strings.ToLower(nonWordRegex.ReplaceAllString(c.Name, ""))
		if id == "" {
			id = fmt.Sprintf("node%d", i+1)
		}
		if n := seen[id]; n > 0 {
			id = fmt.Sprintf("%s%d", id, n+1)
		}
		seen[id]++
		ids[i] = id
	}
	return ids
}

// nodeLabel strips characters that confuse Mermaid label parsing.
func nodeLabel(name string) string {
	label := strings.NewReplacer("[", "(", "]", ")", "{", "(", "}", ")", `"`, "'").Replace(name)
	if strings.TrimSpace(label) == "" {
		return "Component"
	}
	return strings.TrimSpace(label)
}

func entityName(name string) string {
	entity := strings.ToUpper(nonWordRegex.ReplaceAllString(name, "_"))
	entity = strings.Trim(entity, "_")
	if entity == "" {
		return "ENTITY"
	}
	return entity
}
