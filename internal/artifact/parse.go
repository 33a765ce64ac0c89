package artifact

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/khushiGit123/jira-gen/internal/errors"
)

// jsonFenceRegex matches a fenced ```json code block.
var jsonFenceRegex = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n\\s*```")

// mermaidFenceRegex matches a fenced ```mermaid code block.
var mermaidFenceRegex = regexp.MustCompile("(?s)```mermaid\\s*\\n(.*?)\\n\\s*```")

// bareDiagramRegexes recover diagram bodies that the model emitted without a
// mermaid fence. Each match runs to the next blank line, heading, or the next
// diagram header.
var bareDiagramRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?sm)^(graph (?:TB|TD|BT|RL|LR).*?)(?:\n\n|\n#|\z)`),
	regexp.MustCompile(`(?sm)^(flowchart (?:TB|TD|BT|RL|LR).*?)(?:\n\n|\n#|\z)`),
	regexp.MustCompile(`(?sm)^(sequenceDiagram.*?)(?:\n\n|\n#|\z)`),
	regexp.MustCompile(`(?sm)^(erDiagram.*?)(?:\n\n|\n#|\z)`),
	regexp.MustCompile(`(?sm)^(stateDiagram-v2.*?)(?:\n\n|\n#|\z)`),
}

// Parse turns the raw text returned by the reasoning backend into a typed
// Document for the given schema kind.
//
// Parsing is a strict two-tier contract: a well-formed structured block
// (fenced ```json or a bare JSON object) is tried first and yields a
// high-confidence document. When no such block parses, heuristic
// markdown-section splitting recovers what it can and the result is tagged
// ConfidenceLow. The two paths are never merged silently.
//
// Missing required fields produce a *errors.ValidationError naming the field
// and the stage, regardless of which tier produced the document. Parse is a
// pure transform: list order is preserved exactly as the source presented it.
func Parse(raw string, kind Kind) (*Document, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.NewValidationError("empty stage output").WithStage(string(kind))
	}

	doc, strictErr := parseStrict(raw, kind)
	if strictErr == nil {
		if err := validate(doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	// A structured block that parsed as JSON but failed field validation is a
	// real validation failure, not an excuse to fall back to heuristics.
	if errors.IsValidation(strictErr) {
		return nil, strictErr
	}

	doc = parseHeuristic(raw, kind)
	if err := validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// parseStrict extracts and unmarshals a structured JSON block. It returns a
// non-validation error when no block is found or the block is not valid JSON.
func parseStrict(raw string, kind Kind) (*Document, error) {
	block, ok := extractJSONBlock(raw)
	if !ok {
		return nil, fmt.Errorf("no structured block found in output")
	}

	doc := &Document{Kind: kind, Confidence: ConfidenceHigh}

	switch kind {
	case KindRequirements:
		var br BusinessRequirements
		if err := json.Unmarshal([]byte(block), &br); err != nil {
			return nil, fmt.Errorf("structured block is not valid requirements JSON: %w", err)
		}
		doc.Requirements = &br

	case KindDesign:
		var td TechnicalDesign
		if err := json.Unmarshal([]byte(block), &td); err != nil {
			return nil, fmt.Errorf("structured block is not valid design JSON: %w", err)
		}
		// The architect sometimes puts diagrams in prose instead of the
		// structured block. Recover them from the surrounding text.
		if len(td.Diagrams) == 0 {
			td.Diagrams = ExtractDiagrams(raw)
		}
		doc.Design = &td

	case KindBacklog:
		var bl Backlog
		if err := json.Unmarshal([]byte(block), &bl); err != nil {
			return nil, fmt.Errorf("structured block is not valid backlog JSON: %w", err)
		}
		normalizeBacklog(&bl)
		doc.Backlog = &bl

	default:
		return nil, errors.NewValidationError("unknown artifact kind").WithStage(string(kind))
	}

	return doc, nil
}

// extractJSONBlock finds the structured block in raw output. It prefers a
// fenced ```json block; failing that, it accepts output that is itself a bare
// JSON object.
func extractJSONBlock(raw string) (string, bool) {
	if m := jsonFenceRegex.FindStringSubmatch(raw); len(m) == 2 {
		return strings.TrimSpace(m[1]), true
	}

	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed, true
	}
	return "", false
}

// normalizeBacklog resets sync bookkeeping on a freshly parsed backlog. The
// model has no business assigning remote ids or sync states.
func normalizeBacklog(bl *Backlog) {
	for i := range bl.Epics {
		bl.Epics[i].RemoteID = ""
		bl.Epics[i].SyncState = SyncLocal
		bl.Epics[i].SyncError = ""
		for j := range bl.Epics[i].Stories {
			bl.Epics[i].Stories[j].RemoteID = ""
			bl.Epics[i].Stories[j].SyncState = SyncLocal
			bl.Epics[i].Stories[j].SyncError = ""
		}
	}
}

// ExtractDiagrams pulls Mermaid diagram bodies out of free text and classifies
// each by its header keyword. Fenced ```mermaid blocks are preferred; bare
// diagram bodies are recovered as a fallback.
func ExtractDiagrams(raw string) map[DiagramKind]string {
	var bodies []string
	for _, m := range mermaidFenceRegex.FindAllStringSubmatch(raw, -1) {
		bodies = append(bodies, strings.TrimSpace(m[1]))
	}

	if len(bodies) == 0 {
		for _, re := range bareDiagramRegexes {
			for _, m := range re.FindAllStringSubmatch(raw, -1) {
				body := strings.TrimSpace(m[1])
				if len(body) > 10 {
					bodies = append(bodies, body)
				}
			}
		}
	}

	diagrams := make(map[DiagramKind]string)
	for _, body := range bodies {
		kind := classifyDiagram(body)
		if _, exists := diagrams[kind]; !exists {
			diagrams[kind] = body
		}
	}
	if len(diagrams) == 0 {
		return nil
	}
	return diagrams
}

// classifyDiagram maps a Mermaid body to a diagram kind by its header.
// Flowcharts whose nodes talk about data movement are classified as data-flow.
func classifyDiagram(body string) DiagramKind {
	header := strings.ToLower(strings.SplitN(strings.TrimSpace(body), "\n", 2)[0])
	switch {
	case strings.HasPrefix(header, "sequencediagram"):
		return DiagramSequence
	case strings.HasPrefix(header, "erdiagram"):
		return DiagramER
	case strings.HasPrefix(header, "statediagram"):
		return DiagramState
	default:
		lower := strings.ToLower(body)
		if strings.Contains(lower, "data flow") || strings.Contains(lower, "dataflow") {
			return DiagramDataFlow
		}
		return DiagramArchitecture
	}
}

// validate enforces the required fields for each artifact kind.
func validate(doc *Document) error {
	stage := string(doc.Kind)

	switch doc.Kind {
	case KindRequirements:
		br := doc.Requirements
		if br == nil || len(br.Stakeholders) == 0 {
			return errors.NewValidationError("missing required field").
				WithField("stakeholders").WithStage(stage)
		}
		if len(br.FunctionalRequirements) == 0 {
			return errors.NewValidationError("missing required field").
				WithField("functional_requirements").WithStage(stage)
		}
		for _, r := range br.FunctionalRequirements {
			if strings.TrimSpace(r.Description) == "" {
				return errors.NewValidationError("functional requirement has empty description").
					WithField("functional_requirements").WithStage(stage)
			}
		}

	case KindDesign:
		td := doc.Design
		if td == nil || strings.TrimSpace(td.ArchitectureSummary) == "" {
			return errors.NewValidationError("missing required field").
				WithField("architecture_summary").WithStage(stage)
		}

	case KindBacklog:
		bl := doc.Backlog
		if bl == nil || len(bl.Epics) == 0 {
			return errors.NewValidationError("missing required field").
				WithField("epics").WithStage(stage)
		}
		for _, e := range bl.Epics {
			if strings.TrimSpace(e.Title) == "" {
				return errors.NewValidationError("epic has empty title").
					WithField("epics").WithStage(stage)
			}
			for _, s := range e.Stories {
				if strings.TrimSpace(s.Title) == "" {
					return errors.NewValidationError("story has empty title").
						WithField("stories").WithStage(stage)
				}
				if len(s.AcceptanceCriteria) == 0 {
					return errors.NewValidationError("story has no acceptance criteria").
						WithField("acceptance_criteria").WithStage(stage)
				}
			}
		}

	default:
		return errors.NewValidationError("unknown artifact kind").WithStage(stage)
	}

	return nil
}
