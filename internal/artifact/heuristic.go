package artifact

import (
	"regexp"
	"strconv"
	"strings"
)

// Heuristic extraction: when a stage emits prose instead of a structured
// block, best-effort section splitting recovers a document from markdown
// headings and bullet lists. Results are always tagged ConfidenceLow.

var (
	headingRegex  = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*$`)
	boldLineRegex = regexp.MustCompile(`^\*\*(.+?)\*\*:?\s*$`)
	bulletRegex   = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(.+)$`)

	// frLineRegex splits "FR-1: The system shall... (Priority: High)" style
	// bullets into id, description, and priority.
	frLineRegex       = regexp.MustCompile(`^([A-Z]{2,4}-?\d+)\s*[:.-]\s*(.+)$`)
	priorityTailRegex = regexp.MustCompile(`(?i)\s*[(\[]\s*priority\s*[:=]?\s*(\w+)\s*[)\]]\s*$`)

	epicHeadingRegex  = regexp.MustCompile(`(?i)^epic(?:\s+\d+)?\s*[:.-]?\s*(.*)$`)
	storyHeadingRegex = regexp.MustCompile(`(?i)^(?:user\s+)?story(?:\s+[\w.-]+)?\s*[:.-]?\s*(.*)$`)
)

// section is a heading plus the lines under it.
type section struct {
	title string
	lines []string
}

// splitSections breaks markdown text into heading-delimited sections. Text
// before the first heading lands in a section with an empty title.
func splitSections(raw string) []section {
	var sections []section
	current := section{}

	for _, line := range strings.Split(raw, "\n") {
		title := ""
		if m := headingRegex.FindStringSubmatch(line); m != nil {
			title = m[1]
		} else if m := boldLineRegex.FindStringSubmatch(line); m != nil {
			title = m[1]
		}

		if title != "" {
			sections = append(sections, current)
			current = section{title: title}
			continue
		}
		current.lines = append(current.lines, line)
	}
	sections = append(sections, current)
	return sections
}

// bullets returns the bullet-list items among the given lines, in order.
func bullets(lines []string) []string {
	var items []string
	for _, line := range lines {
		if m := bulletRegex.FindStringSubmatch(line); m != nil {
			items = append(items, strings.TrimSpace(m[1]))
		}
	}
	return items
}

// prose returns the non-bullet, non-empty lines joined as a paragraph.
func prose(lines []string) string {
	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || bulletRegex.MatchString(line) || strings.HasPrefix(trimmed, "```") {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, " ")
}

func titleContains(title string, keywords ...string) bool {
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// parseHeuristic recovers a document from unstructured markdown.
func parseHeuristic(raw string, kind Kind) *Document {
	doc := &Document{Kind: kind, Confidence: ConfidenceLow}

	switch kind {
	case KindRequirements:
		doc.Requirements = heuristicRequirements(raw)
	case KindDesign:
		doc.Design = heuristicDesign(raw)
	case KindBacklog:
		doc.Backlog = heuristicBacklog(raw)
	}
	return doc
}

func heuristicRequirements(raw string) *BusinessRequirements {
	br := &BusinessRequirements{}

	for _, sec := range splitSections(raw) {
		switch {
		case titleContains(sec.title, "stakeholder"):
			br.Stakeholders = append(br.Stakeholders, bullets(sec.lines)...)
		case titleContains(sec.title, "non-functional", "non functional", "nonfunctional"):
			br.NonFunctionalRequirements = append(br.NonFunctionalRequirements,
				parseRequirementBullets(bullets(sec.lines), "NFR", len(br.NonFunctionalRequirements))...)
		case titleContains(sec.title, "functional requirement", "functional"):
			br.FunctionalRequirements = append(br.FunctionalRequirements,
				parseRequirementBullets(bullets(sec.lines), "FR", len(br.FunctionalRequirements))...)
		case titleContains(sec.title, "business rule", "rule"):
			br.BusinessRules = append(br.BusinessRules, bullets(sec.lines)...)
		case titleContains(sec.title, "assumption"):
			br.Assumptions = append(br.Assumptions, bullets(sec.lines)...)
		case titleContains(sec.title, "constraint"):
			br.Constraints = append(br.Constraints, bullets(sec.lines)...)
		}
	}
	return br
}

// parseRequirementBullets converts bullet text into requirement records,
// honoring explicit ids and priority tails when present and assigning
// sequential ids otherwise.
func parseRequirementBullets(items []string, idPrefix string, offset int) []Requirement {
	reqs := make([]Requirement, 0, len(items))
	for i, item := range items {
		req := Requirement{Priority: "Medium"}

		if m := priorityTailRegex.FindStringSubmatch(item); m != nil {
			req.Priority = capitalize(m[1])
			item = strings.TrimSpace(priorityTailRegex.ReplaceAllString(item, ""))
		}

		if m := frLineRegex.FindStringSubmatch(item); m != nil {
			req.ID = m[1]
			req.Description = strings.TrimSpace(m[2])
		} else {
			req.ID = idPrefix + "-" + strconv.Itoa(offset+i+1)
			req.Description = item
		}
		reqs = append(reqs, req)
	}
	return reqs
}

func heuristicDesign(raw string) *TechnicalDesign {
	td := &TechnicalDesign{}

	for _, sec := range splitSections(raw) {
		switch {
		case titleContains(sec.title, "architecture", "overview", "summary"):
			if td.ArchitectureSummary == "" {
				td.ArchitectureSummary = prose(sec.lines)
			}
		case titleContains(sec.title, "component"):
			for _, item := range bullets(sec.lines) {
				name, desc, _ := strings.Cut(item, ":")
				td.Components = append(td.Components, Component{
					Name:        strings.TrimSpace(name),
					Description: strings.TrimSpace(desc),
				})
			}
		case titleContains(sec.title, "technology", "tech stack", "stack"):
			for _, item := range bullets(sec.lines) {
				area, choice, found := strings.Cut(item, ":")
				tc := TechnologyChoice{Area: strings.TrimSpace(area), Choice: strings.TrimSpace(choice)}
				if !found {
					tc = TechnologyChoice{Area: "general", Choice: strings.TrimSpace(area)}
				}
				td.TechnologyChoices = append(td.TechnologyChoices, tc)
			}
		}
	}

	// Fall back to the leading prose when no summary-like section exists.
	if td.ArchitectureSummary == "" {
		sections := splitSections(raw)
		if len(sections) > 0 {
			td.ArchitectureSummary = prose(sections[0].lines)
		}
	}

	td.Diagrams = ExtractDiagrams(raw)
	return td
}

func heuristicBacklog(raw string) *Backlog {
	bl := &Backlog{}
	var inAcceptance bool

	for _, sec := range splitSections(raw) {
		if m := epicHeadingRegex.FindStringSubmatch(sec.title); m != nil {
			title := strings.TrimSpace(m[1])
			if title == "" {
				title = sec.title
			}
			bl.Epics = append(bl.Epics, Epic{
				Title:       title,
				Description: prose(sec.lines),
				SyncState:   SyncLocal,
			})
			inAcceptance = false
			continue
		}

		if m := storyHeadingRegex.FindStringSubmatch(sec.title); m != nil && len(bl.Epics) > 0 {
			epic := &bl.Epics[len(bl.Epics)-1]
			title := strings.TrimSpace(m[1])
			if title == "" {
				title = sec.title
			}
			story := Story{Title: title, SyncState: SyncLocal}

			// Description is the story prose; bullets after an "acceptance
			// criteria" marker become the criteria list.
			inAcceptance = false
			var descLines []string
			for _, line := range sec.lines {
				if strings.Contains(strings.ToLower(line), "acceptance criteria") {
					inAcceptance = true
					continue
				}
				if m := bulletRegex.FindStringSubmatch(line); m != nil && inAcceptance {
					story.AcceptanceCriteria = append(story.AcceptanceCriteria, strings.TrimSpace(m[1]))
					continue
				}
				descLines = append(descLines, line)
			}
			story.Description = prose(descLines)
			epic.Stories = append(epic.Stories, story)
			continue
		}

		// An "Acceptance Criteria" section directly after a story heading.
		if titleContains(sec.title, "acceptance criteria") && len(bl.Epics) > 0 {
			epic := &bl.Epics[len(bl.Epics)-1]
			if len(epic.Stories) > 0 {
				story := &epic.Stories[len(epic.Stories)-1]
				story.AcceptanceCriteria = append(story.AcceptanceCriteria, bullets(sec.lines)...)
			}
		}
	}
	return bl
}

// capitalize uppercases the first letter and lowercases the rest
// ("HIGH" -> "High").
func capitalize(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
