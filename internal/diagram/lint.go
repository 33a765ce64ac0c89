package diagram

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/khushiGit123/jira-gen/internal/artifact"
)

// Issue describes a single syntax problem found in diagram text.
type Issue struct {
	Line    int
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("line %d: %s", i.Line, i.Message)
}

// Report summarizes lint results for one rendered diagram. An empty report
// means the text passed validation; a non-empty one carries warnings only.
type Report struct {
	Issues   []Issue
	Repaired bool
}

// Valid reports whether the diagram text passed lint with no issues.
func (r Report) Valid() bool { return len(r.Issues) == 0 }

func (r Report) String() string {
	if r.Valid() {
		return "ok"
	}
	parts := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		parts[i] = issue.String()
	}
	return strings.Join(parts, "; ")
}

var headerKeywords = map[string][]string{
	"graph":    {"graph", "flowchart"},
	"sequence": {"sequenceDiagram"},
	"er":       {"erDiagram"},
	"state":    {"stateDiagram-v2", "stateDiagram"},
}

// family maps a diagram kind to its Mermaid grammar family.
func family(kind string) string {
	switch kind {
	case "sequence":
		return "sequence"
	case "er":
		return "er"
	case "state":
		return "state"
	default:
		return "graph"
	}
}

// defaultHeader is the header line inserted when repair finds none.
func defaultHeader(fam string) string {
	switch fam {
	case "sequence":
		return "sequenceDiagram"
	case "er":
		return "erDiagram"
	case "state":
		return "stateDiagram-v2"
	default:
		return "graph TD"
	}
}

var (
	edgeRegex        = regexp.MustCompile(`(-{2,3}>|={2,}>|-\.+->|--[xo]|-{2,3}(?:\|[^|]*\|)?\s)`)
	nodeDeclRegex    = regexp.MustCompile(`^\s*[\w-]+\s*[\[({]`)
	graphNodeRefs    = regexp.MustCompile(`(?m)^\s*([\w-]+)(?:[\[({][^\])}]*[\])}])?\s*(?:-{2,3}>|={2,}>|-\.+->|---)\s*(?:\|[^|]*\|\s*)?([\w-]+)`)
	graphNodeDecls   = regexp.MustCompile(`(?m)^\s*([\w-]+)\s*[\[({]`)
	seqMessageRegex  = regexp.MustCompile(`^\s*([\w-]+)\s*-{1,2}(?:>>?|[xo])\s*\+?([\w-]+)\s*:`)
	seqDeclRegex     = regexp.MustCompile(`^\s*(?:participant|actor)\s+([\w-]+)`)
	erRelationRegex  = regexp.MustCompile(`^\s*\w+\s+[|}o.][|}o.]?--[|{o.][|{o.]?\s+\w+\s*:`)
	stateTransRegex  = regexp.MustCompile(`^\s*(?:\[\*\]|[\w-]+)\s*-->\s*(?:\[\*\]|[\w-]+)`)
	commentRegex     = regexp.MustCompile(`^\s*%%`)
	graphDirectives  = regexp.MustCompile(`^\s*(subgraph\b|end\b|direction\b|classDef\b|class\b|style\b|linkStyle\b)`)
	seqDirectives    = regexp.MustCompile(`^\s*(participant\b|actor\b|activate\b|deactivate\b|note\b|Note\b|loop\b|alt\b|else\b|opt\b|par\b|and\b|end\b|autonumber\b)`)
	stateDirectives  = regexp.MustCompile(`^\s*(state\b|note\b|direction\b|end\b|\}|[\w-]+\s*:\s)`)
	bareWordLine     = regexp.MustCompile(`^\s*[\w-]+\s*$`)
	erAttributeBlock = regexp.MustCompile(`^\s*(\w+\s*\{|\}|\s*\w+\s+\w+\s*)$`)
	quotedNameRegex  = regexp.MustCompile(`"([^"]+)"`)
)

// Lint checks diagram text against the grammar family of kind. It verifies
// the header line, delimiter balance per line, recognized line shapes, and,
// for graph and sequence families, references to undeclared nodes.
func Lint(text string, kind artifact.DiagramKind) []Issue {
	fam := family(string(kind))
	lines := strings.Split(text, "\n")

	var issues []Issue
	headerSeen := false
	for n, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || commentRegex.MatchString(line) {
			continue
		}
		if !headerSeen {
			if hasHeader(trimmed, fam) {
				headerSeen = true
				continue
			}
			issues = append(issues, Issue{Line: n + 1, Message: "missing or unrecognized diagram header"})
			headerSeen = true // report once
		}
		// Crow's foot cardinality marks use unpaired braces.
		if fam == "er" && erRelationRegex.MatchString(line) {
			continue
		}
		if msg := checkBalance(line); msg != "" {
			issues = append(issues, Issue{Line: n + 1, Message: msg})
			continue
		}
		if !lineRecognized(line, fam) {
			issues = append(issues, Issue{Line: n + 1, Message: "unrecognized directive"})
		}
	}

	issues = append(issues, danglingRefs(text, fam)...)
	return issues
}

func hasHeader(line, fam string) bool {
	for _, kw := range headerKeywords[fam] {
		if strings.HasPrefix(line, kw) {
			return true
		}
	}
	return false
}

// checkBalance verifies bracket, paren, and brace pairing within one line.
func checkBalance(line string) string {
	var stack []rune
	pairs := map[rune]rune{']': '[', ')': '(', '}': '{'}
	inQuote := false
	for _, ch := range line {
		if ch == '"' {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		switch ch {
		case '[', '(', '{':
			stack = append(stack, ch)
		case ']', ')', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[ch] {
				return fmt.Sprintf("unmatched %q", string(ch))
			}
			stack = stack[:len(stack)-1]
		}
	}
	if inQuote {
		return "unterminated quote"
	}
	if len(stack) > 0 {
		return fmt.Sprintf("unclosed %q", string(stack[len(stack)-1]))
	}
	return ""
}

func lineRecognized(line, fam string) bool {
	switch fam {
	case "sequence":
		return seqDirectives.MatchString(line) || seqMessageRegex.MatchString(line)
	case "er":
		return erRelationRegex.MatchString(line) || erAttributeBlock.MatchString(line) || bareWordLine.MatchString(line)
	case "state":
		return stateTransRegex.MatchString(line) || stateDirectives.MatchString(line)
	default:
		return graphDirectives.MatchString(line) ||
			nodeDeclRegex.MatchString(line) ||
			edgeRegex.MatchString(line) ||
			bareWordLine.MatchString(line)
	}
}

// danglingRefs finds edge or message endpoints that no declaration covers.
// Graph nodes are implicitly declared by labeled declarations; sequence
// participants only count as declared when any explicit declaration exists.
func danglingRefs(text string, fam string) []Issue {
	switch fam {
	case "graph":
		decls := map[string]bool{}
		for _, m := range graphNodeDecls.FindAllStringSubmatch(text, -1) {
			decls[m[1]] = true
		}
		if len(decls) == 0 {
			return nil
		}
		var issues []Issue
		seen := map[string]bool{}
		for _, m := range graphNodeRefs.FindAllStringSubmatch(text, -1) {
			for _, id := range []string{m[1], m[2]} {
				if !decls[id] && !seen[id] {
					seen[id] = true
					issues = append(issues, Issue{Message: fmt.Sprintf("edge references undeclared node %q", id)})
				}
			}
		}
		return issues
	case "sequence":
		decls := map[string]bool{}
		for _, line := range strings.Split(text, "\n") {
			if m := seqDeclRegex.FindStringSubmatch(line); m != nil {
				decls[m[1]] = true
			}
		}
		if len(decls) == 0 {
			return nil
		}
		var issues []Issue
		seen := map[string]bool{}
		for _, line := range strings.Split(text, "\n") {
			m := seqMessageRegex.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			for _, id := range []string{m[1], m[2]} {
				if !decls[id] && !seen[id] {
					seen[id] = true
					issues = append(issues, Issue{Message: fmt.Sprintf("message references undeclared participant %q", id)})
				}
			}
		}
		return issues
	default:
		return nil
	}
}

// Repair applies one mechanical fix pass guided by lint issues: insert a
// missing header, close unbalanced delimiters, drop unrecognized lines, and
// declare dangling nodes. The caller re-lints the result; repair never runs
// twice on the same text.
func Repair(text string, kind artifact.DiagramKind, issues []Issue) string {
	fam := family(string(kind))
	lines := strings.Split(text, "\n")

	byLine := map[int][]string{}
	needHeader := false
	dangling := []string{}
	for _, issue := range issues {
		switch {
		case strings.Contains(issue.Message, "header"):
			needHeader = true
		case strings.Contains(issue.Message, "undeclared"):
			if m := quotedNameRegex.FindStringSubmatch(issue.Message); m != nil {
				dangling = append(dangling, m[1])
			}
		default:
			byLine[issue.Line] = append(byLine[issue.Line], issue.Message)
		}
	}

	var out []string
	if needHeader {
		out = append(out, defaultHeader(fam))
	}
	for n, line := range lines {
		msgs := byLine[n+1]
		if len(msgs) == 0 {
			out = append(out, line)
			continue
		}
		if containsPrefix(msgs, "unrecognized") {
			continue
		}
		out = append(out, closeDelimiters(line))
	}

	for _, id := range dangling {
		switch fam {
		case "sequence":
			out = append(out, fmt.Sprintf("  participant %s", id))
		default:
			out = append(out, fmt.Sprintf("  %s[%s]", id, id))
		}
	}

	return strings.Join(out, "\n")
}

func containsPrefix(msgs []string, prefix string) bool {
	for _, m := range msgs {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

// closeDelimiters appends closers for any delimiters left open on the line
// and terminates an open quote.
func closeDelimiters(line string) string {
	var stack []rune
	closers := map[rune]rune{'[': ']', '(': ')', '{': '}'}
	pairs := map[rune]rune{']': '[', ')': '(', '}': '{'}
	inQuote := false
	for _, ch := range line {
		if ch == '"' {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		switch ch {
		case '[', '(', '{':
			stack = append(stack, ch)
		case ']', ')', '}':
			if len(stack) > 0 && stack[len(stack)-1] == pairs[ch] {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if inQuote {
		line += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		line += string(closers[stack[i]])
	}
	return line
}
