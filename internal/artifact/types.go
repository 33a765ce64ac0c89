// Package artifact defines the structured document model for the three
// pipeline artifacts (business requirements, technical design, backlog) and
// the parsing that turns raw stage output into typed documents.
package artifact

// Kind identifies one of the three artifact schemas.
type Kind string

const (
	// KindRequirements is the business requirements artifact (stage 1).
	KindRequirements Kind = "business_requirements"
	// KindDesign is the technical design artifact (stage 2).
	KindDesign Kind = "technical_design"
	// KindBacklog is the epics-and-stories artifact (stage 3).
	KindBacklog Kind = "backlog"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Confidence reports how the parser obtained a document's structure.
type Confidence string

const (
	// ConfidenceHigh means the document came from a well-formed structured block.
	ConfidenceHigh Confidence = "high"
	// ConfidenceLow means the document was recovered by heuristic
	// section-splitting rather than well-formed structure.
	ConfidenceLow Confidence = "low"
)

// DiagramKind identifies a diagram notation family in a technical design.
type DiagramKind string

const (
	DiagramArchitecture DiagramKind = "architecture"
	DiagramSequence     DiagramKind = "sequence"
	DiagramDataFlow     DiagramKind = "data_flow"
	DiagramER           DiagramKind = "er"
	DiagramState        DiagramKind = "state"
)

// AllDiagramKinds returns every supported diagram kind in render order.
func AllDiagramKinds() []DiagramKind {
	return []DiagramKind{DiagramArchitecture, DiagramSequence, DiagramDataFlow, DiagramER, DiagramState}
}

// Requirement is a single requirement record. Lists of requirements preserve
// the order in which the source text presented them; no reordering or
// deduplication is performed.
type Requirement struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Priority    string `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// BusinessRequirements is the stage 1 artifact. Produced once, read-only
// thereafter; consumed by stages 2 and 3.
type BusinessRequirements struct {
	Stakeholders              []string      `json:"stakeholders" yaml:"stakeholders"`
	FunctionalRequirements    []Requirement `json:"functional_requirements" yaml:"functional_requirements"`
	NonFunctionalRequirements []Requirement `json:"non_functional_requirements,omitempty" yaml:"non_functional_requirements,omitempty"`
	BusinessRules             []string      `json:"business_rules,omitempty" yaml:"business_rules,omitempty"`
	Assumptions               []string      `json:"assumptions,omitempty" yaml:"assumptions,omitempty"`
	Constraints               []string      `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// Component is one element of a technical design's component list.
type Component struct {
	Name             string   `json:"name" yaml:"name"`
	Description      string   `json:"description,omitempty" yaml:"description,omitempty"`
	Responsibilities []string `json:"responsibilities,omitempty" yaml:"responsibilities,omitempty"`
}

// TechnologyChoice records one technology decision and its rationale.
type TechnologyChoice struct {
	Area      string `json:"area" yaml:"area"`
	Choice    string `json:"choice" yaml:"choice"`
	Rationale string `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// TechnicalDesign is the stage 2 artifact. Diagrams maps diagram kind to
// Mermaid text; the renderer fills in any requested kind the model omitted.
type TechnicalDesign struct {
	ArchitectureSummary string                 `json:"architecture_summary" yaml:"architecture_summary"`
	Components          []Component            `json:"components,omitempty" yaml:"components,omitempty"`
	TechnologyChoices   []TechnologyChoice     `json:"technology_choices,omitempty" yaml:"technology_choices,omitempty"`
	Diagrams            map[DiagramKind]string `json:"diagrams,omitempty" yaml:"diagrams,omitempty"`
}

// SyncState tracks a backlog item's progress through remote sync.
type SyncState string

const (
	// SyncLocal means the item exists only in the generated artifact.
	SyncLocal SyncState = "local"
	// SyncSubmitting means a creation request is in flight.
	SyncSubmitting SyncState = "submitting"
	// SyncSynced means the item carries a remote id.
	SyncSynced SyncState = "synced"
	// SyncFailed means creation permanently failed for this item.
	SyncFailed SyncState = "sync_failed"
)

// Story is a user story destined for the issue tracker. RemoteID is empty
// until sync succeeds; remote-id assignment is the only post-creation
// mutation of a backlog artifact.
type Story struct {
	Title              string    `json:"title" yaml:"title"`
	Description        string    `json:"description" yaml:"description"`
	AcceptanceCriteria []string  `json:"acceptance_criteria" yaml:"acceptance_criteria"`
	RemoteID           string    `json:"remote_id,omitempty" yaml:"remote_id,omitempty"`
	SyncState          SyncState `json:"sync_state,omitempty" yaml:"sync_state,omitempty"`
	SyncError          string    `json:"sync_error,omitempty" yaml:"sync_error,omitempty"`
}

// Epic groups an ordered list of stories.
type Epic struct {
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Stories     []Story   `json:"stories" yaml:"stories"`
	RemoteID    string    `json:"remote_id,omitempty" yaml:"remote_id,omitempty"`
	SyncState   SyncState `json:"sync_state,omitempty" yaml:"sync_state,omitempty"`
	SyncError   string    `json:"sync_error,omitempty" yaml:"sync_error,omitempty"`
}

// Backlog is the stage 3 artifact: ordered epics, each owning ordered stories.
type Backlog struct {
	Epics []Epic `json:"epics" yaml:"epics"`
}

// StoryCount returns the total number of stories across all epics.
func (b *Backlog) StoryCount() int {
	n := 0
	for _, e := range b.Epics {
		n += len(e.Stories)
	}
	return n
}

// Document is the typed result of parsing one stage's raw output. Exactly one
// of Requirements, Design, or Backlog is non-nil, matching Kind.
type Document struct {
	Kind         Kind                  `json:"kind" yaml:"kind"`
	Confidence   Confidence            `json:"confidence" yaml:"confidence"`
	Requirements *BusinessRequirements `json:"business_requirements,omitempty" yaml:"business_requirements,omitempty"`
	Design       *TechnicalDesign      `json:"technical_design,omitempty" yaml:"technical_design,omitempty"`
	Backlog      *Backlog              `json:"backlog,omitempty" yaml:"backlog,omitempty"`
}
