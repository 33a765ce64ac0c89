package artifact

// Clone returns a deep copy sharing no memory with the receiver. Nil in,
// nil out.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Requirements = d.Requirements.Clone()
	out.Design = d.Design.Clone()
	out.Backlog = d.Backlog.Clone()
	return &out
}

// Clone returns a deep copy of the requirements artifact.
func (b *BusinessRequirements) Clone() *BusinessRequirements {
	if b == nil {
		return nil
	}
	out := *b
	out.Stakeholders = cloneStrings(b.Stakeholders)
	out.FunctionalRequirements = cloneRequirements(b.FunctionalRequirements)
	out.NonFunctionalRequirements = cloneRequirements(b.NonFunctionalRequirements)
	out.BusinessRules = cloneStrings(b.BusinessRules)
	out.Assumptions = cloneStrings(b.Assumptions)
	out.Constraints = cloneStrings(b.Constraints)
	return &out
}

// Clone returns a deep copy of the design artifact, including the diagram map.
func (d *TechnicalDesign) Clone() *TechnicalDesign {
	if d == nil {
		return nil
	}
	out := *d
	if d.Components != nil {
		out.Components = make([]Component, len(d.Components))
		for i, c := range d.Components {
			c.Responsibilities = cloneStrings(c.Responsibilities)
			out.Components[i] = c
		}
	}
	if d.TechnologyChoices != nil {
		out.TechnologyChoices = make([]TechnologyChoice, len(d.TechnologyChoices))
		copy(out.TechnologyChoices, d.TechnologyChoices)
	}
	if d.Diagrams != nil {
		out.Diagrams = make(map[DiagramKind]string, len(d.Diagrams))
		for k, v := range d.Diagrams {
			out.Diagrams[k] = v
		}
	}
	return &out
}

// Clone returns a deep copy of the backlog, including per-item sync state.
func (b *Backlog) Clone() *Backlog {
	if b == nil {
		return nil
	}
	out := &Backlog{}
	if b.Epics != nil {
		out.Epics = make([]Epic, len(b.Epics))
		for i, e := range b.Epics {
			if e.Stories != nil {
				stories := make([]Story, len(e.Stories))
				for j, s := range e.Stories {
					s.AcceptanceCriteria = cloneStrings(s.AcceptanceCriteria)
					stories[j] = s
				}
				e.Stories = stories
			}
			out.Epics[i] = e
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRequirements(in []Requirement) []Requirement {
	if in == nil {
		return nil
	}
	out := make([]Requirement, len(in))
	copy(out, in)
	return out
}
