package artifact

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func marshalIndentHelper(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func sampleDocuments(t *testing.T) []*Document {
	t.Helper()

	reqDoc, err := Parse(requirementsJSON, KindRequirements)
	if err != nil {
		t.Fatalf("parsing requirements fixture: %v", err)
	}
	designDoc, err := Parse(designJSON, KindDesign)
	if err != nil {
		t.Fatalf("parsing design fixture: %v", err)
	}
	backlogDoc, err := Parse(backlogJSON, KindBacklog)
	if err != nil {
		t.Fatalf("parsing backlog fixture: %v", err)
	}
	return []*Document{reqDoc, designDoc, backlogDoc}
}

func TestDocument_JSONRoundTrip(t *testing.T) {
	for _, doc := range sampleDocuments(t) {
		t.Run(string(doc.Kind), func(t *testing.T) {
			data, err := doc.ToJSON()
			if err != nil {
				t.Fatalf("ToJSON: %v", err)
			}

			back, err := FromJSON(data)
			if err != nil {
				t.Fatalf("FromJSON: %v", err)
			}
			if !reflect.DeepEqual(doc, back) {
				t.Errorf("round trip mismatch:\nbefore: %+v\nafter:  %+v", doc, back)
			}
		})
	}
}

func TestDocument_ReserializeAndReparse(t *testing.T) {
	// parse → serialize → parse must yield field-for-field equal structures.
	for _, doc := range sampleDocuments(t) {
		t.Run(string(doc.Kind), func(t *testing.T) {
			var inner []byte
			var err error
			switch doc.Kind {
			case KindRequirements:
				inner, err = marshalIndentHelper(doc.Requirements)
			case KindDesign:
				inner, err = marshalIndentHelper(doc.Design)
			case KindBacklog:
				inner, err = marshalIndentHelper(doc.Backlog)
			}
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			again, err := Parse(string(inner), doc.Kind)
			if err != nil {
				t.Fatalf("re-Parse: %v", err)
			}
			if !reflect.DeepEqual(doc, again) {
				t.Errorf("reparse mismatch:\nbefore: %+v\nafter:  %+v", doc, again)
			}
		})
	}
}

func TestDocument_ToYAML(t *testing.T) {
	for _, doc := range sampleDocuments(t) {
		data, err := doc.ToYAML()
		if err != nil {
			t.Fatalf("ToYAML(%s): %v", doc.Kind, err)
		}
		if !strings.Contains(string(data), "kind: "+string(doc.Kind)) {
			t.Errorf("YAML output missing kind header:\n%s", data)
		}
	}
}

func TestDocument_ToMarkdown(t *testing.T) {
	docs := sampleDocuments(t)

	reqMD := docs[0].ToMarkdown()
	if !strings.Contains(reqMD, "## Stakeholders") || !strings.Contains(reqMD, "FR-1") {
		t.Errorf("requirements markdown incomplete:\n%s", reqMD)
	}

	designMD := docs[1].ToMarkdown()
	if !strings.Contains(designMD, "```mermaid") {
		t.Errorf("design markdown missing diagram fence:\n%s", designMD)
	}
	if !strings.Contains(designMD, "## Diagram: architecture") {
		t.Errorf("design markdown missing diagram heading:\n%s", designMD)
	}

	backlogMD := docs[2].ToMarkdown()
	if !strings.Contains(backlogMD, "## Epic: Customer Management") {
		t.Errorf("backlog markdown missing epic heading:\n%s", backlogMD)
	}
	if !strings.Contains(backlogMD, "- Email is verified") {
		t.Errorf("backlog markdown missing acceptance criteria:\n%s", backlogMD)
	}
}

func TestMarkdownReparse_Backlog(t *testing.T) {
	// The human-readable form must survive a heuristic re-parse with the
	// same titles and criteria.
	doc := sampleDocuments(t)[2]

	again, err := Parse(doc.ToMarkdown(), KindBacklog)
	if err != nil {
		t.Fatalf("re-Parse of markdown: %v", err)
	}
	if again.Confidence != ConfidenceLow {
		t.Errorf("markdown reparse should be heuristic, got %q", again.Confidence)
	}
	if len(again.Backlog.Epics) != 1 {
		t.Fatalf("epics = %d", len(again.Backlog.Epics))
	}
	if again.Backlog.Epics[0].Title != doc.Backlog.Epics[0].Title {
		t.Errorf("epic title = %q", again.Backlog.Epics[0].Title)
	}
	gotAC := again.Backlog.Epics[0].Stories[0].AcceptanceCriteria
	if !reflect.DeepEqual(gotAC, doc.Backlog.Epics[0].Stories[0].AcceptanceCriteria) {
		t.Errorf("criteria = %v", gotAC)
	}
}
