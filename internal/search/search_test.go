package search

import (
	"encoding/json"
	"testing"
)

func TestQueryNormalized(t *testing.T) {
	tests := []struct {
		name     string
		in       Query
		wantText string
		wantTop  int
	}{
		{name: "blank text", in: Query{Text: "  ", Top: 3}, wantText: "*", wantTop: 3},
		{name: "default top", in: Query{Text: "welder"}, wantText: "welder", wantTop: DefaultTop},
		{name: "negative top", in: Query{Text: "go", Top: -2}, wantText: "go", wantTop: DefaultTop},
		{name: "capped top", in: Query{Text: "go", Top: 1000}, wantText: "go", wantTop: MaxTop},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalized()
			if got.Text != tt.wantText || got.Top != tt.wantTop {
				t.Fatalf("Normalized() = %+v, want text %q top %d", got, tt.wantText, tt.wantTop)
			}
		})
	}
}

func TestExtractFieldsIncludesOnlyPresent(t *testing.T) {
	var raw map[string]json.RawMessage
	body := `{"id":"a_b_com_resume.txt","content":"...","roles":["welder"],"name":"Ann","@search.score":1.2}`
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	fields := ExtractFields(raw)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %v", fields)
	}
	if fields["name"] != "Ann" {
		t.Fatalf("unexpected name %v", fields["name"])
	}
	if _, ok := fields["career"]; ok {
		t.Fatalf("absent field must be omitted")
	}
	if _, ok := fields["content"]; ok {
		t.Fatalf("content is not an optional field")
	}
}

func TestExtractFieldsNilWhenNoneMatch(t *testing.T) {
	if fields := ExtractFields(map[string]json.RawMessage{"id": json.RawMessage(`"x"`)}); fields != nil {
		t.Fatalf("expected nil, got %v", fields)
	}
	if fields := FieldsFromMap(map[string]any{"content": "x"}); fields != nil {
		t.Fatalf("expected nil, got %v", fields)
	}
}

func TestFieldsFromMap(t *testing.T) {
	fields := FieldsFromMap(map[string]any{"title": "Resume", "resume_url": "resumes/a.txt", "other": 1})
	if len(fields) != 2 || fields["title"] != "Resume" {
		t.Fatalf("unexpected fields %v", fields)
	}
}
