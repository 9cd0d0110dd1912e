// Package search defines the hybrid resume search contract and its result shape.
// Provider adapters live in the azure and local subpackages.
package search

import (
	"context"
	"encoding/json"
	"strings"
)

const (
	// DefaultTop is used when a query does not ask for a positive number of documents.
	DefaultTop = 5
	// MaxTop caps the number of documents per query.
	MaxTop = 100
	// MatchAll is the query text sent when the caller supplies none.
	MatchAll = "*"
)

// Query is a search request.
type Query struct {
	Text string
	Top  int
}

// Normalized returns q with blank text replaced by MatchAll and Top bounded to 1..MaxTop.
func (q Query) Normalized() Query {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		q.Text = MatchAll
	}
	switch {
	case q.Top <= 0:
		q.Top = DefaultTop
	case q.Top > MaxTop:
		q.Top = MaxTop
	}
	return q
}

// IsMatchAll reports whether the query matches every document.
func (q Query) IsMatchAll() bool {
	t := strings.TrimSpace(q.Text)
	return t == "" || t == MatchAll
}

// Document is one ranked hit.
type Document struct {
	ID            string         `json:"id"`
	Content       string         `json:"content"`
	Score         float64        `json:"score"`
	RerankerScore *float64       `json:"rerankerScore,omitempty"`
	Caption       string         `json:"caption,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
}

// Answer is an extractive answer produced by the provider.
type Answer struct {
	Key        string  `json:"key,omitempty"`
	Text       string  `json:"text"`
	Highlights string  `json:"highlights,omitempty"`
	Score      float64 `json:"score"`
}

// Result holds documents in provider order and any extractive answers.
type Result struct {
	Documents []Document `json:"documents"`
	Answers   []Answer   `json:"answers"`
}

// Gateway runs a query against a search provider.
type Gateway interface {
	Search(ctx context.Context, q Query) (Result, error)
}

// OptionalFields are index fields mirrored into Document.Fields when the provider returns them.
var OptionalFields = []string{
	"roles",
	"career",
	"contact",
	"personality",
	"name",
	"keywords",
	"chunk",
	"title",
	"resume_url",
	"vector",
}

// ExtractFields applies the optional-field rule: a field present in raw is decoded and
// included; an absent field is omitted. Returns nil when nothing matched.
func ExtractFields(raw map[string]json.RawMessage) map[string]any {
	var out map[string]any
	for _, name := range OptionalFields {
		value, ok := raw[name]
		if !ok {
			continue
		}
		var decoded any
		if err := json.Unmarshal(value, &decoded); err != nil {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(OptionalFields))
		}
		out[name] = decoded
	}
	return out
}

// FieldsFromMap applies the optional-field rule to already-decoded values.
func FieldsFromMap(values map[string]any) map[string]any {
	var out map[string]any
	for _, name := range OptionalFields {
		value, ok := values[name]
		if !ok {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(OptionalFields))
		}
		out[name] = value
	}
	return out
}
