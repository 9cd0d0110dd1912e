// Package azure queries an Azure AI Search index over its REST API.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"resume-intake/internal/search"
	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/metrics"
	"resume-intake/internal/shared/telemetry"
)

const provider = "azure-search"

const (
	QueryTypeSemantic = "semantic"
	QueryTypeSimple   = "simple"
)

// Options configures a Gateway.
type Options struct {
	Endpoint       string
	APIKey         string
	APIVersion     string
	Index          string
	SemanticConfig string
	QueryType      string
	Timeout        time.Duration
	HTTPClient     *http.Client
	// SelectFields defaults to DefaultSelectFields.
	SelectFields []string
}

// DefaultSelectFields returns id, content and every optional resume field.
func DefaultSelectFields() []string {
	return append([]string{"id", "content"}, search.OptionalFields...)
}

// Gateway implements search.Gateway. Ranking is left to the service.
type Gateway struct {
	searchURL      string
	apiKey         string
	semanticConfig string
	queryType      string
	selectFields   string
	httpClient     *http.Client
}

// New validates opts and returns a Gateway.
func New(opts Options) (*Gateway, error) {
	if err := errs.RequireSettings(provider,
		[2]string{"AZURE_SEARCH_ENDPOINT", opts.Endpoint},
		[2]string{"AZURE_SEARCH_API_KEY", opts.APIKey},
		[2]string{"AZURE_SEARCH_INDEX", opts.Index},
		[2]string{"AZURE_SEARCH_API_VERSION", opts.APIVersion},
	); err != nil {
		return nil, err
	}
	queryType := strings.ToLower(strings.TrimSpace(opts.QueryType))
	if queryType == "" {
		queryType = QueryTypeSemantic
	}
	if queryType != QueryTypeSemantic && queryType != QueryTypeSimple {
		return nil, &errs.ConfigError{Component: provider, Setting: "SEARCH_QUERY_TYPE", Reason: "must be semantic or simple"}
	}
	if queryType == QueryTypeSemantic && strings.TrimSpace(opts.SemanticConfig) == "" {
		return nil, errs.Config(provider, "AZURE_SEARCH_SEMANTIC_CONFIG")
	}

	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, &errs.ConfigError{Component: provider, Setting: "AZURE_SEARCH_ENDPOINT", Reason: "is not a valid URL"}
	}
	searchURL := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s",
		endpoint, url.PathEscape(opts.Index), url.QueryEscape(opts.APIVersion))

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	selectFields := opts.SelectFields
	if len(selectFields) == 0 {
		selectFields = DefaultSelectFields()
	}

	return &Gateway{
		searchURL:      searchURL,
		apiKey:         opts.APIKey,
		semanticConfig: opts.SemanticConfig,
		queryType:      queryType,
		selectFields:   strings.Join(selectFields, ","),
		httpClient:     httpClient,
	}, nil
}

type searchRequest struct {
	Search                string `json:"search"`
	QueryType             string `json:"queryType"`
	SemanticConfiguration string `json:"semanticConfiguration,omitempty"`
	Top                   int    `json:"top"`
	Select                string `json:"select,omitempty"`
	Captions              string `json:"captions,omitempty"`
	Answers               string `json:"answers,omitempty"`
}

type searchResponse struct {
	Value   []map[string]json.RawMessage `json:"value"`
	Answers []struct {
		Key        string  `json:"key"`
		Text       string  `json:"text"`
		Highlights string  `json:"highlights"`
		Score      float64 `json:"score"`
	} `json:"@search.answers"`
}

type caption struct {
	Text       string `json:"text"`
	Highlights string `json:"highlights"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search sends one query and returns documents in service order.
func (g *Gateway) Search(ctx context.Context, q search.Query) (search.Result, error) {
	q = q.Normalized()
	reqBody := searchRequest{
		Search:    q.Text,
		QueryType: g.queryType,
		Top:       q.Top,
		Select:    g.selectFields,
	}
	if g.queryType == QueryTypeSemantic {
		reqBody.SemanticConfiguration = g.semanticConfig
		reqBody.Captions = "extractive"
		reqBody.Answers = "extractive"
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return search.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.searchURL, bytes.NewReader(payload))
	if err != nil {
		return search.Result{}, err
	}
	req.Header.Set("api-key", g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	metrics.ObserveUpstream(provider, time.Since(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return search.Result{}, &errs.UpstreamError{Provider: provider, Op: "search", Message: "request timeout", Err: err}
		}
		return search.Result{}, errs.Upstream(provider, "search", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return search.Result{}, errs.Upstream(provider, "search", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return search.Result{}, errs.UpstreamStatus(provider, "search", resp.StatusCode, errorMessage(body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return search.Result{}, errs.Upstream(provider, "search", fmt.Errorf("parse response: %w", err))
	}

	result := search.Result{
		Documents: make([]search.Document, 0, len(parsed.Value)),
		Answers:   make([]search.Answer, 0, len(parsed.Answers)),
	}
	for _, raw := range parsed.Value {
		result.Documents = append(result.Documents, toDocument(raw))
	}
	for _, a := range parsed.Answers {
		result.Answers = append(result.Answers, search.Answer{Key: a.Key, Text: a.Text, Highlights: a.Highlights, Score: a.Score})
	}

	telemetry.Info("search.completed", map[string]any{
		"provider":    provider,
		"query_type":  g.queryType,
		"top":         q.Top,
		"documents":   len(result.Documents),
		"answers":     len(result.Answers),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result, nil
}

func toDocument(raw map[string]json.RawMessage) search.Document {
	doc := search.Document{Fields: search.ExtractFields(raw)}
	decode(raw["id"], &doc.ID)
	decode(raw["content"], &doc.Content)
	decode(raw["@search.score"], &doc.Score)

	var reranker float64
	if decode(raw["@search.rerankerScore"], &reranker) {
		doc.RerankerScore = &reranker
	}

	var captions []caption
	if decode(raw["@search.captions"], &captions) && len(captions) > 0 {
		doc.Caption = captions[0].Highlights
		if doc.Caption == "" {
			doc.Caption = captions[0].Text
		}
	}
	return doc
}

func decode(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func errorMessage(body []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return truncateRunes(strings.TrimSpace(string(body)), maxErrorMessageBytes)
}

const maxErrorMessageBytes = 512

// truncateRunes cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

var _ search.Gateway = (*Gateway)(nil)
