// Package local is a self-contained search provider: a bleve keyword index over stored
// resumes fused with cosine similarity against their stored embeddings.
package local

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"resume-intake/internal/resumestore"
	"resume-intake/internal/search"
	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/telemetry"
)

const provider = "local-search"

// QueryEmbedder turns query text into a vector comparable with stored embeddings.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Source supplies the documents to index.
type Source interface {
	ListResumes(ctx context.Context) ([]resumestore.Entry, error)
	ListEmbeddings(ctx context.Context, email string) ([]resumestore.EmbeddingRecord, error)
}

// Options configures an Index. An empty Path keeps the index in memory.
type Options struct {
	Path           string
	KeywordWeight  float64
	SemanticWeight float64
	Embedder       QueryEmbedder
	Source         Source
}

type resumeDoc struct {
	key     string
	email   string
	content string
}

type addedDoc struct {
	doc    resumeDoc
	vector []float64
}

// Index implements search.Gateway.
type Index struct {
	mu      sync.RWMutex
	index   bleve.Index
	docs    map[string]resumeDoc
	vectors map[string][]float64
	// added collects Add calls made while a Reindex is reading the source; nil otherwise.
	added map[string]addedDoc

	reindexMu sync.Mutex

	keywordWeight  float64
	semanticWeight float64
	embedder       QueryEmbedder
	source         Source
}

// New creates or opens the bleve index.
func New(opts Options) (*Index, error) {
	if opts.Source == nil {
		return nil, errs.Config(provider, "resume source")
	}
	kw, sem := opts.KeywordWeight, opts.SemanticWeight
	if kw < 0 || sem < 0 {
		return nil, &errs.ConfigError{Component: provider, Setting: "SEARCH_KEYWORD_WEIGHT/SEARCH_SEMANTIC_WEIGHT", Reason: "must not be negative"}
	}
	if kw == 0 && sem == 0 {
		kw, sem = 0.5, 0.5
	}

	idx, err := openIndex(opts.Path)
	if err != nil {
		return nil, err
	}
	return &Index{
		index:          idx,
		docs:           map[string]resumeDoc{},
		vectors:        map[string][]float64{},
		keywordWeight:  kw,
		semanticWeight: sem,
		embedder:       opts.Embedder,
		source:         opts.Source,
	}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("email", keywordFieldMapping)
	im.AddDocumentMapping("resume", docMapping)
	im.DefaultType = "resume"
	im.DefaultMapping = docMapping
	return im
}

func openIndex(path string) (bleve.Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory search index: %w", err)
		}
		return idx, nil
	}
	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open search index: %w", openErr)
		}
		return idx, nil
	}
	idx, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}
	return idx, nil
}

// Reindex rebuilds the index from the source. Resumes no longer stored are removed; each
// resume is paired with the newest embedding stored for its email.
// Resumes added while the source is being read are kept even when the snapshot misses them.
func (ix *Index) Reindex(ctx context.Context) (search.IndexStats, error) {
	ix.reindexMu.Lock()
	defer ix.reindexMu.Unlock()

	start := time.Now()
	ix.mu.Lock()
	ix.added = map[string]addedDoc{}
	ix.mu.Unlock()
	defer func() {
		ix.mu.Lock()
		ix.added = nil
		ix.mu.Unlock()
	}()

	entries, err := ix.source.ListResumes(ctx)
	if err != nil {
		return search.IndexStats{}, err
	}
	records, err := ix.source.ListEmbeddings(ctx, "")
	if err != nil {
		return search.IndexStats{}, err
	}

	docs := make(map[string]resumeDoc, len(entries))
	for _, e := range entries {
		docs[e.Key] = resumeDoc{key: e.Key, content: string(e.Content)}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	vectors := make(map[string][]float64, len(records))
	for _, rec := range records {
		key := resumestore.ResumeKey(rec.Email)
		doc, ok := docs[key]
		if !ok {
			continue
		}
		doc.email = rec.Email
		docs[key] = doc
		vectors[key] = rec.Embedding
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for key, a := range ix.added {
		docs[key] = a.doc
		if len(a.vector) > 0 {
			vectors[key] = a.vector
		}
	}
	batch := ix.index.NewBatch()
	for key, doc := range docs {
		if err := batch.Index(key, doc.fields()); err != nil {
			return search.IndexStats{}, fmt.Errorf("index %s: %w", key, err)
		}
	}

	removed := 0
	for key := range ix.docs {
		if _, ok := docs[key]; !ok {
			batch.Delete(key)
			removed++
		}
	}
	if err := ix.index.Batch(batch); err != nil {
		return search.IndexStats{}, fmt.Errorf("apply index batch: %w", err)
	}
	ix.docs = docs
	ix.vectors = vectors

	stats := search.IndexStats{Resumes: len(docs), Embeddings: len(vectors), Removed: removed}
	telemetry.Info("search.reindexed", map[string]any{
		"resumes":     stats.Resumes,
		"embeddings":  stats.Embeddings,
		"removed":     stats.Removed,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return stats, nil
}

// Add indexes a single resume and its vector without a full rebuild.
func (ix *Index) Add(email, content string, vector []float64) error {
	key := resumestore.ResumeKey(email)
	doc := resumeDoc{key: key, email: email, content: content}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.index.Index(key, doc.fields()); err != nil {
		return fmt.Errorf("index %s: %w", key, err)
	}
	ix.docs[key] = doc
	if len(vector) > 0 {
		ix.vectors[key] = vector
	}
	if ix.added != nil {
		ix.added[key] = addedDoc{doc: doc, vector: vector}
	}
	return nil
}

// Search runs the keyword query, re-scores with cosine similarity when an embedder is
// configured, and fuses both into one ranking. The query is embedded before the index lock
// is taken.
func (ix *Index) Search(ctx context.Context, q search.Query) (search.Result, error) {
	q = q.Normalized()
	var queryVector []float64
	if !q.IsMatchAll() {
		queryVector = ix.embedQuery(ctx, q.Text)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if q.IsMatchAll() {
		return ix.matchAll(q.Top)
	}

	size := q.Top * 4
	if size < 50 {
		size = 50
	}
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(q.Text))
	req.Size = size
	req.Highlight = bleve.NewHighlight()
	res, err := ix.index.Search(req)
	if err != nil {
		return search.Result{}, errs.Upstream(provider, "search", err)
	}

	keywordScores := make(map[string]float64, len(res.Hits))
	captions := make(map[string]string, len(res.Hits))
	maxScore := 0.0
	for _, hit := range res.Hits {
		keywordScores[hit.ID] = hit.Score
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
		if frags := hit.Fragments["content"]; len(frags) > 0 {
			captions[hit.ID] = frags[0]
		}
	}
	for id, score := range keywordScores {
		if maxScore > 0 {
			keywordScores[id] = score / maxScore
		} else {
			keywordScores[id] = 0
		}
	}

	semanticScores := ix.semanticScores(queryVector)
	fused := fuse(keywordScores, semanticScores, ix.keywordWeight, ix.semanticWeight)
	if len(fused) > q.Top {
		fused = fused[:q.Top]
	}

	result := search.Result{
		Documents: make([]search.Document, 0, len(fused)),
		Answers:   []search.Answer{},
	}
	for _, f := range fused {
		doc, ok := ix.docs[f.id]
		if !ok {
			continue
		}
		out := doc.document(f.score)
		out.Caption = captions[f.id]
		result.Documents = append(result.Documents, out)
	}
	return result, nil
}

func (ix *Index) matchAll(top int) (search.Result, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = top
	req.SortBy([]string{"_id"})
	res, err := ix.index.Search(req)
	if err != nil {
		return search.Result{}, errs.Upstream(provider, "search", err)
	}
	result := search.Result{
		Documents: make([]search.Document, 0, len(res.Hits)),
		Answers:   []search.Answer{},
	}
	for _, hit := range res.Hits {
		doc, ok := ix.docs[hit.ID]
		if !ok {
			continue
		}
		result.Documents = append(result.Documents, doc.document(hit.Score))
	}
	return result, nil
}

// embedQuery returns nil when semantic scoring is off or has nothing to compare against.
// An embedding failure degrades the query to keyword-only ranking.
func (ix *Index) embedQuery(ctx context.Context, text string) []float64 {
	if ix.embedder == nil || ix.semanticWeight == 0 {
		return nil
	}
	ix.mu.RLock()
	empty := len(ix.vectors) == 0
	ix.mu.RUnlock()
	if empty {
		return nil
	}
	qv, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		telemetry.Warn("search.query_embedding_failed", map[string]any{"error": err})
		return nil
	}
	return qv
}

// semanticScores scores every indexed vector against qv. Callers hold ix.mu.
func (ix *Index) semanticScores(qv []float64) map[string]float64 {
	if len(qv) == 0 {
		return nil
	}
	scores := make(map[string]float64, len(ix.vectors))
	for key, vec := range ix.vectors {
		if s := cosine(qv, vec); s > 0 {
			scores[key] = s
		}
	}
	return scores
}

// Close releases the underlying index.
func (ix *Index) Close() error {
	return ix.index.Close()
}

func (d resumeDoc) fields() map[string]any {
	return map[string]any{
		"content": d.content,
		"title":   d.key,
		"email":   d.email,
	}
}

func (d resumeDoc) document(score float64) search.Document {
	values := map[string]any{
		"title":      d.key,
		"resume_url": resumestore.BucketResumes + "/" + d.key,
	}
	if d.email != "" {
		values["contact"] = d.email
	}
	return search.Document{
		ID:      d.key,
		Content: d.content,
		Score:   score,
		Fields:  search.FieldsFromMap(values),
	}
}

type fused struct {
	id    string
	score float64
}

// fuse combines normalized keyword scores with semantic scores and sorts by the weighted sum.
func fuse(keywordScores, semanticScores map[string]float64, keywordWeight, semanticWeight float64) []fused {
	ids := make(map[string]struct{}, len(keywordScores)+len(semanticScores))
	for id := range keywordScores {
		ids[id] = struct{}{}
	}
	for id := range semanticScores {
		ids[id] = struct{}{}
	}
	out := make([]fused, 0, len(ids))
	for id := range ids {
		out = append(out, fused{
			id:    id,
			score: keywordWeight*keywordScores[id] + semanticWeight*semanticScores[id],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})
	return out
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var (
	_ search.Gateway   = (*Index)(nil)
	_ search.Reindexer = (*Index)(nil)
)
