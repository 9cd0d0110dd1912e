package local

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"resume-intake/internal/resumestore"
	"resume-intake/internal/search"
	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/storage/object/memory"
)

type vectorTable map[string][]float64

func (v vectorTable) Embed(_ context.Context, text string) ([]float64, error) {
	vec, ok := v[text]
	if !ok {
		return nil, errors.New("no vector for query")
	}
	return vec, nil
}

func seedStore(t *testing.T) *resumestore.Store {
	t.Helper()
	store, err := resumestore.New(memory.New(), time.Second)
	if err != nil {
		t.Fatalf("resumestore.New: %v", err)
	}
	ctx := context.Background()
	resumes := map[string]string{
		"a@b.com": "Jane Doe\nProfessional Summary: certified welder with ten years in shipyards.",
		"c@d.com": "John Roe\nProfessional Summary: backend engineer writing Go services.",
		"e@f.com": "Ann Lee\nProfessional Summary: pastry chef and bakery manager.",
	}
	for email, text := range resumes {
		if _, err := store.StoreResume(ctx, email, text); err != nil {
			t.Fatalf("StoreResume: %v", err)
		}
	}
	vectors := map[string][]float64{
		"a@b.com": {1, 0, 0},
		"c@d.com": {0, 1, 0},
	}
	for email, vec := range vectors {
		if _, err := store.StoreEmbedding(ctx, resumestore.EmbeddingRecord{Email: email, Embedding: vec}); err != nil {
			t.Fatalf("StoreEmbedding: %v", err)
		}
	}
	return store
}

func newTestIndex(t *testing.T, store *resumestore.Store, embedder QueryEmbedder) *Index {
	t.Helper()
	ix, err := New(Options{Source: store, Embedder: embedder, KeywordWeight: 0.5, SemanticWeight: 0.5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = ix.Close() })
	if _, err := ix.Reindex(context.Background()); err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	return ix
}

func TestReindexCountsResumesAndEmbeddings(t *testing.T) {
	store := seedStore(t)
	ix, err := New(Options{Source: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ix.Close()

	stats, err := ix.Reindex(context.Background())
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if stats.Resumes != 3 || stats.Embeddings != 2 || stats.Removed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestKeywordSearchFindsResume(t *testing.T) {
	ix := newTestIndex(t, seedStore(t), nil)

	res, err := ix.Search(context.Background(), search.Query{Text: "welder", Top: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Documents) != 1 {
		t.Fatalf("expected 1 document, got %+v", res.Documents)
	}
	doc := res.Documents[0]
	if doc.ID != "a_b_com_resume.txt" {
		t.Fatalf("unexpected id %q", doc.ID)
	}
	if doc.Score < 0 {
		t.Fatalf("expected non-negative score, got %v", doc.Score)
	}
	if doc.Caption == "" {
		t.Fatalf("expected highlighted caption")
	}
	if doc.Fields["resume_url"] != "resumes/a_b_com_resume.txt" || doc.Fields["contact"] != "a@b.com" {
		t.Fatalf("unexpected fields %v", doc.Fields)
	}
	if res.Answers == nil || len(res.Answers) != 0 {
		t.Fatalf("expected empty answers, got %v", res.Answers)
	}
}

func TestSemanticScoresReorderResults(t *testing.T) {
	embedder := vectorTable{"summary": {0, 1, 0}}
	ix := newTestIndex(t, seedStore(t), embedder)

	res, err := ix.Search(context.Background(), search.Query{Text: "summary", Top: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Documents) != 3 {
		t.Fatalf("expected all three resumes, got %d", len(res.Documents))
	}
	if res.Documents[0].ID != "c_d_com_resume.txt" {
		t.Fatalf("expected the semantically closest resume first, got %q", res.Documents[0].ID)
	}
}

func TestQueryEmbeddingFailureFallsBackToKeywords(t *testing.T) {
	ix := newTestIndex(t, seedStore(t), vectorTable{})

	res, err := ix.Search(context.Background(), search.Query{Text: "pastry", Top: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Documents) != 1 || res.Documents[0].ID != "e_f_com_resume.txt" {
		t.Fatalf("unexpected documents %+v", res.Documents)
	}
}

func TestEmptyQueryMatchesAllUpToTop(t *testing.T) {
	ix := newTestIndex(t, seedStore(t), nil)

	res, err := ix.Search(context.Background(), search.Query{Text: "", Top: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(res.Documents))
	}
	if res.Documents[0].ID != "a_b_com_resume.txt" {
		t.Fatalf("expected id order, got %q", res.Documents[0].ID)
	}
}

func TestAddMakesResumeSearchable(t *testing.T) {
	ix := newTestIndex(t, seedStore(t), nil)
	if err := ix.Add("g@h.io", "Grace Hopper\nCOBOL compiler pioneer", []float64{0, 0, 1}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	res, err := ix.Search(context.Background(), search.Query{Text: "cobol"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Documents) != 1 || res.Documents[0].ID != "g_h_io_resume.txt" {
		t.Fatalf("unexpected documents %+v", res.Documents)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Options{}); !errs.IsConfig(err) {
		t.Fatalf("expected config error without source, got %v", err)
	}
	store := seedStore(t)
	if _, err := New(Options{Source: store, KeywordWeight: -1}); !errs.IsConfig(err) {
		t.Fatalf("expected config error for negative weight, got %v", err)
	}
}

func TestCosine(t *testing.T) {
	if got := cosine([]float64{1, 0}, []float64{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected 1, got %v", got)
	}
	if got := cosine([]float64{1, 0}, []float64{0, 1}); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := cosine([]float64{1}, []float64{1, 2}); got != 0 {
		t.Fatalf("expected 0 for length mismatch, got %v", got)
	}
}

func TestFuseOrdersByWeightedScore(t *testing.T) {
	out := fuse(
		map[string]float64{"a": 1, "b": 0.5},
		map[string]float64{"b": 1, "c": 0.9},
		0.5, 0.5,
	)
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	if out[0].id != "b" || out[1].id != "a" || out[2].id != "c" {
		t.Fatalf("unexpected order %+v", out)
	}
}

type blockingEmbedder struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingEmbedder) Embed(ctx context.Context, _ string) ([]float64, error) {
	close(b.entered)
	select {
	case <-b.release:
		return []float64{1, 0, 0}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestAddDoesNotWaitForQueryEmbedding(t *testing.T) {
	emb := &blockingEmbedder{entered: make(chan struct{}), release: make(chan struct{})}
	ix := newTestIndex(t, seedStore(t), emb)

	searched := make(chan error, 1)
	go func() {
		_, err := ix.Search(context.Background(), search.Query{Text: "welder"})
		searched <- err
	}()
	<-emb.entered

	added := make(chan error, 1)
	go func() { added <- ix.Add("g@h.io", "Grace Hopper\nCOBOL compiler pioneer", nil) }()
	select {
	case err := <-added:
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Add blocked behind an in-flight query embedding")
	}

	close(emb.release)
	if err := <-searched; err != nil {
		t.Fatalf("Search: %v", err)
	}
}

// addingSource adds a resume to the index while the index reads its snapshot.
type addingSource struct {
	Source
	onList func()
}

func (s addingSource) ListResumes(ctx context.Context) ([]resumestore.Entry, error) {
	entries, err := s.Source.ListResumes(ctx)
	if s.onList != nil {
		s.onList()
	}
	return entries, err
}

func TestReindexKeepsResumesAddedDuringSnapshot(t *testing.T) {
	var ix *Index
	src := addingSource{Source: seedStore(t)}
	src.onList = func() {
		if err := ix.Add("g@h.io", "Grace Hopper\nCOBOL compiler pioneer", []float64{0, 0, 1}); err != nil {
			t.Errorf("Add: %v", err)
		}
	}
	var err error
	ix, err = New(Options{Source: src})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ix.Close()

	stats, err := ix.Reindex(context.Background())
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if stats.Resumes != 4 || stats.Embeddings != 3 || stats.Removed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	res, err := ix.Search(context.Background(), search.Query{Text: "cobol"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Documents) != 1 || res.Documents[0].ID != "g_h_io_resume.txt" {
		t.Fatalf("resume added during reindex was dropped: %+v", res.Documents)
	}
}
