package vectorstore

import (
	"context"
	"errors"
	"math"
	"sort"

	"legalrag/internal/domain"
)

var (
	// ErrNotFound means the index location has never been built.
	ErrNotFound = errors.New("vector index not found; ingest documents first")
	// ErrEmptyBuild means Build was called with no passages. An empty index
	// can never answer a query, so this is rejected before any side effect.
	ErrEmptyBuild = errors.New("refusing to build an empty index")
	// ErrModelMismatch means the persisted index was embedded with a
	// different model than the one currently configured.
	ErrModelMismatch = errors.New("index embedding model does not match configured embedder")
)

// Storage owns the (passage, vector) pairs for one knowledge base. Build is
// a whole-replace operation: it embeds, stores and persists, overwriting
// whatever the location held. Load reconstructs from the persisted location
// without re-embedding. Search requires a built or loaded index.
type Storage interface {
	Build(ctx context.Context, passages []domain.Passage) error
	Load(ctx context.Context) error
	Count() int
	Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error)
}

// cosine computes cosine similarity; mismatched or zero vectors score 0.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
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

// RankTopK scores every stored vector against the query and returns the
// topK best, descending. The stable sort breaks score ties by insertion
// order so results are deterministic. topK beyond the index size returns
// everything; topK <= 0 falls back to defaultK.
func RankTopK(passages []domain.Passage, vectors [][]float64, query []float64, topK, defaultK int) []domain.SearchResult {
	if topK <= 0 {
		topK = defaultK
	}
	results := make([]domain.SearchResult, len(passages))
	for i := range passages {
		results[i] = domain.SearchResult{
			Passage: passages[i],
			Score:   cosine(vectors[i], query),
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results
}
