// Package memory keeps the index in process memory only. It backs tests and
// throwaway sessions; nothing survives a restart, so Load on a fresh store
// reports the same not-found condition a missing file would.
package memory

import (
	"context"
	"fmt"
	"sync"

	"legalrag/internal/domain"
	"legalrag/internal/vectorstore"
)

type Storage struct {
	embedder domain.Embedder
	defaultK int

	mu       sync.RWMutex
	passages []domain.Passage
	vectors  [][]float64
	built    bool
}

func NewStorage(embedder domain.Embedder, defaultK int) *Storage {
	if defaultK <= 0 {
		defaultK = 4
	}
	return &Storage{embedder: embedder, defaultK: defaultK}
}

func (s *Storage) Build(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return vectorstore.ErrEmptyBuild
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed passages: %w", err)
	}
	s.mu.Lock()
	s.passages = passages
	s.vectors = vectors
	s.built = true
	s.mu.Unlock()
	return nil
}

func (s *Storage) Load(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.built {
		return vectorstore.ErrNotFound
	}
	return nil
}

func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages)
}

func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.built {
		return nil, vectorstore.ErrNotFound
	}
	return vectorstore.RankTopK(s.passages, s.vectors, vector, topK, s.defaultK), nil
}
