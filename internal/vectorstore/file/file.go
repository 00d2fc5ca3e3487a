// Package file persists the vector index as a single gob file. Build writes
// to a temp file in the same directory and renames it over the live index,
// so readers either see the old index or the new one, never a partial write.
package file

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"legalrag/internal/domain"
	"legalrag/internal/vectorstore"
)

const indexFileName = "index.gob"

// persistedIndex is the on-disk representation. The embedding model id
// travels with the vectors: an index queried with a different model would
// return silently wrong neighbors, so Load rejects the mismatch instead.
type persistedIndex struct {
	ModelID   string
	Dimension int
	Passages  []domain.Passage
	Vectors   [][]float64
	CreatedAt time.Time
}

// Storage is the default index backend: whole-replace gob persistence with
// brute-force cosine search over the loaded vectors.
type Storage struct {
	dir      string
	embedder domain.Embedder
	defaultK int

	mu       sync.RWMutex
	passages []domain.Passage
	vectors  [][]float64
	loaded   bool
}

func NewStorage(dir string, embedder domain.Embedder, defaultK int) *Storage {
	if defaultK <= 0 {
		defaultK = 4
	}
	return &Storage{dir: dir, embedder: embedder, defaultK: defaultK}
}

func (s *Storage) path() string { return filepath.Join(s.dir, indexFileName) }

// Build embeds the passages and replaces the persisted index. Nothing is
// written until every passage has been embedded.
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

	idx := persistedIndex{
		ModelID:   s.embedder.ModelID(),
		Dimension: s.embedder.Dimension(),
		Passages:  passages,
		Vectors:   vectors,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.persist(&idx); err != nil {
		return err
	}

	s.mu.Lock()
	s.passages = passages
	s.vectors = vectors
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *Storage) persist(idx *persistedIndex) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp := s.path() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(idx); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode index: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	// atomic swap over any previous index
	return os.Rename(tmp, s.path())
}

// Load reads the persisted index into memory. A location that was never
// built yields ErrNotFound, not a crash.
func (s *Storage) Load(_ context.Context) error {
	f, err := os.Open(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return vectorstore.ErrNotFound
		}
		return err
	}
	defer f.Close()

	var idx persistedIndex
	if err := gob.NewDecoder(f).Decode(&idx); err != nil {
		return fmt.Errorf("decode index: %w", err)
	}
	if idx.ModelID != s.embedder.ModelID() {
		return fmt.Errorf("%w: index has %q, configured %q",
			vectorstore.ErrModelMismatch, idx.ModelID, s.embedder.ModelID())
	}

	s.mu.Lock()
	s.passages = idx.Passages
	s.vectors = idx.Vectors
	s.loaded = true
	s.mu.Unlock()
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
	if !s.loaded {
		return nil, vectorstore.ErrNotFound
	}
	return vectorstore.RankTopK(s.passages, s.vectors, vector, topK, s.defaultK), nil
}
