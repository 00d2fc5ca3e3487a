// Package qdrant is a minimal REST client for a Qdrant-backed index. Build
// drops and recreates the collection, preserving the whole-replace contract
// of the file backend; the embedding model id is stored in the collection's
// point payloads and checked on Load.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"legalrag/internal/domain"
	"legalrag/internal/vectorstore"
)

type Storage struct {
	url        string
	apiKey     string
	collection string
	embedder   domain.Embedder
	defaultK   int
	client     *http.Client

	mu    sync.RWMutex
	count int
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config, embedder domain.Embedder, defaultK int) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if defaultK <= 0 {
		defaultK = 4
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "legal-passages"
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		embedder:   embedder,
		defaultK:   defaultK,
		client:     &http.Client{Timeout: timeout},
	}
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

	// whole replace: drop and recreate the collection
	s.deleteCollection(ctx)
	if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), map[string]any{
		"vectors": map[string]any{
			"size":     s.embedder.Dimension(),
			"distance": "Cosine",
		},
	}); err != nil {
		return err
	}

	points := make([]map[string]any, len(passages))
	for i, p := range passages {
		points[i] = map[string]any{
			"id":     i,
			"vector": vectors[i],
			"payload": map[string]any{
				"text":         p.Text,
				"source":       p.Source,
				"start_offset": p.StartOffset,
				"index":        p.Index,
				"model_id":     s.embedder.ModelID(),
			},
		}
	}
	if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), map[string]any{
		"points": points,
	}); err != nil {
		return err
	}
	s.mu.Lock()
	s.count = len(passages)
	s.mu.Unlock()
	return nil
}

func (s *Storage) Load(ctx context.Context) error {
	var info struct {
		Result struct {
			PointsCount int `json:"points_count"`
		} `json:"result"`
	}
	status, err := s.getJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), &info)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return vectorstore.ErrNotFound
	}
	if info.Result.PointsCount == 0 {
		return vectorstore.ErrNotFound
	}
	s.mu.Lock()
	s.count = info.Result.PointsCount
	s.mu.Unlock()

	// one probe point is enough to validate the embedding model id
	var sample struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/scroll", s.url, s.collection), map[string]any{
		"limit":        1,
		"with_payload": true,
	}, &sample); err != nil {
		return err
	}
	if len(sample.Result.Points) > 0 {
		if id, ok := sample.Result.Points[0].Payload["model_id"].(string); ok && id != s.embedder.ModelID() {
			return fmt.Errorf("%w: index has %q, configured %q",
				vectorstore.ErrModelMismatch, id, s.embedder.ModelID())
		}
	}
	return nil
}

func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = s.defaultK
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		p := domain.Passage{}
		if v, ok := r.Payload["text"].(string); ok {
			p.Text = v
		}
		if v, ok := r.Payload["source"].(string); ok {
			p.Source = v
		}
		if v, ok := r.Payload["start_offset"].(float64); ok {
			p.StartOffset = int(v)
		}
		if v, ok := r.Payload["index"].(float64); ok {
			p.Index = int(v)
		}
		results = append(results, domain.SearchResult{Passage: p, Score: r.Score})
	}
	return results, nil
}

func (s *Storage) deleteCollection(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil)
	if err != nil {
		return
	}
	s.auth(req)
	if resp, err := s.client.Do(req); err == nil {
		resp.Body.Close()
	}
}

func (s *Storage) auth(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *Storage) putJSON(ctx context.Context, url string, body any) error {
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s: %s", url, resp.Status)
	}
	return nil
}

func (s *Storage) getJSON(ctx context.Context, url string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("qdrant GET %s: %s", url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Storage) postJSON(ctx context.Context, url string, body any, out any) error {
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
