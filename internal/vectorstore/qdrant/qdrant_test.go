package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"legalrag/internal/domain"
	"legalrag/internal/embedding"
	"legalrag/internal/vectorstore"
)

// fakeQdrant serves just enough of the REST surface for the storage client.
type fakeQdrant struct {
	modelID string

	mu      sync.Mutex
	created bool
	points  int
}

func (f *fakeQdrant) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodDelete:
			io.WriteString(w, `{"result":true}`)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/legal":
			f.created = true
			io.WriteString(w, `{"result":true}`)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/legal/points":
			var body struct {
				Points []json.RawMessage `json:"points"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			f.points = len(body.Points)
			io.WriteString(w, `{"result":true}`)
		case r.Method == http.MethodGet && r.URL.Path == "/collections/legal":
			if !f.created {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprintf(w, `{"result":{"points_count":%d}}`, f.points)
		case r.URL.Path == "/collections/legal/points/scroll":
			fmt.Fprintf(w, `{"result":{"points":[{"payload":{"model_id":%q}}]}}`, f.modelID)
		case r.URL.Path == "/collections/legal/points/search":
			io.WriteString(w, `{"result":[{"score":0.9,"payload":{"text":"The lease is renewed annually.","source":"lease.txt","start_offset":0,"index":0}}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func TestQdrantBuildLoadCount(t *testing.T) {
	emb := embedding.NewLocal()
	server := &fakeQdrant{modelID: emb.ModelID()}
	srv := httptest.NewServer(server.handler())
	defer srv.Close()
	ctx := context.Background()

	store := NewStorage(Config{URL: srv.URL, Collection: "legal"}, emb, 4)
	if err := store.Load(ctx); !errors.Is(err, vectorstore.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound before any build, got %v", err)
	}
	if store.Count() != 0 {
		t.Errorf("Expected count 0 before build, got %d", store.Count())
	}

	passages := []domain.Passage{
		{Text: "The lease is renewed annually.", Source: "lease.txt", Index: 0},
		{Text: "The tenant pays rent monthly.", Source: "lease.txt", Index: 1},
	}
	if err := store.Build(ctx, passages); err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if store.Count() != 2 {
		t.Errorf("Expected count 2 after build, got %d", store.Count())
	}

	// A fresh client over the same collection picks up the count on load.
	fresh := NewStorage(Config{URL: srv.URL, Collection: "legal"}, emb, 4)
	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if fresh.Count() != 2 {
		t.Errorf("Expected reloaded count 2, got %d", fresh.Count())
	}

	vec, err := emb.Embed(ctx, "When is the lease renewed?")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	results, err := fresh.Search(ctx, vec, 1)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 1 || results[0].Passage.Source != "lease.txt" {
		t.Errorf("Unexpected search results: %v", results)
	}
}

func TestQdrantLoadRejectsModelMismatch(t *testing.T) {
	emb := embedding.NewLocal()
	server := &fakeQdrant{modelID: "some-other-model", created: true, points: 3}
	srv := httptest.NewServer(server.handler())
	defer srv.Close()

	store := NewStorage(Config{URL: srv.URL, Collection: "legal"}, emb, 4)
	if err := store.Load(context.Background()); !errors.Is(err, vectorstore.ErrModelMismatch) {
		t.Errorf("Expected ErrModelMismatch, got %v", err)
	}
}

func TestQdrantBuildRejectsEmptyInput(t *testing.T) {
	store := NewStorage(Config{URL: "http://localhost:1", Collection: "legal"}, embedding.NewLocal(), 4)
	if err := store.Build(context.Background(), nil); !errors.Is(err, vectorstore.ErrEmptyBuild) {
		t.Errorf("Expected ErrEmptyBuild, got %v", err)
	}
}
