package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.Provider != "offline" {
		t.Errorf("Expected default provider offline, got %q", cfg.LLM.Provider)
	}
	if cfg.Chunker.ChunkSize != 1000 || cfg.Chunker.ChunkOverlap != 200 {
		t.Errorf("Expected default chunking 1000/200, got %d/%d",
			cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	}
	if cfg.Index.Store != "file" || cfg.Index.TopK != 4 {
		t.Errorf("Expected default store file with top_k 4, got %q/%d",
			cfg.Index.Store, cfg.Index.TopK)
	}
	if cfg.LLM.TimeoutSecs != 60 {
		t.Errorf("Expected default timeout 60s, got %d", cfg.LLM.TimeoutSecs)
	}
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("llm:\n  provider: ollama\nchunker:\n  chunk_size: 500\n  chunk_overlap: 50\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHUNK_SIZE", "800")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("Expected provider ollama from file, got %q", cfg.LLM.Provider)
	}
	if cfg.Chunker.ChunkSize != 800 {
		t.Errorf("Expected env to override chunk_size to 800, got %d", cfg.Chunker.ChunkSize)
	}
	if cfg.Chunker.ChunkOverlap != 50 {
		t.Errorf("Expected chunk_overlap 50 from file, got %d", cfg.Chunker.ChunkOverlap)
	}
}

func TestLoadRejectsOverlapNotSmallerThanSize(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")
	if _, err := Load(""); err == nil {
		t.Error("Expected error when chunk_overlap equals chunk_size")
	}
}

func TestLoadRejectsMalformedEnvInteger(t *testing.T) {
	t.Setenv("TOP_K", "four")
	if _, err := Load(""); err == nil {
		t.Error("Expected error for non-integer TOP_K")
	}
}

func TestValidateQdrantStoreNeedsConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.Index.Store = "qdrant"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for qdrant store without connection config")
	}
	cfg.Index.Qdrant = &QdrantConfig{URL: "http://localhost:6333", Collection: "legal"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid qdrant config to pass, got %v", err)
	}
}
