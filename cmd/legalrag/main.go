package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"legalrag/internal/chunker"
	"legalrag/internal/config"
	"legalrag/internal/domain"
	"legalrag/internal/embedding"
	"legalrag/internal/llm"
	"legalrag/internal/recognizer"
	"legalrag/internal/service"
	"legalrag/internal/tui"
	"legalrag/internal/vectorstore"
	"legalrag/internal/vectorstore/file"
	"legalrag/internal/vectorstore/memory"
	"legalrag/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath   string
		ingest    string
		ask       string
		summarize string
		entities  string
		citations string
		compare   string
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; env vars override)")
	flag.StringVar(&ingest, "ingest", "", "Comma-separated glob patterns of .txt files to (re)build the index from")
	flag.StringVar(&ask, "ask", "", "Ask a single question and print the answer")
	flag.StringVar(&summarize, "summarize", "", "Summarize one .txt file")
	flag.StringVar(&entities, "entities", "", "Extract entities from one .txt file")
	flag.StringVar(&citations, "citations", "", "Extract citations from one .txt file")
	flag.StringVar(&compare, "compare", "", "Compare two .txt files, given as fileA,fileB")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	batch := ingest != "" || ask != "" || summarize != "" || entities != "" || citations != "" || compare != ""

	// The TUI owns the terminal, so batch runs log structured output and
	// the interactive run stays quiet.
	logger := zap.NewNop()
	if batch {
		logger, err = zap.NewProduction()
		if err != nil {
			log.Fatalf("failed to init logger: %v", err)
		}
		defer logger.Sync()
	}

	engine, err := assemble(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()

	if ingest != "" {
		patterns := strings.Split(ingest, ",")
		n, err := engine.IngestFiles(ctx, patterns)
		if err != nil {
			log.Fatalf("ingest failed: %v", err)
		}
		fmt.Printf("Indexed %d passages.\n", n)
	}

	switch {
	case ask != "":
		ans, err := engine.AnswerQuestion(ctx, ask)
		if err != nil {
			log.Fatalf("question failed: %v", err)
		}
		fmt.Println(ans.Answer)
		for i, src := range ans.Sources {
			fmt.Printf("\n[%d] %s (offset %d)\n%s\n", i+1, src.Source, src.StartOffset, src.Text)
		}
	case summarize != "":
		passages := mustChunk(cfg, summarize)
		sum, err := engine.Summarize(ctx, passages)
		if err != nil {
			log.Fatalf("summarize failed: %v", err)
		}
		fmt.Println(sum.Text)
	case entities != "":
		report := engine.ExtractEntities(ctx, mustRead(entities))
		printJSON(report)
	case citations != "":
		found := engine.ExtractCitations(mustRead(citations))
		for _, c := range found {
			fmt.Println(c)
		}
	case compare != "":
		parts := strings.SplitN(compare, ",", 2)
		if len(parts) != 2 {
			log.Fatalf("-compare expects fileA,fileB")
		}
		diff, err := engine.CompareDocuments(ctx, mustChunk(cfg, parts[0]), mustChunk(cfg, parts[1]))
		if err != nil {
			log.Fatalf("compare failed: %v", err)
		}
		fmt.Println(diff.Differences)
	case ingest != "":
		// ingest-only run, nothing interactive to do
	default:
		banner := fmt.Sprintf("provider=%s  store=%s  index=%s", cfg.LLM.Provider, cfg.Index.Store, cfg.Index.Dir)
		m := tui.New(engine, banner)
		if _, err := tea.NewProgram(m).Run(); err != nil {
			log.Fatal(err)
		}
	}
}

// assemble builds an engine from configuration: embedder, chunker, storage
// backend, model provider and the rule-based recognizer.
func assemble(cfg *config.Config, logger *zap.Logger) (*service.Engine, error) {
	var emb domain.Embedder
	switch cfg.Embedding.Provider {
	case "local", "":
		emb = embedding.NewLocal()
	case "openai":
		client, err := embedding.NewOpenAI(cfg.LLM.OpenAIAPIKey, cfg.Embedding.Model)
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}

	ch := chunker.NewRecursive(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)

	var st vectorstore.Storage
	switch cfg.Index.Store {
	case "file", "":
		st = file.NewStorage(cfg.Index.Dir, emb, cfg.Index.TopK)
	case "memory":
		st = memory.NewStorage(emb, cfg.Index.TopK)
	case "qdrant":
		st = qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Index.Qdrant.URL,
			APIKey:     cfg.Index.Qdrant.APIKey,
			Collection: cfg.Index.Qdrant.Collection,
		}, emb, cfg.Index.TopK)
	default:
		return nil, fmt.Errorf("unknown index store: %s", cfg.Index.Store)
	}

	provider, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("language model init failed: %w", err)
	}

	return service.New(cfg, ch, emb, st, provider, recognizer.New(), logger), nil
}

func mustRead(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func mustChunk(cfg *config.Config, path string) []domain.Passage {
	ch := chunker.NewRecursive(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	passages, err := ch.Chunk(domain.Document{
		ID:      filepath.Base(path),
		Path:    path,
		Content: mustRead(path),
	})
	if err != nil {
		log.Fatalf("chunk %s: %v", path, err)
	}
	if len(passages) == 0 {
		log.Fatalf("no text could be extracted from %s", path)
	}
	return passages
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode output: %v", err)
	}
}
