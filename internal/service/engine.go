// Package service wires the chunker, embedder, vector storage and language
// model provider into the question answering, summarization, extraction and
// comparison operations exposed by the CLI and the TUI.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"legalrag/internal/config"
	"legalrag/internal/domain"
	"legalrag/internal/llm"
	"legalrag/internal/recognizer"
	"legalrag/internal/summarizer"
	"legalrag/internal/vectorstore"
)

// ErrNoIndex is returned by query operations when no index has been built
// yet. It is distinct from an empty answer; the caller must ingest first.
var ErrNoIndex = errors.New("no vector index found; ingest documents first")

const (
	// mapCharBudget bounds how much passage text goes into a single
	// summarization call before map-reduce splits it.
	mapCharBudget = 6000
	// comparePrefixRunes bounds each document's text in the comparison
	// prompt. Model input limits, not a semantic choice.
	comparePrefixRunes = 2000
	// offlineSummarySentences is how many sentences the extractive
	// fallback keeps when no real model is configured.
	offlineSummarySentences = 5
	// maxReduceRounds bounds the combine phase of map-reduce
	// summarization. A model that keeps answering with text over the
	// batch budget would otherwise loop forever.
	maxReduceRounds = 8
)

const answerTemplate = `Use the following pieces of context to answer the question at the end.
If you don't know the answer, just say that you don't know, don't try to make up an answer.
Keep the answer as concise as possible.

%s

Question: %s
Concise Answer:`

const compareTemplate = `Compare the following two legal documents and identify key differences,
especially focusing on changes in clauses, facts, or legal interpretations.
Document 1:
%s

Document 2:
%s

Provide a concise summary of the differences:`

const extractTemplate = `Extract entities from the following legal text. Respond with a single JSON
object and nothing else, using exactly these keys:
  "case_name": string, the name of the legal case (required)
  "parties": array of strings, the parties involved in the case (required)
  "date_of_judgment": string, the date of the judgment or order
  "sections_cited": array of strings, legal sections or acts cited
  "court": string, the court where the case was heard
  "judge": string, the name of the presiding judge(s)

Text:
%s

JSON:`

var (
	sectionCitationRe = regexp.MustCompile(
		`(?i)\b(?:Section|Article|Rule|Order)\s+\d+[A-Za-z]?(?:\s+of\s+the\s+[A-Z][a-zA-Z\s]*(?:Act|Code|Constitution|Rules|Regulation)(?:,\s*\d{4})?)?`)
	caseCitationRe = regexp.MustCompile(`\(\d{4}\)\s+\d+\s+[A-Z]+\s+\d+`)
	codeFenceRe    = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	spaceRe        = regexp.MustCompile(`\s+`)
)

// Answer is the result of a question over the indexed corpus.
type Answer struct {
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
	Sources  []domain.Passage `json:"sources"`
}

// Summary carries the summarization result. Simulated is set when no real
// model was available and the text came from the extractive fallback.
type Summary struct {
	Text      string `json:"summary"`
	Simulated bool   `json:"simulated,omitempty"`
}

// EntityReport holds merged entities from the rule-based recognizer and the
// model's schema-guided extraction. LLMError records a failed model call;
// the operation itself never fails.
type EntityReport struct {
	Entities  map[string]any `json:"entities"`
	LLMError  string         `json:"llm_extraction_error,omitempty"`
	Simulated bool           `json:"simulated,omitempty"`
}

// Comparison is a free-text difference narrative between two documents.
type Comparison struct {
	Differences string `json:"differences"`
	Simulated   bool   `json:"simulated,omitempty"`
}

// Engine owns the assembled pipeline. The index state behind store is
// guarded by mu: ingestion holds the write lock while rebuilding, queries
// hold the read lock, so a query never observes a half-written index.
type Engine struct {
	cfg        *config.Config
	chunker    domain.Chunker
	embedder   domain.Embedder
	store      vectorstore.Storage
	provider   llm.Provider
	recognizer *recognizer.Recognizer
	extractive *summarizer.Frequency
	log        *zap.Logger

	mu     sync.RWMutex
	loaded bool
}

// New assembles an engine. recognizer may be nil; entity extraction then
// relies on the model's schema path alone.
func New(cfg *config.Config, ch domain.Chunker, emb domain.Embedder, store vectorstore.Storage,
	provider llm.Provider, rec *recognizer.Recognizer, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		chunker:    ch,
		embedder:   emb,
		store:      store,
		provider:   provider,
		recognizer: rec,
		extractive: summarizer.NewFrequency(),
		log:        log,
	}
}

// Provider exposes the active language model provider, mainly so callers
// can report which variant is in play.
func (e *Engine) Provider() llm.Provider { return e.provider }

// IngestFiles expands the glob patterns, reads every matched .txt file and
// rebuilds the index from the union of their passages. The previous index
// contents are replaced wholesale.
func (e *Engine) IngestFiles(ctx context.Context, patterns []string) (int, error) {
	var docs []domain.Document
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return 0, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, path := range matches {
			if strings.ToLower(filepath.Ext(path)) != ".txt" {
				e.log.Debug("skipping non-text file", zap.String("path", path))
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return 0, fmt.Errorf("read %s: %w", path, err)
			}
			docs = append(docs, domain.Document{
				ID:      filepath.Base(path),
				Path:    path,
				Content: string(data),
			})
		}
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("no .txt files matched %v", patterns)
	}
	return e.ingest(ctx, docs)
}

// IngestTexts indexes already-extracted document texts keyed by source id.
func (e *Engine) IngestTexts(ctx context.Context, docs []domain.Document) (int, error) {
	if len(docs) == 0 {
		return 0, errors.New("no documents to ingest")
	}
	return e.ingest(ctx, docs)
}

func (e *Engine) ingest(ctx context.Context, docs []domain.Document) (int, error) {
	var passages []domain.Passage
	for _, doc := range docs {
		chunks, err := e.chunker.Chunk(doc)
		if err != nil {
			return 0, fmt.Errorf("chunk %s: %w", doc.ID, err)
		}
		if len(chunks) == 0 {
			return 0, fmt.Errorf("no text could be extracted from %s", doc.ID)
		}
		passages = append(passages, chunks...)
	}
	for i := range passages {
		passages[i].Index = i
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Build(ctx, passages); err != nil {
		return 0, fmt.Errorf("build index: %w", err)
	}
	e.loaded = true
	e.log.Info("index rebuilt",
		zap.Int("documents", len(docs)),
		zap.Int("passages", len(passages)),
		zap.String("embedding_model", e.embedder.ModelID()))
	return len(passages), nil
}

// AnswerQuestion retrieves the top-k passages for the question and asks the
// model to answer from them. Fails with ErrNoIndex when nothing has been
// ingested at the configured location.
func (e *Engine) AnswerQuestion(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("empty question")
	}
	if err := e.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	vector, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	e.mu.RLock()
	results, err := e.store.Search(ctx, vector, e.cfg.Index.TopK)
	e.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	var contextParts []string
	sources := make([]domain.Passage, 0, len(results))
	for _, r := range results {
		contextParts = append(contextParts, r.Passage.Text)
		sources = append(sources, r.Passage)
	}
	prompt := fmt.Sprintf(answerTemplate, strings.Join(contextParts, "\n\n"), question)

	answer, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	e.log.Info("question answered",
		zap.String("question", question),
		zap.Int("sources", len(sources)))
	return &Answer{Question: question, Answer: answer, Sources: sources}, nil
}

// Summarize produces one summary for the passages. With the offline
// provider it returns an extractive summary explicitly labeled simulated;
// otherwise it runs map-reduce so inputs larger than one model call still
// reduce to a single summary.
func (e *Engine) Summarize(ctx context.Context, passages []domain.Passage) (*Summary, error) {
	if len(passages) == 0 {
		return nil, errors.New("no passages to summarize")
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	if e.provider.Kind() == llm.Offline {
		text := e.extractive.Summarize(strings.Join(texts, " "), offlineSummarySentences)
		return &Summary{
			Text:      "[simulated summary, configure a real language model] " + text,
			Simulated: true,
		}, nil
	}

	partials, err := e.mapSummaries(ctx, texts)
	if err != nil {
		return nil, err
	}
	for round := 0; len(partials) > 1; round++ {
		if round >= maxReduceRounds {
			return nil, errors.New("summarization did not converge; model responses keep exceeding the batch budget")
		}
		partials, err = e.mapSummaries(ctx, partials)
		if err != nil {
			return nil, err
		}
	}
	return &Summary{Text: partials[0]}, nil
}

// mapSummaries groups texts into batches under the character budget and
// summarizes each batch with one model call. A single text over the budget
// is cut into budget-sized pieces first, so no model call ever carries more
// than one budget of input.
func (e *Engine) mapSummaries(ctx context.Context, texts []string) ([]string, error) {
	var pieces []string
	for _, t := range texts {
		pieces = append(pieces, splitByBudget(t, mapCharBudget)...)
	}

	var out []string
	var batch strings.Builder
	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		prompt := fmt.Sprintf("Summarize the following legal text concisely:\n\n%s\n\nConcise Summary:", batch.String())
		summary, err := e.generate(ctx, prompt)
		if err != nil {
			return fmt.Errorf("summarize batch: %w", err)
		}
		out = append(out, strings.TrimSpace(summary))
		batch.Reset()
		return nil
	}
	for _, t := range pieces {
		if batch.Len() > 0 && batch.Len()+len(t) > mapCharBudget {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		if batch.Len() > 0 {
			batch.WriteString("\n\n")
		}
		batch.WriteString(t)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func splitByBudget(text string, budget int) []string {
	runes := []rune(text)
	if len(runes) <= budget {
		return []string{text}
	}
	parts := make([]string, 0, (len(runes)+budget-1)/budget)
	for start := 0; start < len(runes); start += budget {
		end := start + budget
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}

// ExtractEntities merges rule-based recognition with the model's
// schema-guided JSON extraction. It never returns an error; a failed model
// call is recorded in the report's LLMError field with the rule-based
// entities intact.
func (e *Engine) ExtractEntities(ctx context.Context, text string) *EntityReport {
	report := &EntityReport{Entities: map[string]any{}}

	if e.recognizer != nil {
		found := e.recognizer.Recognize(text)
		report.Entities["persons"] = found.Persons
		report.Entities["organizations"] = found.Organizations
		report.Entities["dates"] = found.Dates
		report.Entities["locations"] = found.Locations
	}

	if e.provider.Kind() == llm.Offline {
		report.Simulated = true
		return report
	}

	raw, err := e.generate(ctx, fmt.Sprintf(extractTemplate, text))
	if err != nil {
		report.LLMError = err.Error()
		e.log.Warn("schema extraction failed", zap.Error(err))
		return report
	}
	schema, err := parseExtraction(raw)
	if err != nil {
		report.LLMError = err.Error()
		e.log.Warn("schema extraction unparseable", zap.Error(err))
		return report
	}
	// Schema keys win on collision with recognizer output.
	for k, v := range schema {
		report.Entities[k] = v
	}
	return report
}

// parseExtraction pulls a JSON object out of a model response, tolerating
// surrounding prose and markdown code fences.
func parseExtraction(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	if start := strings.IndexByte(raw, '{'); start >= 0 {
		if end := strings.LastIndexByte(raw, '}'); end > start {
			raw = raw[start : end+1]
		}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("model response is not valid JSON: %w", err)
	}
	return out, nil
}

// CompareDocuments asks the model for a difference narrative over a bounded
// prefix of each document. Coarse free-text comparison, not a clause-level
// diff.
func (e *Engine) CompareDocuments(ctx context.Context, a, b []domain.Passage) (*Comparison, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, errors.New("both documents need at least one passage")
	}
	if e.provider.Kind() == llm.Offline {
		return &Comparison{
			Differences: "Simulated comparison, integrate a real language model for actual comparison.",
			Simulated:   true,
		}, nil
	}
	prompt := fmt.Sprintf(compareTemplate,
		prefixRunes(joinPassages(a), comparePrefixRunes),
		prefixRunes(joinPassages(b), comparePrefixRunes))
	diff, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("compare documents: %w", err)
	}
	return &Comparison{Differences: diff}, nil
}

// ExtractCitations matches statutory references and law-report citations in
// the text. Pure pattern matching, deterministic regardless of the
// configured provider; the result is deduplicated, whitespace-normalized
// and sorted.
func (e *Engine) ExtractCitations(text string) []string {
	var matches []string
	matches = append(matches, sectionCitationRe.FindAllString(text, -1)...)
	matches = append(matches, caseCitationRe.FindAllString(text, -1)...)

	seen := make(map[string]struct{}, len(matches))
	citations := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(spaceRe.ReplaceAllString(m, " "))
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		citations = append(citations, m)
	}
	sort.Strings(citations)
	return citations
}

// ensureLoaded lazily loads the persisted index once, mapping a missing
// index to ErrNoIndex.
func (e *Engine) ensureLoaded(ctx context.Context) error {
	e.mu.RLock()
	loaded := e.loaded
	e.mu.RUnlock()
	if loaded {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return nil
	}
	if err := e.store.Load(ctx); err != nil {
		if errors.Is(err, vectorstore.ErrNotFound) {
			return ErrNoIndex
		}
		return fmt.Errorf("load index: %w", err)
	}
	e.loaded = true
	e.log.Info("index loaded", zap.Int("passages", e.store.Count()))
	return nil
}

// generate calls the provider under the configured timeout. Hosted and
// local-server calls are network operations with unbounded latency
// otherwise.
func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	timeout := time.Duration(e.cfg.LLM.TimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.provider.Generate(ctx, prompt)
}

func joinPassages(passages []domain.Passage) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = p.Text
	}
	return strings.Join(parts, " ")
}

func prefixRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
