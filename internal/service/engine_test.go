package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"legalrag/internal/chunker"
	"legalrag/internal/config"
	"legalrag/internal/domain"
	"legalrag/internal/embedding"
	"legalrag/internal/llm"
	"legalrag/internal/recognizer"
	"legalrag/internal/vectorstore/memory"
)

// scriptedProvider plays a hosted model returning fixed responses.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Kind() llm.Kind { return llm.Hosted }

func (p *scriptedProvider) Generate(_ context.Context, _ string) (string, error) {
	if p.calls >= len(p.responses) {
		return "", errors.New("no scripted response left")
	}
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

type failingProvider struct{}

func (failingProvider) Kind() llm.Kind { return llm.Hosted }

func (failingProvider) Generate(context.Context, string) (string, error) {
	return "", errors.New("model unavailable")
}

func testConfig() *config.Config {
	return &config.Config{
		LLM:     config.LLMConfig{Provider: "offline", TimeoutSecs: 60},
		Chunker: config.ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 200},
		Index:   config.IndexConfig{Store: "memory", TopK: 2},
	}
}

func newTestEngine(provider llm.Provider) *Engine {
	cfg := testConfig()
	emb := embedding.NewLocal()
	return New(cfg,
		chunker.NewRecursive(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap),
		emb,
		memory.NewStorage(emb, cfg.Index.TopK),
		provider,
		recognizer.New(),
		nil)
}

func corpusDocs() []domain.Document {
	return []domain.Document{
		{ID: "cpc.txt", Content: "The Code of Civil Procedure, 1908 regulates the procedure of civil courts in India."},
		{ID: "crpc.txt", Content: "The Code of Criminal Procedure, 1973 governs the procedure for criminal trials."},
	}
}

func TestAnswerQuestionWithoutIndex(t *testing.T) {
	e := newTestEngine(llm.NewOffline())
	_, err := e.AnswerQuestion(context.Background(), "What is the purpose of the Code of Civil Procedure?")
	if !errors.Is(err, ErrNoIndex) {
		t.Errorf("Expected ErrNoIndex before ingestion, got %v", err)
	}
}

func TestIngestAndAnswerQuestion(t *testing.T) {
	e := newTestEngine(llm.NewOffline())
	ctx := context.Background()

	n, err := e.IngestTexts(ctx, corpusDocs())
	if err != nil {
		t.Fatalf("IngestTexts returned error: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 passages, got %d", n)
	}

	ans, err := e.AnswerQuestion(ctx, "What is the purpose of the Code of Civil Procedure?")
	if err != nil {
		t.Fatalf("AnswerQuestion returned error: %v", err)
	}
	if !strings.Contains(ans.Answer, "Code of Civil Procedure, 1908") {
		t.Errorf("Expected the canned CPC answer, got %q", ans.Answer)
	}
	if len(ans.Sources) == 0 || len(ans.Sources) > 2 {
		t.Fatalf("Expected 1-2 cited sources, got %d", len(ans.Sources))
	}
	if ans.Sources[0].Source != "cpc.txt" {
		t.Errorf("Expected cpc.txt as top source, got %s", ans.Sources[0].Source)
	}
}

func TestIngestFilesGlob(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.txt":  "The plaintiff filed a suit for recovery of possession.",
		"b.txt":  "The defendant denied the allegations in the written statement.",
		"c.pdf":  "binary noise that must be skipped",
		"d.json": "{}",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	e := newTestEngine(llm.NewOffline())
	n, err := e.IngestFiles(context.Background(), []string{filepath.Join(dir, "*")})
	if err != nil {
		t.Fatalf("IngestFiles returned error: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 passages from the two .txt files, got %d", n)
	}

	_, err = e.IngestFiles(context.Background(), []string{filepath.Join(dir, "*.pdf")})
	if err == nil {
		t.Error("Expected error when no .txt files match")
	}
}

func TestSummarizeOfflineLabeledSimulated(t *testing.T) {
	e := newTestEngine(llm.NewOffline())
	passages := []domain.Passage{
		{Text: "The court examined the evidence on record. The witnesses were consistent. The appeal therefore fails."},
	}
	sum, err := e.Summarize(context.Background(), passages)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if !sum.Simulated {
		t.Error("Offline summary must be marked simulated")
	}
	if !strings.HasPrefix(sum.Text, "[simulated summary") {
		t.Errorf("Offline summary must carry the simulated label, got %q", sum.Text)
	}
}

func TestSummarizeMapReduce(t *testing.T) {
	// Two oversized passages force two map calls, then one combine call.
	big := strings.Repeat("The tribunal considered the statutory scheme in detail. ", 80)
	provider := &scriptedProvider{responses: []string{"partial one", "partial two", "final summary"}}
	e := newTestEngine(provider)

	sum, err := e.Summarize(context.Background(), []domain.Passage{{Text: big}, {Text: big}})
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if sum.Simulated {
		t.Error("Hosted summary must not be marked simulated")
	}
	if sum.Text != "final summary" {
		t.Errorf("Expected the combined summary, got %q", sum.Text)
	}
	if provider.calls != 3 {
		t.Errorf("Expected 2 map calls and 1 combine call, got %d calls", provider.calls)
	}
}

func TestSummarizeSplitsOversizedPassage(t *testing.T) {
	// One 15000-rune passage must be cut into budget-sized map calls, not
	// sent to the model in a single oversized prompt.
	huge := strings.Repeat("x", 15000)
	provider := &scriptedProvider{responses: []string{"s1", "s2", "s3", "final summary"}}
	e := newTestEngine(provider)

	sum, err := e.Summarize(context.Background(), []domain.Passage{{Text: huge}})
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if sum.Text != "final summary" {
		t.Errorf("Expected the combined summary, got %q", sum.Text)
	}
	if provider.calls != 4 {
		t.Errorf("Expected 3 map calls and 1 combine call, got %d calls", provider.calls)
	}
}

// verboseProvider answers every call with text over the batch budget, so
// map-reduce can never converge.
type verboseProvider struct{}

func (verboseProvider) Kind() llm.Kind { return llm.Hosted }

func (verboseProvider) Generate(context.Context, string) (string, error) {
	return strings.Repeat("y", 7000), nil
}

func TestSummarizeNonConvergenceBounded(t *testing.T) {
	big := strings.Repeat("z", 7000)
	e := newTestEngine(verboseProvider{})

	_, err := e.Summarize(context.Background(), []domain.Passage{{Text: big}, {Text: big}})
	if err == nil {
		t.Fatal("Expected an error when partial summaries never shrink")
	}
	if !strings.Contains(err.Error(), "did not converge") {
		t.Errorf("Expected a convergence error, got %v", err)
	}
}

func TestExtractEntitiesOffline(t *testing.T) {
	e := newTestEngine(llm.NewOffline())
	text := "Justice Sharma of the Supreme Court heard Mr. Verma on 12 March 2021 in the State of Maharashtra."

	report := e.ExtractEntities(context.Background(), text)
	if !report.Simulated {
		t.Error("Offline extraction must be marked simulated")
	}
	if report.LLMError != "" {
		t.Errorf("Offline extraction must not carry an error, got %q", report.LLMError)
	}
	persons, ok := report.Entities["persons"].([]string)
	if !ok || len(persons) == 0 {
		t.Errorf("Expected rule-based persons, got %v", report.Entities["persons"])
	}
	dates, ok := report.Entities["dates"].([]string)
	if !ok || len(dates) != 1 || dates[0] != "12 March 2021" {
		t.Errorf("Expected the judgment date, got %v", report.Entities["dates"])
	}
	if _, present := report.Entities["case_name"]; present {
		t.Error("Offline extraction must not fabricate schema fields")
	}
}

func TestExtractEntitiesSchemaMerge(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"```json\n{\"case_name\": \"State v. Verma\", \"parties\": [\"State\", \"Verma\"], \"dates\": [\"overridden\"]}\n```",
	}}
	e := newTestEngine(provider)

	report := e.ExtractEntities(context.Background(), "Mr. Verma appealed on 12 March 2021.")
	if report.LLMError != "" {
		t.Fatalf("Unexpected extraction error: %q", report.LLMError)
	}
	if report.Entities["case_name"] != "State v. Verma" {
		t.Errorf("Expected schema case_name, got %v", report.Entities["case_name"])
	}
	// On a key collision the schema value replaces the rule-based one.
	if !reflect.DeepEqual(report.Entities["dates"], []any{"overridden"}) {
		t.Errorf("Expected schema value to win the dates key, got %v", report.Entities["dates"])
	}
}

func TestExtractEntitiesSurvivesModelFailure(t *testing.T) {
	e := newTestEngine(failingProvider{})

	report := e.ExtractEntities(context.Background(), "No names here at all.")
	if report.LLMError == "" {
		t.Error("Expected the model failure to be recorded")
	}
	persons, ok := report.Entities["persons"].([]string)
	if !ok || len(persons) != 0 {
		t.Errorf("Expected empty persons list, got %v", report.Entities["persons"])
	}
}

func TestCompareDocumentsOffline(t *testing.T) {
	e := newTestEngine(llm.NewOffline())
	a := []domain.Passage{{Text: "The lease runs for five years."}}
	b := []domain.Passage{{Text: "The lease runs for seven years."}}

	diff, err := e.CompareDocuments(context.Background(), a, b)
	if err != nil {
		t.Fatalf("CompareDocuments returned error: %v", err)
	}
	if !diff.Simulated {
		t.Error("Offline comparison must be marked simulated")
	}
	if !strings.Contains(diff.Differences, "Simulated") {
		t.Errorf("Offline comparison must say it is simulated, got %q", diff.Differences)
	}
}

func TestExtractCitations(t *testing.T) {
	e := newTestEngine(llm.NewOffline())
	text := "Under Section 302 of the Indian Penal Code, 1860 the accused was convicted. " +
		"See (2023) 1 SCC 123 and   Section 302  of the Indian Penal Code, 1860 again, " +
		"plus Article 21 of the Constitution."

	first := e.ExtractCitations(text)
	second := e.ExtractCitations(text)
	if !reflect.DeepEqual(first, second) {
		t.Error("Citation extraction must be idempotent")
	}

	want := map[string]bool{
		"Section 302 of the Indian Penal Code, 1860": false,
		"(2023) 1 SCC 123":                           false,
	}
	for _, c := range first {
		if _, ok := want[c]; ok {
			want[c] = true
		}
	}
	for c, found := range want {
		if !found {
			t.Errorf("Expected citation %q in %v", c, first)
		}
	}

	count := 0
	for _, c := range first {
		if c == "Section 302 of the Indian Penal Code, 1860" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected the duplicated citation once, got %d occurrences", count)
	}
}
