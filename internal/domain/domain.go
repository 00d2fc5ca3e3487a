package domain

import "context"

// Document is one extracted legal text ready for ingestion. Content is the
// cleaned full text of the document; PDF/OCR extraction happens upstream.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Passage is the unit of indexing and retrieval: a bounded span of a
// document's normalized text. Immutable once created; replaced wholesale by
// the next index rebuild.
type Passage struct {
	Text        string
	Source      string
	StartOffset int
	Index       int
}

// SearchResult is a retrieved passage with its similarity score.
type SearchResult struct {
	Passage Passage
	Score   float64
}

// Chunker splits a document into overlapping passages.
type Chunker interface {
	Chunk(document Document) ([]Passage, error)
}

// Embedder converts text into a fixed-dimension vector. Same text and same
// model yield the same vector; mixing models between ingestion and query
// breaks retrieval, so implementations expose a stable ModelID that the
// index persists and validates on load.
type Embedder interface {
	ModelID() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}
