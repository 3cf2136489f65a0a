// Package document defines the core data types that flow through ingestion
// and retrieval: chunks produced by the document processor, the persisted
// records stored in a vector store, and the lightweight views assembled
// during query-time planning and grounding.
package document

// Position marks a chunk's byte-offset span within its source document.
type Position struct {
	Start int
	End   int
}

// Chunk is an immutable text segment derived from a single source document.
type Chunk struct {
	Content    string
	Position   Position
	ChunkIndex int
	SHA256     string
}

// ChunkMetadata carries structural information about where a chunk came
// from within its source document.
type ChunkMetadata struct {
	FileType string
	DocTitle string

	// PageFrom/PageTo are 1-based and only populated for paged formats.
	PageFrom int
	PageTo   int

	// Section is the most recent preceding heading, for markdown/plain text.
	Section string

	// Enrichment is populated only when metadata.enrichment is enabled.
	Enrichment *Enrichment
}

// Enrichment holds the optional LLM-derived annotations for a chunk.
type Enrichment struct {
	Summary               string
	Keywords              []string
	HypotheticalQuestions []string
}

// HasPages reports whether page information was computed for this chunk.
func (m ChunkMetadata) HasPages() bool {
	return m.PageFrom > 0 && m.PageTo > 0
}

// Document is a persisted, embedded record in a vector store.
type Document struct {
	// ID is a UUIDv5 derived from (fileSHA256, chunkIndex) under a fixed
	// namespace; it is stable and idempotent across re-ingests.
	ID string

	Content string

	// Embedding is an L2-normalized vector of fixed dimension D.
	Embedding []float64

	Metadata Metadata
}

// Metadata is the full metadata bag persisted alongside a Document. It
// combines file-level provenance with the chunk-level metadata computed by
// the document processor.
type Metadata struct {
	Source       string
	AbsolutePath string
	FileMD5      string
	FileSHA256   string
	FileSize     int64
	LastModified int64 // unix seconds

	Chunk ChunkMetadata
}

// ToMap flattens Metadata into a plain map, the shape vector-store adapters
// persist into their JSON metadata column.
func (m Metadata) ToMap() map[string]any {
	out := map[string]any{
		"source":        m.Source,
		"absolutePath":  m.AbsolutePath,
		"fileMD5":       m.FileMD5,
		"fileSHA256":    m.FileSHA256,
		"fileSize":      m.FileSize,
		"lastModified":  m.LastModified,
		"fileType":      m.Chunk.FileType,
		"docTitle":      m.Chunk.DocTitle,
		"section":       m.Chunk.Section,
		"pageFrom":      m.Chunk.PageFrom,
		"pageTo":        m.Chunk.PageTo,
	}
	if m.Chunk.Enrichment != nil {
		out["summary"] = m.Chunk.Enrichment.Summary
		out["keywords"] = m.Chunk.Enrichment.Keywords
		out["hypotheticalQuestions"] = m.Chunk.Enrichment.HypotheticalQuestions
	}
	return out
}

// RetrievedDoc is the result of a retrieval call. Score semantics are
// strategy-local but monotone "higher is better" before fusion.
type RetrievedDoc struct {
	Content  string
	Metadata Metadata
	Score    float64
}

// ContextPart is a single assembled unit of context, ready for prompt
// inclusion.
type ContextPart struct {
	Header string
	Body   string
}
