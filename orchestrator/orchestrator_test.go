package orchestrator

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kojirag/vectra/config"
	"github.com/kojirag/vectra/document"
	"github.com/kojirag/vectra/llm"
	"github.com/kojirag/vectra/vectorstore"
)

type fakeBackend struct{}

func (fakeBackend) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0, 0}
	}
	return out, nil
}
func (fakeBackend) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	return []float64{1, 0, 0}, nil
}
func (fakeBackend) Generate(ctx context.Context, prompt, system string) (string, error) {
	return "0.9", nil
}
func (fakeBackend) GenerateStream(ctx context.Context, prompt, system string) iter.Seq2[llm.StreamChunk, error] {
	return func(yield func(llm.StreamChunk, error) bool) {
		yield(llm.StreamChunk{Delta: "ok"}, nil)
	}
}

type fakeStore struct {
	docs []document.RetrievedDoc
}

func (s *fakeStore) AddDocuments(ctx context.Context, docs []*document.Document) error { return nil }
func (s *fakeStore) SimilaritySearch(ctx context.Context, vector []float64, topK int, filter vectorstore.Filter) ([]document.RetrievedDoc, error) {
	if topK < len(s.docs) {
		return s.docs[:topK], nil
	}
	return s.docs, nil
}

func baseConfig() config.Config {
	return config.Config{
		Chunking:      config.ChunkingConfig{ChunkSize: 500, ChunkOverlap: 20},
		Retrieval:     config.RetrievalConfig{Strategy: config.RetrievalNaive, MMRFetchK: 5},
		QueryPlanning: config.QueryPlanningConfig{TokenBudget: 1000},
		Generation:    config.GenerationConfig{OutputFormat: config.OutputText},
		Ingestion:     config.IngestionConfig{Mode: config.IngestionAppend},
	}
}

func TestEngine_Query(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, cfg.Validate())

	store := &fakeStore{docs: []document.RetrievedDoc{
		{Content: "Bananas are a good source of potassium.", Metadata: document.Metadata{Chunk: document.ChunkMetadata{DocTitle: "nutrition"}}},
	}}

	engine, err := New(cfg, Dependencies{Backend: fakeBackend{}, Store: store})
	require.NoError(t, err)

	result, err := engine.Query(context.Background(), "", "what are bananas good for")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Answer)
	assert.NotEmpty(t, result.Sources)
}

func TestEngine_New_requiresBackendAndStore(t *testing.T) {
	cfg := baseConfig()
	_, err := New(cfg, Dependencies{Store: &fakeStore{}})
	assert.Error(t, err)

	_, err = New(cfg, Dependencies{Backend: fakeBackend{}})
	assert.Error(t, err)
}

func TestEngine_QueryStream(t *testing.T) {
	cfg := baseConfig()
	store := &fakeStore{docs: []document.RetrievedDoc{{Content: "some content", Metadata: document.Metadata{}}}}
	engine, err := New(cfg, Dependencies{Backend: fakeBackend{}, Store: store})
	require.NoError(t, err)

	stream, err := engine.QueryStream(context.Background(), "", "a question")
	require.NoError(t, err)

	var full string
	for chunk, err := range stream {
		require.NoError(t, err)
		full += chunk.Delta
	}
	assert.Equal(t, "ok", full)
}
