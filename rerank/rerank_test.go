package rerank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kojirag/vectra/config"
	"github.com/kojirag/vectra/document"
	"github.com/kojirag/vectra/query"
)

type fakeScorer struct {
	scores map[string]string
	err    error
}

func (f fakeScorer) Generate(ctx context.Context, prompt, system string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for content, score := range f.scores {
		if contains(prompt, content) {
			return score, nil
		}
	}
	return "0", nil
}

func contains(haystack, needle string) bool {
	return len(needle) > 0 && (len(haystack) >= len(needle)) && (indexOf(haystack, needle) >= 0)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestReranker_Rerank(t *testing.T) {
	t.Run("keeps topN by descending score", func(t *testing.T) {
		scorer := fakeScorer{scores: map[string]string{
			"low relevance passage":  "2",
			"high relevance passage": "9",
		}}
		r := New(config.RerankingConfig{TopN: 1, WindowSize: 10}, scorer)

		docs := []document.RetrievedDoc{
			{Content: "low relevance passage"},
			{Content: "high relevance passage"},
		}
		out, err := r.Rerank(context.Background(), &query.Query{Text: "q"}, docs)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "high relevance passage", out[0].Content)
	})

	t.Run("defaults to score 0 on backend failure", func(t *testing.T) {
		r := New(config.RerankingConfig{TopN: 5, WindowSize: 10}, fakeScorer{err: errors.New("boom")})
		docs := []document.RetrievedDoc{{Content: "a"}, {Content: "b"}}
		out, err := r.Rerank(context.Background(), &query.Query{Text: "q"}, docs)
		require.NoError(t, err)
		for _, d := range out {
			assert.Equal(t, float64(0), d.Score)
		}
	})

	t.Run("respects windowSize before scoring", func(t *testing.T) {
		r := New(config.RerankingConfig{TopN: 10, WindowSize: 1}, fakeScorer{})
		docs := []document.RetrievedDoc{{Content: "a"}, {Content: "b"}, {Content: "c"}}
		out, err := r.Rerank(context.Background(), &query.Query{Text: "q"}, docs)
		require.NoError(t, err)
		assert.Len(t, out, 1)
	})
}
