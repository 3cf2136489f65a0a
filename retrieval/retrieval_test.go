package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kojirag/vectra/document"
)

func doc(content string, score float64) document.RetrievedDoc {
	return document.RetrievedDoc{Content: content, Score: score}
}

func TestReciprocalRankFusion(t *testing.T) {
	t.Run("merges two lists favoring documents appearing in both", func(t *testing.T) {
		listA := []document.RetrievedDoc{doc("alpha", 0), doc("beta", 0), doc("gamma", 0)}
		listB := []document.RetrievedDoc{doc("beta", 0), doc("alpha", 0), doc("delta", 0)}

		out := ReciprocalRankFusion([][]document.RetrievedDoc{listA, listB}, 60, 10)
		require := assert.New(t)
		require.NotEmpty(out)

		idx := make(map[string]int)
		for i, d := range out {
			idx[d.Content] = i
		}
		assert.Less(t, idx["alpha"], idx["gamma"])
		assert.Less(t, idx["beta"], idx["gamma"])
	})

	t.Run("respects topK", func(t *testing.T) {
		listA := []document.RetrievedDoc{doc("a", 0), doc("b", 0), doc("c", 0)}
		out := ReciprocalRankFusion([][]document.RetrievedDoc{listA}, 1, 2)
		assert.Len(t, out, 2)
	})

	t.Run("c=1 matches the multi-query path's pinned constant", func(t *testing.T) {
		listA := []document.RetrievedDoc{doc("x", 0)}
		out := ReciprocalRankFusion([][]document.RetrievedDoc{listA}, 1, 10)
		assert.InDelta(t, 0.5, out[0].Score, 1e-9) // 1/(1+0+1)
	})
}

func TestMMR(t *testing.T) {
	t.Run("penalizes near-duplicate content", func(t *testing.T) {
		candidates := []document.RetrievedDoc{
			doc("the quick brown fox jumps over the lazy dog", 1.0),
			doc("the quick brown fox leaps over the lazy dog", 0.99),
			doc("completely unrelated content about oceans and tides", 0.5),
		}
		out := MMR(candidates, 0.5, 2)
		assert.Len(t, out, 2)
		assert.Equal(t, candidates[0].Content, out[0].Content)
		assert.Equal(t, candidates[2].Content, out[1].Content, "near-duplicate should lose to the diverse candidate")
	})

	t.Run("lambda=1 behaves like pure relevance ranking", func(t *testing.T) {
		candidates := []document.RetrievedDoc{doc("a", 0.2), doc("b", 0.9)}
		out := MMR(candidates, 1, 2)
		assert.Equal(t, "b", out[0].Content)
	})

	t.Run("lambda is clamped into [0,1]", func(t *testing.T) {
		candidates := []document.RetrievedDoc{doc("a", 0.2), doc("b", 0.9)}
		out := MMR(candidates, 5, 2)
		assert.Len(t, out, 2)
	})
}

func docWithKeywords(content string, keywords []string) document.RetrievedDoc {
	d := doc(content, 0)
	d.Metadata.Chunk.Enrichment = &document.Enrichment{Keywords: keywords}
	return d
}

func TestKeywordBoost(t *testing.T) {
	t.Run("ranks by distinct query-term overlap against enrichment keywords", func(t *testing.T) {
		docs := []document.RetrievedDoc{
			docWithKeywords("no match here", nil),
			docWithKeywords("about bananas", []string{"banana", "fruit"}),
			docWithKeywords("about apples", []string{"apple"}),
		}
		out := KeywordBoost(docs, "tell me about bananas and fruit")
		assert.Equal(t, "about bananas", out[0].Content)
	})

	t.Run("docs without enrichment keep relative order", func(t *testing.T) {
		docs := []document.RetrievedDoc{doc("a", 0), doc("b", 0)}
		out := KeywordBoost(docs, "anything")
		assert.Equal(t, "a", out[0].Content)
		assert.Equal(t, "b", out[1].Content)
	})
}

func TestDedup(t *testing.T) {
	docs := []document.RetrievedDoc{doc("a", 1), doc("b", 2), doc("a", 3)}
	out := Dedup(docs)
	assert.Len(t, out, 2)
	assert.Equal(t, float64(1), out[0].Score, "first occurrence is kept")
}
