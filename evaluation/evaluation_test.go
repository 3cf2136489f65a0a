package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kojirag/vectra/document"
)

type fakeScorer struct {
	out string
	err error
}

func (f fakeScorer) Generate(ctx context.Context, prompt, system string) (string, error) {
	return f.out, f.err
}

func TestFaithfulnessEvaluator(t *testing.T) {
	ev, err := NewFaithfulnessEvaluator(fakeScorer{out: "0.8"})
	require.NoError(t, err)

	resp, err := ev.Evaluate(context.Background(), &Request{Generation: "the sky is blue"})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, resp.Score, 1e-9)
}

func TestTruncateToTokenLimit(t *testing.T) {
	t.Run("short text passes through unchanged", func(t *testing.T) {
		assert.Equal(t, "short text", truncateToTokenLimit("short text", 100))
	})
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 1.0, clampScore("5"))
	assert.Equal(t, 0.0, clampScore("-3"))
	assert.Equal(t, 0.0, clampScore("not a number"))
}

func TestComposite_averagesScores(t *testing.T) {
	a, _ := NewFaithfulnessEvaluator(fakeScorer{out: "1.0"})
	b, _ := NewRelevanceEvaluator(fakeScorer{out: "0.0"})

	composite, err := NewComposite(a, b)
	require.NoError(t, err)

	resp, err := composite.Evaluate(context.Background(), &Request{Prompt: "q", Generation: "g"})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, resp.Score, 1e-9)
}

func TestComposite_requiresAtLeastOneEvaluator(t *testing.T) {
	_, err := NewComposite()
	assert.Error(t, err)
}

func TestEvaluator_backendFailureScoresZero(t *testing.T) {
	ev, _ := NewFaithfulnessEvaluator(fakeScorer{err: errors.New("boom")})
	resp, err := ev.Evaluate(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.Score)
}

func TestSupportingData(t *testing.T) {
	t.Run("uses enrichment summaries, not raw content", func(t *testing.T) {
		req := &Request{Documents: []document.RetrievedDoc{
			{
				Content: "raw chunk text that should not appear",
				Metadata: document.Metadata{Chunk: document.ChunkMetadata{
					Enrichment: &document.Enrichment{Summary: "a concise summary"},
				}},
			},
		}}
		data := supportingData(req)
		assert.Equal(t, "a concise summary", data)
	})

	t.Run("docs without enrichment contribute nothing", func(t *testing.T) {
		req := &Request{Documents: []document.RetrievedDoc{
			{Content: "no enrichment here"},
		}}
		assert.Equal(t, "", supportingData(req))
	})
}

type fakeRunner struct {
	generation string
	docs       []document.RetrievedDoc
	err        error
}

func (r fakeRunner) RunQuery(ctx context.Context, question string) (string, []document.RetrievedDoc, error) {
	return r.generation, r.docs, r.err
}

func TestEvaluateDataset(t *testing.T) {
	t.Run("scores faithfulness and relevance independently per case", func(t *testing.T) {
		runner := fakeRunner{generation: "an answer"}
		faithfulness, _ := NewFaithfulnessEvaluator(fakeScorer{out: "0.9"})
		relevance, _ := NewRelevanceEvaluator(fakeScorer{out: "0.4"})

		results, err := EvaluateDataset(context.Background(), runner, faithfulness, relevance, []DatasetCase{
			{Question: "what color is the sky", ExpectedGroundTruth: "blue"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "what color is the sky", results[0].Question)
		assert.Equal(t, "blue", results[0].ExpectedGroundTruth)
		assert.InDelta(t, 0.9, results[0].Faithfulness, 1e-9)
		assert.InDelta(t, 0.4, results[0].Relevance, 1e-9)
	})

	t.Run("skips cases whose query run fails", func(t *testing.T) {
		runner := fakeRunner{err: errors.New("retrieval down")}
		faithfulness, _ := NewFaithfulnessEvaluator(fakeScorer{out: "1"})
		relevance, _ := NewRelevanceEvaluator(fakeScorer{out: "1"})

		results, err := EvaluateDataset(context.Background(), runner, faithfulness, relevance, []DatasetCase{
			{Question: "unanswerable"},
		})
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}
