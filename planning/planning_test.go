package planning

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kojirag/vectra/config"
	"github.com/kojirag/vectra/document"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 3, EstimateTokens("0123456789"))
}

func TestPlan_stopsOnFirstOverflow(t *testing.T) {
	cfg := config.QueryPlanningConfig{TokenBudget: 10, PreferSummariesBelow: 100000}
	docs := []document.RetrievedDoc{
		{Content: "short", Metadata: document.Metadata{Chunk: document.ChunkMetadata{DocTitle: "doc1"}}},
		{Content: strings.Repeat("x", 1000), Metadata: document.Metadata{Chunk: document.ChunkMetadata{DocTitle: "doc2"}}},
		{Content: "also short", Metadata: document.Metadata{Chunk: document.ChunkMetadata{DocTitle: "doc3"}}},
	}

	parts := Plan(cfg, docs)
	require := assert.New(t)
	require.Len(parts, 1, "planner must stop at the first part that would overflow, not backfill with a smaller later one")
}

func TestPlan_headerFormat(t *testing.T) {
	cfg := config.QueryPlanningConfig{TokenBudget: 10000}
	docs := []document.RetrievedDoc{
		{
			Content: "body text",
			Metadata: document.Metadata{
				Chunk: document.ChunkMetadata{
					DocTitle: "Report", Section: "Intro", PageFrom: 2, PageTo: 3,
				},
			},
		},
	}
	parts := Plan(cfg, docs)
	assert.Equal(t, "Report Intro [pages 2-3]", parts[0].Header)
}

func TestPlan_prefersSummaryForLongContent(t *testing.T) {
	cfg := config.QueryPlanningConfig{TokenBudget: 10000, PreferSummariesBelow: 10}
	docs := []document.RetrievedDoc{
		{
			Content: strings.Repeat("word ", 50),
			Metadata: document.Metadata{
				Chunk: document.ChunkMetadata{
					DocTitle:   "doc",
					Enrichment: &document.Enrichment{Summary: "a short summary"},
				},
			},
		},
	}
	parts := Plan(cfg, docs)
	assert.Equal(t, "a short summary", parts[0].Body)
}
