package grounding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kojirag/vectra/config"
	"github.com/kojirag/vectra/document"
)

func TestSplitSentences(t *testing.T) {
	sentences := splitSentences("Bananas are yellow. Oranges are orange! Are apples red? Yes.")
	assert.Equal(t, []string{
		"Bananas are yellow.",
		"Oranges are orange!",
		"Are apples red?",
		"Yes.",
	}, sentences)
}

func TestGround_disabledPassesThrough(t *testing.T) {
	parts := []document.ContextPart{{Header: "h", Body: "Bananas are yellow. Nothing else matters."}}
	out := Ground(config.GroundingConfig{Enabled: false}, "banana", parts)
	assert.Equal(t, parts, out)
}

func TestGround_strictReplacesBody(t *testing.T) {
	parts := []document.ContextPart{{
		Header: "h",
		Body:   "Bananas are yellow fruit. The sky is blue. Oranges taste citrus.",
	}}
	out := Ground(config.GroundingConfig{Enabled: true, Strict: true, MaxSnippets: 1}, "banana fruit", parts)
	assert.Contains(t, out[0].Body, "Bananas are yellow fruit.")
	assert.NotContains(t, out[0].Body, "sky is blue")
}

func TestGround_defaultAppendsSection(t *testing.T) {
	parts := []document.ContextPart{{
		Header: "h",
		Body:   "Bananas are yellow fruit. The sky is blue.",
	}}
	out := Ground(config.GroundingConfig{Enabled: true, Strict: false, MaxSnippets: 1}, "banana", parts)
	assert.Contains(t, out[0].Body, "Bananas are yellow fruit.")
	assert.Contains(t, out[0].Body, "Grounding:")
}
