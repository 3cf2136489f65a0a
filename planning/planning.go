// Package planning implements the Context Planner: assembling a
// token-budgeted set of ContextParts from retrieved documents, stopping on
// the first part that would overflow the budget rather than backfilling
// with smaller ones afterward. Grounded on the teacher's
// TokenCountBatcher (ai/content/document/processors/batcher_token_count.go)
// running-total-vs-limit accumulation idiom, generalized from batching
// whole documents to selecting context parts under a token budget.
package planning

import (
	"fmt"
	"math"

	"github.com/kojirag/vectra/config"
	"github.com/kojirag/vectra/document"
)

// EstimateTokens approximates token count as ceil(len(text)/4), the
// character-based heuristic used when no tokenizer is configured.
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(len(text)) / 4.0))
}

// Plan assembles ContextParts from retrieved documents, stopping as soon
// as the next candidate part would exceed cfg.TokenBudget. Each document's
// body is its enrichment summary when a summary is available and its
// estimated token count is at most cfg.PreferSummariesBelow, otherwise the
// first 1200 characters of its content.
func Plan(cfg config.QueryPlanningConfig, docs []document.RetrievedDoc) []document.ContextPart {
	var parts []document.ContextPart
	var used int

	for _, d := range docs {
		body := bodyFor(cfg, d)
		header := headerFor(d.Metadata)
		part := document.ContextPart{Header: header, Body: body}

		tokens := EstimateTokens(header) + EstimateTokens(body)
		if used+tokens > cfg.TokenBudget {
			break
		}
		used += tokens
		parts = append(parts, part)
	}
	return parts
}

func bodyFor(cfg config.QueryPlanningConfig, d document.RetrievedDoc) string {
	content := d.Content
	enrichment := d.Metadata.Chunk.Enrichment

	if enrichment != nil && enrichment.Summary != "" && EstimateTokens(enrichment.Summary) <= cfg.PreferSummariesBelow {
		return enrichment.Summary
	}

	const maxBodyChars = 1200
	if len(content) > maxBodyChars {
		return content[:maxBodyChars]
	}
	return content
}

// headerFor renders "{docTitle} {section} [pages F-T]", omitting the page
// clause when the chunk has no page information.
func headerFor(md document.Metadata) string {
	header := md.Chunk.DocTitle
	if md.Chunk.Section != "" {
		header = fmt.Sprintf("%s %s", header, md.Chunk.Section)
	}
	if md.Chunk.HasPages() {
		header = fmt.Sprintf("%s [pages %d-%d]", header, md.Chunk.PageFrom, md.Chunk.PageTo)
	}
	return header
}
