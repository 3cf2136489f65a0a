package ingestion

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tidwall/gjson"

	"github.com/kojirag/vectra/document"
)

// maxEnrichmentSummaryTokens bounds the happy-path LLM summary; the spec
// only pins an exact length for the fallback (first 300 characters), so
// the happy path is bounded by cl100k_base tokens instead of an arbitrary
// character count, the same encoding the teacher's tokenizer wraps.
const maxEnrichmentSummaryTokens = 120

var enrichmentEncoding, _ = tiktoken.GetEncoding("cl100k_base")

const enrichmentSystemPrompt = "You extract a short summary, keywords, and hypothetical questions for a document chunk."

func enrichmentPrompt(content string) string {
	var b strings.Builder
	b.WriteString("Given the following chunk of text, respond with only a JSON object of the shape ")
	b.WriteString(`{"summary": "...", "keywords": ["..."], "hypotheticalQuestions": ["..."]}`)
	b.WriteString(".\n\nChunk:\n")
	b.WriteString(content)
	return b.String()
}

// enrichChunk asks the backend for a summary/keywords/hypotheticalQuestions
// triple for one chunk's content. Any backend failure or JSON parse
// failure falls back to a synthesized triple: summary = first 300
// characters, keywords = top-10 tokens by frequency (length > 3),
// hypotheticalQuestions = nil.
func (c *Coordinator) enrichChunk(ctx context.Context, content string) *document.Enrichment {
	raw, err := c.backend.Generate(ctx, enrichmentPrompt(content), enrichmentSystemPrompt)
	if err == nil {
		if e := parseEnrichmentJSON(raw); e != nil {
			e.Summary = truncateSummary(e.Summary)
			return e
		}
	}
	return fallbackEnrichment(content)
}

func parseEnrichmentJSON(raw string) *document.Enrichment {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil
	}

	result := gjson.Parse(raw[start : end+1])
	if !result.IsObject() {
		return nil
	}

	summary := result.Get("summary")
	if summary.Type != gjson.String || summary.String() == "" {
		return nil
	}

	e := &document.Enrichment{Summary: summary.String()}
	for _, kw := range result.Get("keywords").Array() {
		if kw.Type == gjson.String {
			e.Keywords = append(e.Keywords, kw.String())
		}
	}
	for _, q := range result.Get("hypotheticalQuestions").Array() {
		if q.Type == gjson.String {
			e.HypotheticalQuestions = append(e.HypotheticalQuestions, q.String())
		}
	}
	return e
}

// truncateSummary trims summary to at most maxEnrichmentSummaryTokens
// cl100k_base tokens. If the encoding failed to load, it passes through
// unbounded rather than failing ingestion outright.
func truncateSummary(summary string) string {
	if enrichmentEncoding == nil {
		return summary
	}
	tokens := enrichmentEncoding.Encode(summary, nil, nil)
	if len(tokens) <= maxEnrichmentSummaryTokens {
		return summary
	}
	return enrichmentEncoding.Decode(tokens[:maxEnrichmentSummaryTokens])
}

// fallbackEnrichment synthesizes the documented safe fallback: the chunk's
// first 300 characters as the summary, and its top-10 tokens of length > 3
// by frequency (ties broken alphabetically) as keywords.
func fallbackEnrichment(content string) *document.Enrichment {
	runes := []rune(content)
	n := min(len(runes), 300)

	freq := make(map[string]int)
	var current strings.Builder
	flush := func() {
		if current.Len() > 3 {
			freq[current.String()]++
		}
		current.Reset()
	}
	for _, r := range strings.ToLower(content) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	type kv struct {
		word  string
		count int
	}
	pairs := make([]kv, 0, len(freq))
	for w, n := range freq {
		pairs = append(pairs, kv{w, n})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].word < pairs[j].word
	})

	var keywords []string
	for i := 0; i < len(pairs) && i < 10; i++ {
		keywords = append(keywords, pairs[i].word)
	}

	return &document.Enrichment{Summary: string(runes[:n]), Keywords: keywords}
}
