// Package grounding implements the Grounding stage: extractive sentence
// selection from planned context, scored by keyword overlap with the
// query, either replacing (strict mode) or appending to (default mode)
// the assembled context. No direct teacher precedent exists for
// extractive grounding; this is built in the DocumentRefiner idiom of
// ai/rag/interface.go as a thin strategy function operating on already
// planned context, consistent with how every other refiner in that
// package is a pure function over a document slice.
package grounding

import (
	"sort"
	"strings"

	"github.com/kojirag/vectra/config"
	"github.com/kojirag/vectra/document"
)

// splitSentences breaks text on sentence-terminal punctuation followed by
// whitespace. Go's RE2 engine has no lookbehind, so the boundary is found
// by scanning for '.', '!', or '?' followed by a space/newline and
// keeping the punctuation with the preceding sentence, the same split
// points a `(?<=[.!?])\s+` lookbehind would produce.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 >= len(runes) {
			continue
		}
		next := runes[i+1]
		if next == ' ' || next == '\n' || next == '\t' {
			sentence := strings.TrimSpace(string(runes[start : i+1]))
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// keywordsFrom extracts the lowercased alphanumeric words of length > 2
// from a query string, the candidate keyword set scored against each
// sentence.
func keywordsFrom(queryText string) []string {
	var words []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 2 {
			words = append(words, current.String())
		}
		current.Reset()
	}
	for _, r := range strings.ToLower(queryText) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return words
}

// Ground extracts up to cfg.MaxSnippets sentences per context part, scored
// by how many query keywords they contain, and either appends them as a
// trailing "Grounding:" section (default) or replaces each part's body
// with just its extracted sentences (strict mode). When grounding is
// disabled the parts pass through unchanged.
func Ground(cfg config.GroundingConfig, queryText string, parts []document.ContextPart) []document.ContextPart {
	if !cfg.Enabled {
		return parts
	}

	keywords := keywordsFrom(queryText)
	maxSnippets := cfg.MaxSnippets
	if maxSnippets <= 0 {
		maxSnippets = 3
	}

	out := make([]document.ContextPart, len(parts))
	for i, p := range parts {
		snippets := extractSnippets(p.Body, keywords, maxSnippets)

		if cfg.Strict {
			out[i] = document.ContextPart{Header: p.Header, Body: strings.Join(snippets, " ")}
			continue
		}

		body := p.Body
		if len(snippets) > 0 {
			body = body + "\n\nGrounding: " + strings.Join(snippets, " ")
		}
		out[i] = document.ContextPart{Header: p.Header, Body: body}
	}
	return out
}

func extractSnippets(body string, keywords []string, maxSnippets int) []string {
	sentences := splitSentences(body)
	type scored struct {
		sentence string
		score    int
		index    int
	}

	scoredSentences := make([]scored, len(sentences))
	for i, s := range sentences {
		lower := strings.ToLower(s)
		var score int
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		scoredSentences[i] = scored{sentence: s, score: score, index: i}
	}

	positive := make([]scored, 0, len(scoredSentences))
	for _, s := range scoredSentences {
		if s.score > 0 {
			positive = append(positive, s)
		}
	}
	scoredSentences = positive

	sort.SliceStable(scoredSentences, func(i, j int) bool {
		return scoredSentences[i].score > scoredSentences[j].score
	})

	if len(scoredSentences) > maxSnippets {
		scoredSentences = scoredSentences[:maxSnippets]
	}

	sort.SliceStable(scoredSentences, func(i, j int) bool {
		return scoredSentences[i].index < scoredSentences[j].index
	})

	out := make([]string, len(scoredSentences))
	for i, s := range scoredSentences {
		out[i] = s.sentence
	}
	return out
}
