// Package query implements the Query type and its rewrite strategies
// (HyDE, multi-query), grounded on the teacher's ai/rag.Query{Text,
// History, Extra} value object and its multi-query expander.
package query

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/kojirag/vectra/history"
)

// Query is the mutable unit of work threaded through the retrieval
// pipeline.
type Query struct {
	Text    string
	History []history.Message
	Extra   map[string]any
}

func (q *Query) ensureExtra() {
	if q.Extra == nil {
		q.Extra = make(map[string]any)
	}
}

// Get reads an extra pipeline-local value.
func (q *Query) Get(key string) (any, bool) {
	q.ensureExtra()
	v, ok := q.Extra[key]
	return v, ok
}

// Set writes an extra pipeline-local value.
func (q *Query) Set(key string, value any) {
	q.ensureExtra()
	q.Extra[key] = value
}

// Clone returns a deep-enough copy safe to mutate independently.
func (q *Query) Clone() *Query {
	return &Query{
		Text:    q.Text,
		History: slices.Clone(q.History),
		Extra:   maps.Clone(q.Extra),
	}
}

// Rewriter is the capability the narrow HyDE/multi-query backend needs: a
// single free-form completion call.
type Rewriter interface {
	Generate(ctx context.Context, prompt string, system string) (string, error)
}

// HyDE rewrites q.Text into a hypothetical answer document, the text
// actually embedded and searched against in the hyde retrieval strategy.
// On backend failure it returns the original query text unchanged.
func HyDE(ctx context.Context, backend Rewriter, q *Query) (string, error) {
	prompt := "Write a short hypothetical passage that would answer the following question. " +
		"Do not mention that it is hypothetical.\n\nQuestion: " + q.Text
	answer, err := backend.Generate(ctx, prompt, "You produce concise hypothetical answer passages for search.")
	if err != nil {
		return q.Text, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return q.Text, nil
	}
	return answer, nil
}

// MultiQuery expands q into up to 3 rewritten alternates (one generation
// call, newline-separated) plus up to 3 fail-soft hypothetical questions
// (a separate generation call, parsed as a JSON array), always appending
// the original query text last so the original intent is never lost even
// if expansion degenerates.
func MultiQuery(ctx context.Context, backend Rewriter, q *Query) []string {
	variants := append(alternates(ctx, backend, q.Text), hypotheticalQuestions(ctx, backend, q.Text)...)
	variants = append(variants, q.Text)
	return lo.Uniq(variants)
}

func alternates(ctx context.Context, backend Rewriter, queryText string) []string {
	prompt := "Generate up to 3 alternative phrasings of the following question, " +
		"one per line, covering different angles. Respond with only the lines, " +
		"no numbering or explanation.\n\nQuestion: " + queryText

	raw, err := backend.Generate(ctx, prompt, "You are an expert at search query expansion.")
	if err != nil {
		return nil
	}

	lines := strings.Split(raw, "\n")
	nonEmpty := lo.Filter(lines, func(l string, _ int) bool {
		return strings.TrimSpace(l) != ""
	})

	var out []string
	for i, l := range nonEmpty {
		if i >= 3 {
			break
		}
		out = append(out, strings.TrimSpace(l))
	}
	return out
}

// hypotheticalQuestions asks for up to 3 questions this passage might
// answer, as a JSON array. Any backend failure or parse failure fails soft
// to an empty list rather than propagating an error.
func hypotheticalQuestions(ctx context.Context, backend Rewriter, queryText string) []string {
	prompt := "Generate up to 3 hypothetical questions that a passage answering the following " +
		"question might also answer. Respond with only a JSON array of strings, no prose.\n\n" +
		"Question: " + queryText

	raw, err := backend.Generate(ctx, prompt, "You are an expert at search query expansion.")
	if err != nil {
		return nil
	}

	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start < 0 || end < start {
		return nil
	}
	result := gjson.Parse(raw[start : end+1])
	if !result.IsArray() {
		return nil
	}

	var out []string
	for i, item := range result.Array() {
		if i >= 3 {
			break
		}
		if item.Type == gjson.String {
			out = append(out, item.String())
		}
	}
	return out
}
