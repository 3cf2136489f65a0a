// Package rerank implements the Reranker: LLM-scored windowed reranking,
// grounded on the sort-and-truncate shape of the teacher's
// RankDocumentRefiner (ai/rag/document_refiner_rank.go) generalized to
// call a Scorer backend per window instead of trusting a pre-existing
// Score field.
package rerank

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/spf13/cast"

	"github.com/kojirag/vectra/config"
	"github.com/kojirag/vectra/document"
	"github.com/kojirag/vectra/internal/batch"
	"github.com/kojirag/vectra/llm"
	"github.com/kojirag/vectra/query"
)

var firstNumber = regexp.MustCompile(`\d+`)

// Reranker scores retrieved documents against a query using an LLM and
// keeps the topN highest-scoring ones.
type Reranker struct {
	cfg     config.RerankingConfig
	scorer  llm.Scorer
}

// New builds a Reranker from a validated RerankingConfig.
func New(cfg config.RerankingConfig, scorer llm.Scorer) *Reranker {
	return &Reranker{cfg: cfg, scorer: scorer}
}

// Rerank scores the first cfg.WindowSize candidates concurrently and
// returns the topN of them by score descending; candidates beyond the
// window are dropped. A document whose score cannot be parsed defaults to 0
// rather than failing the whole batch.
func (r *Reranker) Rerank(ctx context.Context, q *query.Query, docs []document.RetrievedDoc) ([]document.RetrievedDoc, error) {
	window := docs
	if r.cfg.WindowSize > 0 && len(window) > r.cfg.WindowSize {
		window = window[:r.cfg.WindowSize]
	}

	scored, err := batch.RunConcurrent(ctx, window, 0, func(ctx context.Context, _ int, d document.RetrievedDoc) (document.RetrievedDoc, error) {
		d.Score = r.score(ctx, q.Text, d.Content)
		return d, nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	topN := r.cfg.TopN
	if topN <= 0 || topN > len(scored) {
		topN = len(scored)
	}
	return scored[:topN], nil
}

// score asks the backend to rate content's relevance to queryText on a
// 0-10 scale and extracts the first integer in the response. Any backend
// failure or unparsable response scores 0 rather than propagating an
// error, since a single bad score must never sink the whole rerank.
func (r *Reranker) score(ctx context.Context, queryText, content string) float64 {
	prompt := fmt.Sprintf(
		"On a scale of 0 to 10, how relevant is the following passage to the question?\n\nQuestion: %s\n\nPassage: %s\n\nRespond with only the number.",
		queryText, content,
	)
	raw, err := r.scorer.Generate(ctx, prompt, "You are a precise relevance grader.")
	if err != nil {
		return 0
	}

	match := firstNumber.FindString(raw)
	if match == "" {
		return 0
	}
	return cast.ToFloat64(match)
}
