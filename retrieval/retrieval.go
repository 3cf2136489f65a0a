// Package retrieval implements the Retriever: strategy dispatch over
// {naive, hyde, multi-query, hybrid, mmr}, Reciprocal Rank Fusion,
// Maximal Marginal Relevance, keyword boosting, and content-keyed
// deduplication, grounded on the teacher's document-retriever/refiner
// shapes (ai/rag/document_retriever_vectorstore.go,
// ai/rag/document_refiner_deduplication.go) and the RRF formula as
// implemented by the retriever service in the wider example pack.
package retrieval

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/kojirag/vectra/config"
	"github.com/kojirag/vectra/document"
	"github.com/kojirag/vectra/internal/batch"
	"github.com/kojirag/vectra/llm"
	"github.com/kojirag/vectra/query"
	"github.com/kojirag/vectra/vectorstore"
)

// DefaultRRFConstant is the general-purpose RRF smoothing constant, used
// everywhere RRF fuses ranked lists outside the multi-query path.
const DefaultRRFConstant = 60.0

// multiQueryRRFConstant is pinned to 1 for the multi-query fan-out path.
const multiQueryRRFConstant = 1.0

// Retriever dispatches to the configured strategy.
type Retriever struct {
	cfg     config.RetrievalConfig
	backend llm.Backend
	store   vectorstore.Store
}

// New builds a Retriever. backend must be non-nil when cfg.Strategy needs
// embeddings or rewriting (every strategy except a pre-embedded query).
func New(cfg config.RetrievalConfig, backend llm.Backend, store vectorstore.Store) *Retriever {
	return &Retriever{cfg: cfg, backend: backend, store: store}
}

// Retrieve runs the configured strategy for q and returns topK documents.
func (r *Retriever) Retrieve(ctx context.Context, q *query.Query, topK int) ([]document.RetrievedDoc, error) {
	switch r.cfg.Strategy {
	case config.RetrievalHyDE:
		return r.retrieveHyDE(ctx, q, topK)
	case config.RetrievalMultiQuery:
		return r.retrieveMultiQuery(ctx, q, topK)
	case config.RetrievalHybrid:
		return r.retrieveHybrid(ctx, q, topK)
	case config.RetrievalMMR:
		return r.retrieveMMR(ctx, q, topK)
	default:
		return r.retrieveNaive(ctx, q, topK)
	}
}

func (r *Retriever) embed(ctx context.Context, text string) ([]float64, error) {
	v, err := r.backend.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return document.Normalize(v), nil
}

func (r *Retriever) retrieveNaive(ctx context.Context, q *query.Query, topK int) ([]document.RetrievedDoc, error) {
	vec, err := r.embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	return r.store.SimilaritySearch(ctx, vec, topK, nil)
}

func (r *Retriever) retrieveHyDE(ctx context.Context, q *query.Query, topK int) ([]document.RetrievedDoc, error) {
	rewritten, _ := query.HyDE(ctx, r.backend, q)
	vec, err := r.embed(ctx, rewritten)
	if err != nil {
		return nil, err
	}
	return r.store.SimilaritySearch(ctx, vec, topK, nil)
}

func (r *Retriever) retrieveMultiQuery(ctx context.Context, q *query.Query, topK int) ([]document.RetrievedDoc, error) {
	variants := query.MultiQuery(ctx, r.backend, q)

	ranked, err := batch.RunConcurrent(ctx, variants, 0, func(ctx context.Context, _ int, variant string) ([]document.RetrievedDoc, error) {
		vec, err := r.embed(ctx, variant)
		if err != nil {
			return nil, err
		}
		return r.store.SimilaritySearch(ctx, vec, topK, nil)
	})
	if err != nil {
		return nil, err
	}

	return ReciprocalRankFusion(ranked, multiQueryRRFConstant, topK), nil
}

func (r *Retriever) retrieveHybrid(ctx context.Context, q *query.Query, topK int) ([]document.RetrievedDoc, error) {
	vec, err := r.embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	return vectorstore.Hybrid(ctx, r.store, q.Text, vec, topK, nil)
}

func (r *Retriever) retrieveMMR(ctx context.Context, q *query.Query, topK int) ([]document.RetrievedDoc, error) {
	fetchK := r.cfg.MMRFetchK
	if fetchK < topK {
		fetchK = topK
	}
	vec, err := r.embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	candidates, err := r.store.SimilaritySearch(ctx, vec, fetchK, nil)
	if err != nil {
		return nil, err
	}
	return MMR(candidates, r.cfg.MMRLambda, topK), nil
}

// ReciprocalRankFusion merges multiple ranked lists into one, scoring each
// distinct document (keyed by Content) as sum(1/(c+rank+1)) over every list
// it appears in. Ties keep discovery order. c is an explicit parameter so
// callers can satisfy either the multi-query path's pinned c=1 or the
// general-purpose DefaultRRFConstant.
func ReciprocalRankFusion(lists [][]document.RetrievedDoc, c float64, topK int) []document.RetrievedDoc {
	scores := make(map[string]float64)
	items := make(map[string]document.RetrievedDoc)
	var order []string

	for _, list := range lists {
		for rank, d := range list {
			key := d.Content
			scores[key] += 1.0 / (c + float64(rank) + 1.0)
			if _, seen := items[key]; !seen {
				items[key] = d
				order = append(order, key)
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	out := make([]document.RetrievedDoc, 0, min(topK, len(order)))
	for _, key := range order {
		if topK > 0 && len(out) >= topK {
			break
		}
		d := items[key]
		d.Score = scores[key]
		out = append(out, d)
	}
	return out
}

// MMR re-ranks candidates by Maximal Marginal Relevance: at each step pick
// the unselected candidate maximizing
// lambda*relevance - (1-lambda)*maxJaccard(candidate, selected), until topK
// are chosen or candidates are exhausted. lambda is clamped to [0,1]. A
// candidate with no computable relevance score contributes 0.
func MMR(candidates []document.RetrievedDoc, lambda float64, topK int) []document.RetrievedDoc {
	lambda = max(0, min(1, lambda))
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}

	tokenSets := make([]map[string]struct{}, len(candidates))
	for i, c := range candidates {
		tokenSets[i] = tokenize(c.Content)
	}

	selected := make([]int, 0, topK)
	chosen := make(map[int]bool, topK)

	for len(selected) < topK {
		bestIdx := -1
		var bestScore float64

		for i, c := range candidates {
			if chosen[i] {
				continue
			}
			var maxSim float64
			for _, s := range selected {
				sim := jaccard(tokenSets[i], tokenSets[s])
				if sim > maxSim {
					maxSim = sim
				}
			}
			mmr := lambda*c.Score - (1-lambda)*maxSim
			if bestIdx == -1 || mmr > bestScore {
				bestIdx = i
				bestScore = mmr
			}
		}

		if bestIdx == -1 {
			break
		}
		chosen[bestIdx] = true
		selected = append(selected, bestIdx)
	}

	out := make([]document.RetrievedDoc, 0, len(selected))
	for _, i := range selected {
		out = append(out, candidates[i])
	}
	return out
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(s string) map[string]struct{} {
	matches := tokenPattern.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if len(m) > 2 {
			set[m] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var intersection int
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// KeywordBoost stably re-sorts docs by how many distinct query terms
// (tokens of length > 2, lowercased) appear in the doc's enrichment
// keywords, ties broken by original order. Docs without enrichment
// keywords score 0 and keep their relative order.
func KeywordBoost(docs []document.RetrievedDoc, queryText string) []document.RetrievedDoc {
	queryTerms := tokenize(queryText)
	if len(queryTerms) == 0 {
		return docs
	}

	type scored struct {
		doc   document.RetrievedDoc
		boost int
	}
	scoredDocs := make([]scored, len(docs))
	for i, d := range docs {
		keywordSet := make(map[string]struct{})
		if d.Metadata.Chunk.Enrichment != nil {
			for _, kw := range d.Metadata.Chunk.Enrichment.Keywords {
				keywordSet[strings.ToLower(kw)] = struct{}{}
			}
		}
		var count int
		for t := range queryTerms {
			if _, ok := keywordSet[t]; ok {
				count++
			}
		}
		scoredDocs[i] = scored{doc: d, boost: count}
	}

	sort.SliceStable(scoredDocs, func(i, j int) bool {
		return scoredDocs[i].boost > scoredDocs[j].boost
	})

	out := make([]document.RetrievedDoc, len(scoredDocs))
	for i, s := range scoredDocs {
		out[i] = s.doc
	}
	return out
}

// Dedup removes documents with duplicate Content, keeping the
// first (highest-ranked) occurrence, matching the teacher's
// document_refiner_deduplication.go content-keyed refiner.
func Dedup(docs []document.RetrievedDoc) []document.RetrievedDoc {
	seen := make(map[string]struct{}, len(docs))
	out := make([]document.RetrievedDoc, 0, len(docs))
	for _, d := range docs {
		if _, ok := seen[d.Content]; ok {
			continue
		}
		seen[d.Content] = struct{}{}
		out = append(out, d)
	}
	return out
}
