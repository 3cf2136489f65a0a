// Package evaluation implements faithfulness/relevance scoring over a
// generated answer and its supporting documents, grounded on the
// teacher's Evaluator interface and Request/Response shapes
// (ai/evaluation/evaluator.go, request.go, response.go) and its
// CompositeEvaluator concurrent-merge pattern (ai/evaluation/composite.go).
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"

	"github.com/kojirag/vectra/document"
)

// maxSupportingDataTokens bounds how much of the retrieved context is
// forwarded into a judge prompt, the same cl100k_base encoding the
// teacher's tokenizer.Tiktoken wraps.
const maxSupportingDataTokens = 4000

var supportingDataEncoding, _ = tiktoken.GetEncoding("cl100k_base")

// truncateToTokenLimit trims text to at most maxTokens cl100k_base tokens.
// If the encoding failed to load, text passes through unbounded rather
// than failing evaluation outright.
func truncateToTokenLimit(text string, maxTokens int) string {
	if supportingDataEncoding == nil {
		return text
	}
	tokens := supportingDataEncoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return supportingDataEncoding.Decode(tokens[:maxTokens])
}

// Request carries everything an Evaluator needs to score one example.
type Request struct {
	Prompt     string
	Generation string
	Documents  []document.RetrievedDoc
}

// Response is the result of a single evaluator's assessment.
type Response struct {
	Score    float64 // clamped to [0,1]
	Feedback string
}

// Evaluator scores one generated example.
type Evaluator interface {
	Evaluate(ctx context.Context, req *Request) (*Response, error)
}

// Scorer is the narrow backend capability evaluators need.
type Scorer interface {
	Generate(ctx context.Context, prompt string, system string) (string, error)
}

func supportingData(req *Request) string {
	texts := make([]string, 0, len(req.Documents))
	for _, d := range req.Documents {
		if d.Metadata.Chunk.Enrichment == nil {
			continue
		}
		if s := d.Metadata.Chunk.Enrichment.Summary; s != "" {
			texts = append(texts, s)
		}
	}
	return truncateToTokenLimit(strings.Join(texts, "\n"), maxSupportingDataTokens)
}

// clampScore parses raw into a float and clamps it to [0,1], defaulting to
// 0 on any parse failure so a malformed judge response never propagates
// as an error.
func clampScore(raw string) float64 {
	v := cast.ToFloat64(strings.TrimSpace(raw))
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ Evaluator = (*FaithfulnessEvaluator)(nil)

// FaithfulnessEvaluator scores whether the generation is supported by its
// source documents.
type FaithfulnessEvaluator struct {
	scorer Scorer
}

// NewFaithfulnessEvaluator builds a FaithfulnessEvaluator.
func NewFaithfulnessEvaluator(scorer Scorer) (*FaithfulnessEvaluator, error) {
	if scorer == nil {
		return nil, errors.New("evaluation: scorer is required")
	}
	return &FaithfulnessEvaluator{scorer: scorer}, nil
}

func (e *FaithfulnessEvaluator) Evaluate(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("evaluation: nil request")
	}

	prompt := fmt.Sprintf(
		"On a scale from 0.0 to 1.0, how faithfully is the response supported by the context below? "+
			"Respond with only a number.\n\nContext:\n%s\n\nResponse:\n%s",
		supportingData(req), req.Generation,
	)
	raw, err := e.scorer.Generate(ctx, prompt, "You are a strict faithfulness grader.")
	if err != nil {
		return &Response{Score: 0, Feedback: err.Error()}, nil
	}
	return &Response{Score: clampScore(raw)}, nil
}

var _ Evaluator = (*RelevanceEvaluator)(nil)

// RelevanceEvaluator scores whether the generation actually answers the
// prompt.
type RelevanceEvaluator struct {
	scorer Scorer
}

// NewRelevanceEvaluator builds a RelevanceEvaluator.
func NewRelevanceEvaluator(scorer Scorer) (*RelevanceEvaluator, error) {
	if scorer == nil {
		return nil, errors.New("evaluation: scorer is required")
	}
	return &RelevanceEvaluator{scorer: scorer}, nil
}

func (e *RelevanceEvaluator) Evaluate(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("evaluation: nil request")
	}

	prompt := fmt.Sprintf(
		"On a scale from 0.0 to 1.0, how relevant is the response to the question? "+
			"Respond with only a number.\n\nQuestion:\n%s\n\nResponse:\n%s",
		req.Prompt, req.Generation,
	)
	raw, err := e.scorer.Generate(ctx, prompt, "You are a strict relevance grader.")
	if err != nil {
		return &Response{Score: 0, Feedback: err.Error()}, nil
	}
	return &Response{Score: clampScore(raw)}, nil
}

var _ Evaluator = (*Composite)(nil)

// Composite runs its child evaluators concurrently and averages their
// scores.
type Composite struct {
	evaluators []Evaluator
}

// NewComposite builds a Composite from one or more evaluators.
func NewComposite(evaluators ...Evaluator) (*Composite, error) {
	if len(evaluators) == 0 {
		return nil, errors.New("evaluation: composite requires at least one evaluator")
	}
	return &Composite{evaluators: evaluators}, nil
}

func (c *Composite) Evaluate(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("evaluation: nil request")
	}

	responses := make([]*Response, len(c.evaluators))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, ev := range c.evaluators {
		group.Go(func() error {
			resp, err := ev.Evaluate(groupCtx, req)
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var total float64
	var feedbacks []string
	for _, r := range responses {
		total += r.Score
		if r.Feedback != "" {
			feedbacks = append(feedbacks, r.Feedback)
		}
	}
	return &Response{
		Score:    total / float64(len(responses)),
		Feedback: strings.Join(feedbacks, "; "),
	}, nil
}

// DatasetCase is one gold example for dataset evaluation: a question paired
// with the ground truth answer it should produce.
type DatasetCase struct {
	Question            string
	ExpectedGroundTruth string
}

// DatasetResult is the per-case outcome of EvaluateDataset.
type DatasetResult struct {
	Question            string
	ExpectedGroundTruth string
	Faithfulness        float64
	Relevance           float64
}

// QueryRunner runs one question through the full retrieve -> generate
// pipeline. It is satisfied by orchestrator.Engine; evaluation never
// imports orchestrator, so the dependency runs the other way.
type QueryRunner interface {
	RunQuery(ctx context.Context, question string) (generation string, docs []document.RetrievedDoc, err error)
}

// EvaluateDataset runs runner over every case, then scores each resulting
// generation with faithfulness and relevance independently (never averaged,
// unlike Composite) so the two axes stay distinguishable in the returned
// report. A case whose query run fails is skipped and does not appear in
// the result slice.
func EvaluateDataset(
	ctx context.Context,
	runner QueryRunner,
	faithfulness, relevance Evaluator,
	cases []DatasetCase,
) ([]DatasetResult, error) {
	results := make([]DatasetResult, 0, len(cases))
	for _, c := range cases {
		generation, docs, err := runner.RunQuery(ctx, c.Question)
		if err != nil {
			continue
		}

		req := &Request{Prompt: c.Question, Generation: generation, Documents: docs}

		faithResp, err := faithfulness.Evaluate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("evaluation: faithfulness scoring %q: %w", c.Question, err)
		}
		relResp, err := relevance.Evaluate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("evaluation: relevance scoring %q: %w", c.Question, err)
		}

		results = append(results, DatasetResult{
			Question:            c.Question,
			ExpectedGroundTruth: c.ExpectedGroundTruth,
			Faithfulness:        faithResp.Score,
			Relevance:           relResp.Score,
		})
	}
	return results, nil
}
