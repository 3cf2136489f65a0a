// Package orchestrator wires every component into the top-level engine:
// Ingest/IngestDirectory on the ingestion side, Query/QueryStream on the
// retrieval side, running the full §4.9 state machine. Grounded on the
// teacher's rag.Pipeline staged-method decomposition
// (ai/rag/pipeline.go's Execute: transform -> expand -> retrieve ->
// refine -> augment), extended with the ingestion side and the
// generation/evaluation stages the teacher's narrower rag.Pipeline never
// covers.
package orchestrator

import (
	"context"
	"fmt"
	"iter"

	"github.com/kojirag/vectra/chunking"
	"github.com/kojirag/vectra/config"
	"github.com/kojirag/vectra/document"
	"github.com/kojirag/vectra/embedcache"
	"github.com/kojirag/vectra/evaluation"
	"github.com/kojirag/vectra/events"
	"github.com/kojirag/vectra/generation"
	"github.com/kojirag/vectra/grounding"
	"github.com/kojirag/vectra/history"
	"github.com/kojirag/vectra/ingestion"
	"github.com/kojirag/vectra/llm"
	"github.com/kojirag/vectra/loader"
	"github.com/kojirag/vectra/planning"
	"github.com/kojirag/vectra/query"
	"github.com/kojirag/vectra/ragerr"
	"github.com/kojirag/vectra/rerank"
	"github.com/kojirag/vectra/retrieval"
	"github.com/kojirag/vectra/vectorstore"
)

// Dependencies are the externally provided backends an Engine is built
// from; Config determines how they are wired together.
type Dependencies struct {
	Backend llm.Backend
	Store   vectorstore.VectorStore
	Loaders map[string]loader.DocumentLoader
	History history.Store
	Bus     *events.Bus
}

// Engine is the fully assembled orchestration engine.
type Engine struct {
	cfg config.Config

	coordinator  *ingestion.Coordinator
	retriever    *retrieval.Retriever
	reranker     *rerank.Reranker
	genDriver    *generation.Driver
	evaluator    evaluation.Evaluator
	faithfulness evaluation.Evaluator
	relevance    evaluation.Evaluator
	history      history.Store
	bus          *events.Bus
}

// New validates cfg and assembles an Engine from deps.
func New(cfg config.Config, deps Dependencies) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Backend == nil {
		return nil, ragerr.NewInvalidConfig("backend", "required")
	}
	if deps.Store == nil {
		return nil, ragerr.NewInvalidConfig("store", "required")
	}

	bus := deps.Bus
	if bus == nil {
		bus = &events.Bus{}
	}

	hist := deps.History
	if cfg.Memory.Enabled && hist == nil {
		hist = history.NewInMemoryStore(cfg.Memory.MaxMessages)
	}
	if hist != nil {
		windowed, err := history.NewWindowStore(hist, cfg.Memory.MaxMessages)
		if err == nil {
			hist = windowed
		}
	}

	var agenticBackend chunking.AgenticBackend
	if cfg.Chunking.AgenticLLM != nil {
		agenticBackend = deps.Backend
	}
	splitter := chunking.New(cfg.Chunking, agenticBackend)

	cache := embedcache.New()
	coordinator := ingestion.New(cfg.Ingestion, cfg.Chunking, cfg.Metadata, splitter, deps.Backend, deps.Store, cache, deps.Loaders, bus)

	retriever := retrieval.New(cfg.Retrieval, deps.Backend, deps.Store)

	var reranker *rerank.Reranker
	if cfg.Reranking.Enabled {
		reranker = rerank.New(cfg.Reranking, deps.Backend)
	}

	genDriver := generation.New(cfg.Generation, cfg.Prompts, deps.Backend, hist, bus)

	faithfulness, _ := evaluation.NewFaithfulnessEvaluator(deps.Backend)
	relevance, _ := evaluation.NewRelevanceEvaluator(deps.Backend)
	composite, _ := evaluation.NewComposite(faithfulness, relevance)

	return &Engine{
		cfg: cfg, coordinator: coordinator, retriever: retriever,
		reranker: reranker, genDriver: genDriver, evaluator: composite,
		faithfulness: faithfulness, relevance: relevance,
		history: hist, bus: bus,
	}, nil
}

// Ingest runs the ingestion pipeline for a single file.
func (e *Engine) Ingest(ctx context.Context, path string) error {
	return e.coordinator.IngestFile(ctx, path)
}

// IngestDirectory runs the ingestion pipeline for every supported file in
// dir, non-recursively.
func (e *Engine) IngestDirectory(ctx context.Context, dir string) (ingestion.Summary, error) {
	return e.coordinator.IngestDirectory(ctx, dir)
}

// QueryResult is the terminal output of a non-streaming Query call.
type QueryResult struct {
	Answer     string
	Sources    []document.RetrievedDoc
	Evaluation *evaluation.Response // composite score computed on every Query; nil if the evaluator returned an error
}

// Query runs the full retrieve -> rerank -> plan -> ground -> generate
// pipeline for a single question, optionally scoped to a conversation
// session for history-aware prompting.
func (e *Engine) Query(ctx context.Context, sessionID, questionText string) (*QueryResult, error) {
	q := &query.Query{Text: questionText}

	if e.history != nil && sessionID != "" {
		recent, err := e.history.GetRecent(ctx, sessionID, e.cfg.Memory.MaxMessages)
		if err == nil {
			q.History = recent
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, ragerr.ErrCancelled
	}

	e.bus.EmitRetrievalStart(events.RetrievalEvent{Query: q.Text})
	docs, err := e.retriever.Retrieve(ctx, q, e.fetchK())
	if err != nil {
		e.bus.EmitError(err)
		return nil, fmt.Errorf("orchestrator: retrieval failed: %w", err)
	}
	docs = retrieval.Dedup(docs)
	docs = retrieval.KeywordBoost(docs, q.Text)
	e.bus.EmitRetrievalEnd(events.RetrievalEvent{Query: q.Text, Docs: len(docs)})

	if e.reranker != nil {
		e.bus.EmitRerankingStart(events.RerankingEvent{Candidates: len(docs)})
		docs, err = e.reranker.Rerank(ctx, q, docs)
		if err != nil {
			e.bus.EmitError(err)
			return nil, fmt.Errorf("orchestrator: reranking failed: %w", err)
		}
		e.bus.EmitRerankingEnd(events.RerankingEvent{Candidates: len(docs), Kept: len(docs)})
	}

	if err := ctx.Err(); err != nil {
		return nil, ragerr.ErrCancelled
	}

	parts := planning.Plan(e.cfg.QueryPlanning, docs)
	parts = grounding.Ground(e.cfg.Grounding, q.Text, parts)
	contextText := generation.JoinContext(parts)

	transcript := ""
	if len(q.History) > 0 {
		transcript = history.FormatTranscript(q.History)
	}
	prompt := e.genDriver.BuildPrompt(contextText, q.Text, transcript)

	if err := ctx.Err(); err != nil {
		return nil, ragerr.ErrCancelled
	}

	result, err := e.genDriver.Generate(ctx, sessionID, prompt, docs)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: generation failed: %w", err)
	}

	out := &QueryResult{Answer: result.Answer, Sources: result.Sources}

	if e.evaluator != nil {
		evalResp, err := e.evaluator.Evaluate(ctx, &evaluation.Request{
			Prompt: q.Text, Generation: result.Answer, Documents: docs,
		})
		if err == nil {
			out.Evaluation = evalResp
		}
	}

	return out, nil
}

// QueryStream runs the same pipeline as Query but streams the generation
// stage incrementally.
func (e *Engine) QueryStream(ctx context.Context, sessionID, questionText string) (iter.Seq2[llm.StreamChunk, error], error) {
	q := &query.Query{Text: questionText}

	if e.history != nil && sessionID != "" {
		recent, err := e.history.GetRecent(ctx, sessionID, e.cfg.Memory.MaxMessages)
		if err == nil {
			q.History = recent
		}
	}

	docs, err := e.retriever.Retrieve(ctx, q, e.fetchK())
	if err != nil {
		return nil, fmt.Errorf("orchestrator: retrieval failed: %w", err)
	}
	docs = retrieval.Dedup(docs)
	docs = retrieval.KeywordBoost(docs, q.Text)

	if e.reranker != nil {
		docs, err = e.reranker.Rerank(ctx, q, docs)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: reranking failed: %w", err)
		}
	}

	parts := planning.Plan(e.cfg.QueryPlanning, docs)
	parts = grounding.Ground(e.cfg.Grounding, q.Text, parts)
	contextText := generation.JoinContext(parts)

	transcript := ""
	if len(q.History) > 0 {
		transcript = history.FormatTranscript(q.History)
	}
	prompt := e.genDriver.BuildPrompt(contextText, q.Text, transcript)

	return e.genDriver.GenerateStream(ctx, sessionID, prompt), nil
}

// fetchK is the retrieval strategy's k: reranking.windowSize when reranking
// is enabled, else the fixed default of 5.
func (e *Engine) fetchK() int {
	if e.cfg.Reranking.Enabled {
		return e.cfg.Reranking.WindowSize
	}
	return 5
}

// RunQuery satisfies evaluation.QueryRunner: it runs the full pipeline for
// question through Query and returns the generation alongside the documents
// it was grounded on. Query's own composite evaluation still runs; its
// result is discarded.
func (e *Engine) RunQuery(ctx context.Context, question string) (string, []document.RetrievedDoc, error) {
	result, err := e.Query(ctx, "", question)
	if err != nil {
		return "", nil, err
	}
	return result.Answer, result.Sources, nil
}

// EvaluateDataset runs cases through the full pipeline and scores each
// resulting generation for faithfulness and relevance independently.
func (e *Engine) EvaluateDataset(ctx context.Context, cases []evaluation.DatasetCase) ([]evaluation.DatasetResult, error) {
	return evaluation.EvaluateDataset(ctx, e, e.faithfulness, e.relevance, cases)
}
