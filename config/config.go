// Package config defines the single validated configuration tree the
// orchestrator is assembled from. Every sub-tree follows the teacher
// corpus's convention of a private validate() error method applying
// defaults in place and rejecting out-of-range values.
package config

import (
	"regexp"

	"github.com/kojirag/vectra/ragerr"
)

// ChunkingStrategy enumerates the supported document-splitting strategies.
type ChunkingStrategy string

const (
	ChunkingRecursive ChunkingStrategy = "recursive"
	ChunkingAgentic   ChunkingStrategy = "agentic"
)

// RetrievalStrategy enumerates the supported retriever strategies.
type RetrievalStrategy string

const (
	RetrievalNaive      RetrievalStrategy = "naive"
	RetrievalHyDE       RetrievalStrategy = "hyde"
	RetrievalMultiQuery RetrievalStrategy = "multi-query"
	RetrievalHybrid     RetrievalStrategy = "hybrid"
	RetrievalMMR        RetrievalStrategy = "mmr"
)

// IngestionMode enumerates how re-ingesting an already-seen file behaves.
type IngestionMode string

const (
	IngestionSkip    IngestionMode = "skip"
	IngestionAppend  IngestionMode = "append"
	IngestionReplace IngestionMode = "replace"
)

// MemoryKind enumerates the supported conversation-memory backends.
type MemoryKind string

const (
	MemoryInMemory   MemoryKind = "in-memory"
	MemoryKV         MemoryKind = "kv"
	MemoryRelational MemoryKind = "relational"
)

// OutputFormat enumerates the supported generation output shapes.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// EmbeddingConfig configures the embedding half of the LanguageBackend.
type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	Dimensions int
}

// LLMConfig configures a generation-capable LanguageBackend invocation.
type LLMConfig struct {
	Provider        string
	Model           string
	APIKey          string
	Temperature     float64
	MaxTokens       int
	BaseURL         string
	DefaultHeaders  map[string]string
}

// ChunkingConfig configures the Document Processor.
type ChunkingConfig struct {
	Strategy    ChunkingStrategy
	ChunkSize   int
	ChunkOverlap int
	Separators  []string
	AgenticLLM  *LLMConfig
}

// RetrievalConfig configures the Retriever.
type RetrievalConfig struct {
	Strategy  RetrievalStrategy
	LLMConfig *LLMConfig
	MMRLambda float64
	MMRFetchK int
}

// RerankingConfig configures the Reranker.
type RerankingConfig struct {
	Enabled    bool
	TopN       int
	WindowSize int
	LLMConfig  *LLMConfig
}

// MetadataConfig configures chunk metadata enrichment.
type MetadataConfig struct {
	Enrichment bool
}

// QueryPlanningConfig configures the Context Planner.
type QueryPlanningConfig struct {
	TokenBudget          int
	PreferSummariesBelow int
	IncludeCitations     bool
}

// GroundingConfig configures the Grounding stage.
type GroundingConfig struct {
	Enabled    bool
	Strict     bool
	MaxSnippets int
}

// GenerationConfig configures the Generation Driver's output handling.
type GenerationConfig struct {
	OutputFormat OutputFormat
}

// PromptsConfig carries user-supplied prompt overrides.
type PromptsConfig struct {
	Query string // optional; substitutes {{context}}/{{question}}
}

// IngestionConfig configures the Ingestion Coordinator.
type IngestionConfig struct {
	Mode              IngestionMode
	RateLimitEnabled  bool
	ConcurrencyLimit  int
}

// MemoryConfig configures the History Adapter.
type MemoryConfig struct {
	Enabled     bool
	Kind        MemoryKind
	MaxMessages int
}

// DatabaseConfig configures the persistence column mapping contract.
type DatabaseConfig struct {
	Type          string
	ClientInstance any
	TableName     string
	ColumnMap     map[string]string
}

// Config is the full validated configuration tree.
type Config struct {
	Embedding     EmbeddingConfig
	LLM           LLMConfig
	Chunking      ChunkingConfig
	Retrieval     RetrievalConfig
	Reranking     RerankingConfig
	Metadata      MetadataConfig
	QueryPlanning QueryPlanningConfig
	Grounding     GroundingConfig
	Generation    GenerationConfig
	Prompts       PromptsConfig
	Ingestion     IngestionConfig
	Memory        MemoryConfig
	Database      DatabaseConfig
}

var sqlIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the tree for internal consistency and applies defaults in
// place. It returns *ragerr.InvalidConfig on the first violation found.
func (c *Config) Validate() error {
	if c == nil {
		return ragerr.NewInvalidConfig("", "config cannot be nil")
	}

	if c.Chunking.Strategy == "" {
		c.Chunking.Strategy = ChunkingRecursive
	}
	if c.Chunking.Strategy != ChunkingRecursive && c.Chunking.Strategy != ChunkingAgentic {
		return ragerr.NewInvalidConfig("chunking.strategy", "must be 'recursive' or 'agentic'")
	}
	if c.Chunking.Strategy == ChunkingAgentic && c.Chunking.AgenticLLM == nil {
		return ragerr.NewInvalidConfig("chunking.agenticLlm", "required when chunking.strategy = agentic")
	}
	if c.Chunking.ChunkSize <= 0 {
		return ragerr.NewInvalidConfig("chunking.chunkSize", "must be positive")
	}
	if c.Chunking.ChunkOverlap < 0 {
		return ragerr.NewInvalidConfig("chunking.chunkOverlap", "must not be negative")
	}

	if c.Retrieval.Strategy == "" {
		c.Retrieval.Strategy = RetrievalNaive
	}
	switch c.Retrieval.Strategy {
	case RetrievalNaive, RetrievalHyDE, RetrievalMultiQuery, RetrievalHybrid, RetrievalMMR:
	default:
		return ragerr.NewInvalidConfig("retrieval.strategy", "must be one of naive|hyde|multi-query|hybrid|mmr")
	}
	if (c.Retrieval.Strategy == RetrievalHyDE || c.Retrieval.Strategy == RetrievalMultiQuery) && c.Retrieval.LLMConfig == nil {
		return ragerr.NewInvalidConfig("retrieval.llmConfig", "required when retrieval.strategy is hyde or multi-query")
	}
	if c.Retrieval.MMRLambda < 0 || c.Retrieval.MMRLambda > 1 {
		return ragerr.NewInvalidConfig("retrieval.mmrLambda", "must be in [0,1]")
	}
	if c.Retrieval.MMRFetchK <= 0 {
		c.Retrieval.MMRFetchK = 20
	}

	if c.Reranking.Enabled {
		if c.Reranking.WindowSize <= 0 {
			return ragerr.NewInvalidConfig("reranking.windowSize", "must be positive when reranking is enabled")
		}
		if c.Reranking.TopN <= 0 {
			return ragerr.NewInvalidConfig("reranking.topN", "must be positive when reranking is enabled")
		}
		if c.Reranking.LLMConfig == nil {
			return ragerr.NewInvalidConfig("reranking.llmConfig", "required when reranking is enabled")
		}
	}

	if c.QueryPlanning.TokenBudget <= 0 {
		return ragerr.NewInvalidConfig("queryPlanning.tokenBudget", "must be positive")
	}
	if c.QueryPlanning.PreferSummariesBelow < 0 {
		return ragerr.NewInvalidConfig("queryPlanning.preferSummariesBelow", "must not be negative")
	}

	if c.Grounding.Enabled && c.Grounding.MaxSnippets <= 0 {
		c.Grounding.MaxSnippets = 3
	}

	if c.Generation.OutputFormat == "" {
		c.Generation.OutputFormat = OutputText
	}
	if c.Generation.OutputFormat != OutputText && c.Generation.OutputFormat != OutputJSON {
		return ragerr.NewInvalidConfig("generation.outputFormat", "must be 'text' or 'json'")
	}

	if c.Ingestion.Mode == "" {
		c.Ingestion.Mode = IngestionAppend
	}
	switch c.Ingestion.Mode {
	case IngestionSkip, IngestionAppend, IngestionReplace:
	default:
		return ragerr.NewInvalidConfig("ingestion.mode", "must be one of skip|append|replace")
	}
	if c.Ingestion.RateLimitEnabled && c.Ingestion.ConcurrencyLimit <= 0 {
		return ragerr.NewInvalidConfig("ingestion.concurrencyLimit", "must be positive when rateLimitEnabled is true")
	}

	if c.Memory.Enabled {
		if c.Memory.Kind == "" {
			c.Memory.Kind = MemoryInMemory
		}
		switch c.Memory.Kind {
		case MemoryInMemory, MemoryKV, MemoryRelational:
		default:
			return ragerr.NewInvalidConfig("memory.kind", "must be one of in-memory|kv|relational")
		}
		if c.Memory.MaxMessages <= 0 {
			c.Memory.MaxMessages = 20
		}
	}

	if c.Database.TableName != "" && !sqlIdentifier.MatchString(c.Database.TableName) {
		return ragerr.NewInvalidConfig("database.tableName", "must match ^[A-Za-z_][A-Za-z0-9_]*$")
	}
	for col := range c.Database.ColumnMap {
		if !sqlIdentifier.MatchString(col) {
			return ragerr.NewInvalidConfig("database.columnMap", "column identifier '"+col+"' must match ^[A-Za-z_][A-Za-z0-9_]*$")
		}
	}

	return nil
}
