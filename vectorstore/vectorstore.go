// Package vectorstore declares the VectorStore capability: the pluggable
// persistence and similarity-search backend. Concrete backends (SQL with a
// vector extension, a hosted vector service, a document-vector collection)
// live outside this module; only the contract and the optional-capability
// detection helpers live here.
package vectorstore

import (
	"context"

	"github.com/kojirag/vectra/document"
)

// Filter is a conjunctive equality map over metadata keys: every key/value
// pair must match for a record to be selected.
type Filter map[string]any

// DocRow is a single row as returned by an optional ListDocuments call.
type DocRow struct {
	ID       string
	Content  string
	Metadata document.Metadata
}

// ListOptions constrains an optional ListDocuments call.
type ListOptions struct {
	Filter Filter
	Limit  int
	Offset int
}

// DeleteOptions selects which documents an optional DeleteDocuments call
// removes. Exactly one of IDs or Filter is expected to be set.
type DeleteOptions struct {
	IDs    []string
	Filter Filter
}

// Store is the required surface every VectorStore backend implements.
type Store interface {
	// AddDocuments inserts docs without attempting to detect or replace
	// existing records with the same id.
	AddDocuments(ctx context.Context, docs []*document.Document) error

	// SimilaritySearch returns the topK documents most similar to vector,
	// optionally constrained by filter.
	SimilaritySearch(ctx context.Context, vector []float64, topK int, filter Filter) ([]document.RetrievedDoc, error)
}

// Upserter is an optional capability: content-addressed insert-or-replace
// by document id.
type Upserter interface {
	UpsertDocuments(ctx context.Context, docs []*document.Document) error
}

// HybridSearcher is an optional capability: a backend-native fusion of
// semantic (vector) and lexical (full-text) retrieval.
type HybridSearcher interface {
	HybridSearch(ctx context.Context, text string, vector []float64, topK int, filter Filter) ([]document.RetrievedDoc, error)
}

// IndexEnsurer is an optional capability: best-effort index/collection
// provisioning, called before each file's write during ingestion.
type IndexEnsurer interface {
	EnsureIndexes(ctx context.Context) error
}

// FileExistsChecker is an optional capability backing ingestion's
// idempotency check.
type FileExistsChecker interface {
	FileExists(ctx context.Context, sha256 string, size int64, lastModified int64) (bool, error)
}

// Lister is an optional capability for administrative/debugging access to
// stored rows.
type Lister interface {
	ListDocuments(ctx context.Context, opts ListOptions) ([]DocRow, error)
}

// Deleter is an optional capability for removing documents by id or by
// metadata filter.
type Deleter interface {
	DeleteDocuments(ctx context.Context, opts DeleteOptions) error
}

// VectorStore is the full capability set a backend may implement. Most
// backends only need to satisfy Store; the orchestrator type-asserts for
// the rest and degrades gracefully when a capability is absent (see the
// Hybrid/EnsureIndexes/FileExists helpers below).
type VectorStore interface {
	Store
}

// Hybrid calls the store's native HybridSearch if it implements
// HybridSearcher, otherwise it falls back to SimilaritySearch — the
// documented degradation for backends lacking native hybrid search.
func Hybrid(ctx context.Context, store Store, text string, vector []float64, topK int, filter Filter) ([]document.RetrievedDoc, error) {
	if hs, ok := store.(HybridSearcher); ok {
		return hs.HybridSearch(ctx, text, vector, topK, filter)
	}
	return store.SimilaritySearch(ctx, vector, topK, filter)
}

// EnsureIndexes calls the store's EnsureIndexes if implemented. Failures
// are swallowed: index creation is a best-effort optimization, never a
// correctness requirement.
func EnsureIndexes(ctx context.Context, store Store) {
	if ie, ok := store.(IndexEnsurer); ok {
		_ = ie.EnsureIndexes(ctx)
	}
}

// FileExists reports whether the store has already ingested a file with
// this fingerprint. Backends without FileExistsChecker are treated as
// never having seen the file.
func FileExists(ctx context.Context, store Store, sha256 string, size int64, lastModified int64) (bool, error) {
	fc, ok := store.(FileExistsChecker)
	if !ok {
		return false, nil
	}
	return fc.FileExists(ctx, sha256, size, lastModified)
}

// Upsert calls the store's UpsertDocuments if implemented, otherwise falls
// back to AddDocuments (append semantics) — the degradation for backends
// without native upsert.
func Upsert(ctx context.Context, store Store, docs []*document.Document) error {
	if u, ok := store.(Upserter); ok {
		return u.UpsertDocuments(ctx, docs)
	}
	return store.AddDocuments(ctx, docs)
}

// Delete calls the store's DeleteDocuments if implemented; a store without
// Deleter silently performs no deletion, which callers in replace mode
// must treat as append-only degradation.
func Delete(ctx context.Context, store Store, opts DeleteOptions) error {
	if d, ok := store.(Deleter); ok {
		return d.DeleteDocuments(ctx, opts)
	}
	return nil
}
