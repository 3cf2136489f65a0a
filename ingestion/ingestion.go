// Package ingestion implements the Ingestion Coordinator: the §4.3
// load -> chunk -> embed -> persist pipeline, grounded on the teacher's
// PipelineConfig validate-then-construct shape (ai/rag/pipeline.go) and its
// bounded fan-out idiom, extended with the file-fingerprint idempotency
// check and mode dispatch this engine's ingestion side requires.
package ingestion

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"github.com/kojirag/vectra/chunking"
	"github.com/kojirag/vectra/config"
	"github.com/kojirag/vectra/document"
	"github.com/kojirag/vectra/embedcache"
	"github.com/kojirag/vectra/events"
	"github.com/kojirag/vectra/internal/batch"
	"github.com/kojirag/vectra/llm"
	"github.com/kojirag/vectra/loader"
	"github.com/kojirag/vectra/ragerr"
	"github.com/kojirag/vectra/vectorstore"
)

// hiddenOrTempSuffixes are the temp/lock file patterns skipped during
// directory traversal, alongside any entry whose name starts with '.' or
// '~$'.
var hiddenOrTempSuffixes = []string{".tmp", ".temp", ".crdownload", ".part"}

// Coordinator runs the ingestion pipeline for one configured backend/store
// pair.
type Coordinator struct {
	cfg         config.IngestionConfig
	chunkCfg    config.ChunkingConfig
	metadataCfg config.MetadataConfig
	splitter    *chunking.Splitter
	backend     llm.Backend
	store       vectorstore.VectorStore
	cache       *embedcache.Cache
	loaders     map[string]loader.DocumentLoader
	bus         *events.Bus
}

// New builds a Coordinator. loaders maps a lowercase file extension
// (including the leading dot) to the DocumentLoader responsible for it.
func New(
	cfg config.IngestionConfig,
	chunkCfg config.ChunkingConfig,
	metadataCfg config.MetadataConfig,
	splitter *chunking.Splitter,
	backend llm.Backend,
	store vectorstore.VectorStore,
	cache *embedcache.Cache,
	loaders map[string]loader.DocumentLoader,
	bus *events.Bus,
) *Coordinator {
	if bus == nil {
		bus = &events.Bus{}
	}
	if cache == nil {
		cache = embedcache.New()
	}
	return &Coordinator{
		cfg: cfg, chunkCfg: chunkCfg, metadataCfg: metadataCfg, splitter: splitter,
		backend: backend, store: store, cache: cache,
		loaders: loaders, bus: bus,
	}
}

// Summary aggregates the outcome of a directory ingestion run.
type Summary struct {
	Processed int
	Succeeded int
	Failed    int
	Errors    error // multierr-joined, nil if Failed == 0
}

// IngestDirectory walks dir non-recursively, skipping hidden and temp
// files, ingesting every file with a registered loader.
func (c *Coordinator) IngestDirectory(ctx context.Context, dir string) (Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Summary{}, fmt.Errorf("ingestion: reading directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if skipEntry(e.Name()) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if _, ok := c.loaders[ext]; !ok {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}

	var summary Summary
	var errs error
	for _, p := range paths {
		summary.Processed++
		err := c.IngestFile(ctx, p)
		if err != nil {
			if err == ragerr.ErrCancelled {
				break
			}
			summary.Failed++
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", p, err))
			c.bus.EmitError(err)
			continue
		}
		summary.Succeeded++
	}
	summary.Errors = errs

	c.bus.EmitIngestSummary(events.IngestSummary{
		Processed: summary.Processed,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Errors:    multierr.Errors(errs),
	})
	return summary, nil
}

func skipEntry(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return true
	}
	for _, suf := range hiddenOrTempSuffixes {
		if strings.HasSuffix(strings.ToLower(name), suf) {
			return true
		}
	}
	return false
}

// IngestFile runs the full pipeline for a single file: fingerprint, load,
// chunk, embed, persist.
func (c *Coordinator) IngestFile(ctx context.Context, path string) error {
	c.bus.EmitIngestStart(path)
	defer c.bus.EmitIngestEnd(path)

	if err := ctx.Err(); err != nil {
		return ragerr.ErrCancelled
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("ingestion: stat %s: %w", path, err)
	}

	md5sum, sha256sum, err := hashFile(path)
	if err != nil {
		return fmt.Errorf("ingestion: hashing %s: %w", path, err)
	}

	lastModified := info.ModTime().Unix()
	exists, err := vectorstore.FileExists(ctx, c.store, sha256sum, info.Size(), lastModified)
	if err != nil {
		return ragerr.NewStoreError("FileExists", err)
	}

	if exists && c.cfg.Mode == config.IngestionSkip {
		c.bus.EmitIngestSkipped(events.IngestSkippedEvent{Path: path})
		return nil
	}

	ld, ok := c.loaders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return fmt.Errorf("ingestion: no loader registered for %s", path)
	}
	loaded, err := ld.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("ingestion: loading %s: %w", path, err)
	}

	c.bus.EmitChunkingStart(path)
	chunks, err := c.splitter.Split(ctx, loaded.Text)
	if err != nil {
		return fmt.Errorf("ingestion: chunking %s: %w", path, err)
	}

	docs, err := c.embedChunks(ctx, chunks, loaded, path, md5sum, sha256sum, info, lastModified)
	if err != nil {
		return err
	}

	vectorstore.EnsureIndexes(ctx, c.store)

	exists, err = vectorstore.FileExists(ctx, c.store, sha256sum, info.Size(), lastModified)
	if err != nil {
		return ragerr.NewStoreError("FileExists", err)
	}
	if exists && c.cfg.Mode == config.IngestionSkip {
		c.bus.EmitIngestSkipped(events.IngestSkippedEvent{Path: path})
		return nil
	}

	if c.cfg.Mode == config.IngestionReplace {
		if exists {
			if err := vectorstore.Delete(ctx, c.store, vectorstore.DeleteOptions{
				Filter: vectorstore.Filter{"fileSHA256": sha256sum},
			}); err != nil {
				return ragerr.NewStoreError("DeleteDocuments", err)
			}
		}
		return batch.WithRetry(ctx, batch.DefaultRetryPolicy, nil, func(ctx context.Context, attempt int) error {
			if err := vectorstore.Upsert(ctx, c.store, docs); err != nil {
				return ragerr.NewStoreError("UpsertDocuments", err)
			}
			return nil
		})
	}

	// append/skip: plain add, never a delete-then-upsert.
	return batch.WithRetry(ctx, batch.DefaultRetryPolicy, nil, func(ctx context.Context, attempt int) error {
		if err := c.store.AddDocuments(ctx, docs); err != nil {
			return ragerr.NewStoreError("AddDocuments", err)
		}
		return nil
	})
}

func (c *Coordinator) embedChunks(
	ctx context.Context,
	chunks []document.Chunk,
	loaded loader.Loaded,
	path, md5sum, sha256sum string,
	info os.FileInfo,
	lastModified int64,
) ([]*document.Document, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	limit := c.cfg.ConcurrencyLimit
	if !c.cfg.RateLimitEnabled || limit <= 0 {
		limit = len(chunks)
	}
	batches := batch.Split(chunks, limit)

	docTitle := filepath.Base(path)
	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	c.bus.EmitEmbeddingStart(len(chunks))

	docs := make([]*document.Document, 0, len(chunks))
	expectedDim := -1
	for _, group := range batches {
		vectors, err := c.embedBatch(ctx, group)
		if err != nil {
			return nil, err
		}

		for i, ch := range group {
			vec := document.Normalize(vectors[i])
			if expectedDim == -1 {
				expectedDim = len(vec)
			} else if len(vec) != expectedDim {
				return nil, ragerr.NewDimensionMismatch(expectedDim, len(vec))
			}

			md := chunking.ComputeMetadata(loaded.Text, loaded.Pages, ch, fileType, docTitle)
			if c.metadataCfg.Enrichment {
				md.Enrichment = c.enrichChunk(ctx, ch.Content)
			}

			docs = append(docs, &document.Document{
				ID:        document.NewChunkID(sha256sum, ch.ChunkIndex),
				Content:   ch.Content,
				Embedding: vec,
				Metadata: document.Metadata{
					Source:       path,
					AbsolutePath: path,
					FileMD5:      md5sum,
					FileSHA256:   sha256sum,
					FileSize:     info.Size(),
					LastModified: lastModified,
					Chunk:        md,
				},
			})
		}
	}
	return docs, nil
}

func (c *Coordinator) embedBatch(ctx context.Context, group []document.Chunk) ([][]float64, error) {
	vectors := make([][]float64, len(group))
	toCompute := make([]int, 0, len(group))
	texts := make([]string, 0, len(group))

	for i, ch := range group {
		if v, ok := c.cache.Get(ch.SHA256); ok {
			vectors[i] = v
			continue
		}
		toCompute = append(toCompute, i)
		texts = append(texts, ch.Content)
	}

	if len(texts) == 0 {
		return vectors, nil
	}

	var computed [][]float64
	err := batch.WithRetry(ctx, batch.DefaultRetryPolicy, nil, func(ctx context.Context, attempt int) error {
		v, err := c.backend.EmbedDocuments(ctx, texts)
		if err != nil {
			return ragerr.NewProviderError(ragerr.IsRetryable(err), 0, err)
		}
		if len(v) != len(texts) {
			return fmt.Errorf("ingestion: embedding backend returned %d vectors for %d inputs", len(v), len(texts))
		}
		computed = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	for j, idx := range toCompute {
		vectors[idx] = computed[j]
		c.cache.Set(group[idx].SHA256, computed[j])
	}
	return vectors, nil
}

func hashFile(path string) (md5Hex, sha256Hex string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	md5h := md5.New()
	sha256h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(md5h, sha256h), f); err != nil {
		return "", "", err
	}
	return hex.EncodeToString(md5h.Sum(nil)), hex.EncodeToString(sha256h.Sum(nil)), nil
}
