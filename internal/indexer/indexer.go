package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/sevigo/goframe/schema"
	"golang.org/x/sync/errgroup"

	"github.com/Abhijit1102/githawk/internal/config"
	"github.com/Abhijit1102/githawk/internal/core"
	"github.com/Abhijit1102/githawk/internal/storage"
)

// Indexer embeds repository file contents and upserts them into the
// repository's vector collection.
type Indexer struct {
	vectorStore   storage.VectorStore
	cfg           config.IndexConfig
	embedderModel string
	logger        *slog.Logger
}

// New creates an Indexer writing through the given vector store.
func New(vectorStore storage.VectorStore, cfg config.IndexConfig, embedderModel string, logger *slog.Logger) *Indexer {
	return &Indexer{
		vectorStore:   vectorStore,
		cfg:           cfg,
		embedderModel: embedderModel,
		logger:        logger,
	}
}

// IndexRepository chunks and embeds every file, upserting each chunk under
// its deterministic identity. It returns the number of files indexed.
//
// An empty file list returns 0 without touching the embedding service. A
// failure embedding one file skips that file and continues; only when every
// file fails does the whole operation fail, making the step eligible for
// retry.
func (ix *Indexer) IndexRepository(ctx context.Context, repoFullName string, files []core.RepoFile) (int, error) {
	if len(files) == 0 {
		ix.logger.Info("nothing to index", "repo", repoFullName)
		return 0, nil
	}

	collection := storage.CollectionName(repoFullName, ix.embedderModel)

	var indexed, failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	if ix.cfg.MaxParallel > 1 {
		g.SetLimit(ix.cfg.MaxParallel)
	} else {
		g.SetLimit(1)
	}

	for _, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			docs := ix.buildDocuments(repoFullName, file)
			if len(docs) == 0 {
				return nil
			}
			if err := ix.vectorStore.AddDocuments(ctx, collection, docs); err != nil {
				ix.logger.Warn("failed to index file, skipping",
					"repo", repoFullName, "path", file.Path, "chunks", len(docs), "error", err)
				failed.Add(1)
				return nil
			}
			indexed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if indexed.Load() == 0 && failed.Load() > 0 {
		return 0, fmt.Errorf("indexing %s: all %d files failed to embed", repoFullName, failed.Load())
	}

	ix.logger.Info("repository indexed",
		"repo", repoFullName,
		"collection", collection,
		"indexed_files", indexed.Load(),
		"failed_files", failed.Load(),
	)
	return int(indexed.Load()), nil
}

// buildDocuments converts one file into vector-store documents with stable
// identities and retrieval metadata.
func (ix *Indexer) buildDocuments(repoFullName string, file core.RepoFile) []schema.Document {
	// Invalid UTF-8 breaks the vector store's gRPC transport.
	content := strings.ToValidUTF8(file.Content, "")
	chunks := SplitText(content, ix.cfg.ChunkSize, ix.cfg.ChunkOverlap)

	docs := make([]schema.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, schema.NewDocument(chunk, map[string]any{
			"id":                   ChunkID(repoFullName, file.Path, i),
			"repository_full_name": repoFullName,
			"file_path":            file.Path,
			"chunk_index":          i,
		}))
	}
	return docs
}
