package storage

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sevigo/goframe/embeddings"
	"github.com/sevigo/goframe/schema"
	"github.com/sevigo/goframe/vectorstores"
	"github.com/sevigo/goframe/vectorstores/qdrant"
)

// VectorStore defines the contract for interacting with the vector database.
// Each repository gets its own collection (namespace), so retrieval never
// crosses repository boundaries.
type VectorStore interface {
	// AddDocuments embeds and upserts documents into a collection. Documents
	// carrying a deterministic "id" metadata key overwrite prior points.
	AddDocuments(ctx context.Context, collectionName string, docs []schema.Document) error

	// SimilaritySearch finds the most relevant documents for a query.
	SimilaritySearch(ctx context.Context, collectionName, query string, numDocs int) ([]schema.Document, error)

	// DeleteCollection removes a collection and all its data.
	DeleteCollection(ctx context.Context, collectionName string) error
}

// qdrantVectorStore implements VectorStore using Qdrant as the backend.
type qdrantVectorStore struct {
	qdrantHost string
	embedder   embeddings.Embedder
	logger     *slog.Logger
}

// NewQdrantVectorStore creates a new Qdrant-backed vector store.
func NewQdrantVectorStore(qdrantHost string, embedder embeddings.Embedder, logger *slog.Logger) VectorStore {
	return &qdrantVectorStore{
		qdrantHost: qdrantHost,
		embedder:   embedder,
		logger:     logger,
	}
}

func (q *qdrantVectorStore) getStoreForCollection(collectionName string) (vectorstores.VectorStore, error) {
	if strings.TrimSpace(collectionName) == "" {
		return nil, fmt.Errorf("collection name cannot be empty")
	}
	return qdrant.New(
		qdrant.WithHost(q.qdrantHost),
		qdrant.WithEmbedder(q.embedder),
		qdrant.WithCollectionName(collectionName),
		qdrant.WithLogger(q.logger),
	)
}

func (q *qdrantVectorStore) AddDocuments(ctx context.Context, collectionName string, docs []schema.Document) error {
	store, err := q.getStoreForCollection(collectionName)
	if err != nil {
		return fmt.Errorf("failed to get qdrant store for collection %s: %w", collectionName, err)
	}

	if _, err := store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("failed to add documents to qdrant collection %s: %w", collectionName, err)
	}
	return nil
}

func (q *qdrantVectorStore) SimilaritySearch(ctx context.Context, collectionName, query string, numDocs int) ([]schema.Document, error) {
	store, err := q.getStoreForCollection(collectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get qdrant store for collection %s: %w", collectionName, err)
	}

	return store.SimilaritySearch(ctx, query, numDocs)
}

func (q *qdrantVectorStore) DeleteCollection(ctx context.Context, collectionName string) error {
	store, err := q.getStoreForCollection(collectionName)
	if err != nil {
		return fmt.Errorf("failed to get qdrant store for collection %s: %w", collectionName, err)
	}

	return store.DeleteCollection(ctx, collectionName)
}

var collectionNameSanitizer = regexp.MustCompile("[^a-z0-9_-]+")

// CollectionName builds a valid Qdrant collection name for a repository.
// The embedder model is part of the name so switching embedders never mixes
// vector spaces.
func CollectionName(repoFullName, embedderModel string) string {
	safeRepo := strings.ToLower(strings.ReplaceAll(repoFullName, "/", "-"))
	safeRepo = collectionNameSanitizer.ReplaceAllString(safeRepo, "")

	safeEmbedder := strings.ToLower(strings.Split(embedderModel, ":")[0])
	safeEmbedder = collectionNameSanitizer.ReplaceAllString(safeEmbedder, "")

	name := fmt.Sprintf("repo-%s-%s", safeRepo, safeEmbedder)
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}
