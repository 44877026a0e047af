package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Abhijit1102/githawk/internal/config"
	"github.com/Abhijit1102/githawk/internal/core"
	"github.com/Abhijit1102/githawk/internal/storage"
)

// maxQueryChars bounds the similarity-search query. Embedding models have
// their own input limits; the head of the diff carries the file headers and
// most of the signal.
const maxQueryChars = 8000

// ContextBuilder assembles retrieval-augmented context for a review by
// querying the repository's vector collection with the diff text.
type ContextBuilder struct {
	vectorStore   storage.VectorStore
	cfg           config.ContextConfig
	embedderModel string
	logger        *slog.Logger
}

// NewContextBuilder creates a ContextBuilder over the given vector store.
func NewContextBuilder(vectorStore storage.VectorStore, cfg config.ContextConfig, embedderModel string, logger *slog.Logger) *ContextBuilder {
	return &ContextBuilder{
		vectorStore:   vectorStore,
		cfg:           cfg,
		embedderModel: embedderModel,
		logger:        logger,
	}
}

// BuildContext returns the top-K chunks most similar to the diff, truncated
// to the configured character budget. A repository with no indexed vectors
// (or a failing search) yields an empty context; review generation degrades
// to diff-only input rather than failing.
func (b *ContextBuilder) BuildContext(ctx context.Context, repoFullName, diffText string) []core.ContextChunk {
	if strings.TrimSpace(diffText) == "" {
		return nil
	}

	query := diffText
	if len(query) > maxQueryChars {
		query = query[:maxQueryChars]
	}

	collection := storage.CollectionName(repoFullName, b.embedderModel)
	docs, err := b.vectorStore.SimilaritySearch(ctx, collection, query, b.cfg.TopK)
	if err != nil {
		b.logger.Warn("similarity search failed, continuing with empty context",
			"repo", repoFullName, "collection", collection, "error", err)
		return nil
	}
	if len(docs) == 0 {
		b.logger.Info("no indexed context for repository", "repo", repoFullName)
		return nil
	}

	var chunks []core.ContextChunk
	budget := b.cfg.MaxChars
	for _, doc := range docs {
		if budget <= 0 {
			break
		}
		content := doc.PageContent
		if len(content) > budget {
			content = content[:budget]
		}
		budget -= len(content)

		filePath, _ := doc.Metadata["file_path"].(string)
		score, _ := doc.Metadata["score"].(float64)
		chunks = append(chunks, core.ContextChunk{
			FilePath: filePath,
			Content:  content,
			Score:    score,
		})
	}

	b.logger.Info("review context assembled",
		"repo", repoFullName,
		"chunks", len(chunks),
		"chars", b.cfg.MaxChars-budget,
	)
	return chunks
}

// FormatChunks renders retrieved chunks into the prompt's context section.
func FormatChunks(chunks []core.ContextChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, chunk := range chunks {
		if chunk.FilePath != "" {
			fmt.Fprintf(&sb, "--- %s ---\n", chunk.FilePath)
		}
		sb.WriteString(chunk.Content)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
