// Package llm provides the language-model surface of the pipeline: provider
// construction, prompt management, retrieval-augmented context assembly and
// review generation.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sevigo/goframe/embeddings"
	"github.com/sevigo/goframe/llms"
	"github.com/sevigo/goframe/llms/gemini"
	"github.com/sevigo/goframe/llms/ollama"

	"github.com/Abhijit1102/githawk/internal/config"
)

// Model is the minimal contract the review generator needs from a language
// model: complete a prompt into text under the caller's context.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewModel constructs the configured generator model.
func NewModel(ctx context.Context, cfg config.AIConfig, logger *slog.Logger) (Model, error) {
	switch cfg.Provider {
	case "ollama":
		m, err := ollama.New(
			ollama.WithServerURL(cfg.OllamaHost),
			ollama.WithModel(cfg.GeneratorModel),
			ollama.WithHTTPClient(newOllamaHTTPClient()),
			ollama.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama model: %w", err)
		}
		return &goframeModel{model: m}, nil

	case "gemini":
		m, err := gemini.New(ctx,
			gemini.WithModel(cfg.GeneratorModel),
			gemini.WithAPIKey(cfg.GeminiAPIKey),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini model: %w", err)
		}
		return &goframeModel{model: m}, nil

	case "anthropic":
		return &anthropicModel{
			client: anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
			model:  cfg.GeneratorModel,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// NewEmbedder constructs the embedding service used for indexing and
// retrieval. Embeddings always run through Ollama regardless of the
// generator provider.
func NewEmbedder(cfg config.AIConfig, logger *slog.Logger) (embeddings.Embedder, error) {
	embedderLLM, err := ollama.New(
		ollama.WithServerURL(cfg.OllamaHost),
		ollama.WithModel(cfg.EmbedderModel),
		ollama.WithHTTPClient(newOllamaHTTPClient()),
		ollama.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder LLM: %w", err)
	}
	return embeddings.NewEmbedder(embedderLLM)
}

// goframeModel adapts a goframe llms.Model to the Model contract.
type goframeModel struct {
	model llms.Model
}

func (g *goframeModel) Complete(ctx context.Context, prompt string) (string, error) {
	return g.model.Call(ctx, prompt)
}

// anthropicModel calls the Anthropic Messages API directly.
type anthropicModel struct {
	client *anthropic.Client
	model  string
}

func (a *anthropicModel) Complete(ctx context.Context, prompt string) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(a.model)),
		MaxTokens: anthropic.F(int64(4096)),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		}),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	for _, block := range message.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in model response")
}

// newOllamaHTTPClient creates an HTTP client with generous timeouts; local
// models can take a while to respond.
func newOllamaHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   5 * time.Minute,
	}
}
