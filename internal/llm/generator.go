package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Abhijit1102/githawk/internal/core"
)

// DiffTruncationMarker is appended when a diff exceeds the size limit, so
// the model (and anyone reading the prompt) can see content was cut rather
// than silently dropped.
const DiffTruncationMarker = "\n\n[... diff truncated: pull request exceeds the maximum review size ...]"

// ReviewInput is everything the generator needs to produce a review.
type ReviewInput struct {
	Title              string
	Description        string
	Diff               string
	ContextChunks      []core.ContextChunk
	CustomInstructions []string
}

// Generator turns a diff plus optional retrieved context into review text.
type Generator struct {
	model        Model
	promptMgr    *PromptManager
	provider     ModelProvider
	maxDiffChars int
	timeout      time.Duration
	logger       *slog.Logger
}

// NewGenerator creates a review generator bound to a model.
func NewGenerator(model Model, promptMgr *PromptManager, provider string, maxDiffChars int, timeout time.Duration, logger *slog.Logger) *Generator {
	return &Generator{
		model:        model,
		promptMgr:    promptMgr,
		provider:     ModelProvider(provider),
		maxDiffChars: maxDiffChars,
		timeout:      timeout,
		logger:       logger,
	}
}

// GenerateReview assembles the review prompt and invokes the model. Empty
// model output is an error; the orchestrator bounds how often it is retried.
// Context chunks are optional; a diff-only input still produces a review.
func (g *Generator) GenerateReview(ctx context.Context, in ReviewInput) (string, error) {
	diff := in.Diff
	if strings.TrimSpace(diff) == "" {
		return "", fmt.Errorf("cannot review an empty diff")
	}
	if g.maxDiffChars > 0 && len(diff) > g.maxDiffChars {
		g.logger.Info("truncating oversized diff", "size", len(diff), "limit", g.maxDiffChars)
		diff = diff[:g.maxDiffChars] + DiffTruncationMarker
	}

	prompt, err := g.promptMgr.Render(CodeReviewPrompt, g.provider, map[string]string{
		"Title":              in.Title,
		"Description":        in.Description,
		"Diff":               diff,
		"Context":            FormatChunks(in.ContextChunks),
		"CustomInstructions": strings.Join(in.CustomInstructions, "\n"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render review prompt: %w", err)
	}

	review, err := g.completeWithTimeout(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}
	if strings.TrimSpace(review) == "" {
		return "", fmt.Errorf("model returned an empty review")
	}
	return review, nil
}

// completeWithTimeout wraps model invocation with a hard deadline so a
// hanging client cannot stall the job past its step timeout.
func (g *Generator) completeWithTimeout(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		resp string
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		resp, err := g.model.Complete(ctx, prompt)
		select {
		case resultCh <- result{resp, err}:
		case <-ctx.Done():
		}
	}()

	select {
	case res := <-resultCh:
		return res.resp, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
