package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Shubham-80331/Study-Agent/internal/llm"
	"github.com/Shubham-80331/Study-Agent/internal/retrieval"
)

// DefaultAnswerTemperature keeps answers close to the retrieved notes.
const DefaultAnswerTemperature = 0.1

// DoubtAgent answers free-text questions from the indexed study material.
type DoubtAgent struct {
	llm         Completer
	embedder    retrieval.Embedder
	TopK        int
	Temperature float32
	log         *slog.Logger

	mu  sync.RWMutex
	idx *retrieval.Index
}

// NewDoubtAgent creates a DoubtAgent over idx, which may be nil until
// material has been processed.
func NewDoubtAgent(c Completer, embedder retrieval.Embedder, idx *retrieval.Index, log *slog.Logger) *DoubtAgent {
	return &DoubtAgent{
		llm:         c,
		embedder:    embedder,
		TopK:        retrieval.DefaultTopK,
		Temperature: DefaultAnswerTemperature,
		log:         loggerOr(log),
		idx:         idx,
	}
}

// SetIndex swaps in a newly built index.
func (a *DoubtAgent) SetIndex(idx *retrieval.Index) {
	a.mu.Lock()
	a.idx = idx
	a.mu.Unlock()
}

// HasIndex reports whether material is available to answer from.
func (a *DoubtAgent) HasIndex() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.idx != nil
}

// Ask answers query from the top-k nearest chunks. Without an index it
// returns NoMaterialMessage, and without a generative service
// UnavailableMessage, in both cases without a lookup.
func (a *DoubtAgent) Ask(ctx context.Context, query string) (string, error) {
	a.mu.RLock()
	idx := a.idx
	a.mu.RUnlock()

	if idx == nil {
		return NoMaterialMessage, nil
	}
	if a.llm == nil || a.embedder == nil {
		return UnavailableMessage, nil
	}

	a.log.Info("Answering question", "query", query)
	chunks, err := idx.Query(ctx, a.embedder, query, a.TopK)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve context: %w", err)
	}

	prompt, err := render(doubtPrompt, struct {
		Refusal, Context, Query string
	}{Refusal, strings.Join(chunks, "\n\n"), query})
	if err != nil {
		return "", fmt.Errorf("failed to render question prompt: %w", err)
	}

	answer, err := a.llm.Complete(ctx, llm.Request{Prompt: prompt, Temperature: a.Temperature})
	if err != nil {
		return "", fmt.Errorf("failed to answer question: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
