package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Shubham-80331/Study-Agent/internal/artifact"
	"github.com/Shubham-80331/Study-Agent/internal/domain"
	"github.com/Shubham-80331/Study-Agent/internal/llm"
)

// DefaultFlashcardsPerChunk is how many cards are requested per chunk.
const DefaultFlashcardsPerChunk = 5

// FlashcardAgent generates question/answer cards from chunks.
type FlashcardAgent struct {
	llm         Completer
	outPath     string
	PerChunk    int
	Temperature float32
	log         *slog.Logger
}

// NewFlashcardAgent creates an agent that writes its cards to outPath.
func NewFlashcardAgent(c Completer, outPath string, log *slog.Logger) *FlashcardAgent {
	return &FlashcardAgent{
		llm:         c,
		outPath:     outPath,
		PerChunk:    DefaultFlashcardsPerChunk,
		Temperature: 0.7,
		log:         loggerOr(log),
	}
}

// Generate requests cards for every chunk and rewrites the flashcard
// artifact with the flattened result. Chunks whose response cannot be used
// are skipped. Without a generative service the artifact is emptied so
// cards from earlier material are not shown.
func (a *FlashcardAgent) Generate(ctx context.Context, chunks []string) ([]domain.Flashcard, error) {
	if a.llm == nil {
		if err := artifact.WriteJSON(a.outPath, []domain.Flashcard{}); err != nil {
			return nil, fmt.Errorf("failed to clear flashcards: %w", err)
		}
		return nil, llm.ErrUnavailable
	}
	a.log.Info("Generating flashcards", "chunks", len(chunks))

	cards := []domain.Flashcard{}
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prompt, err := render(flashcardPrompt, struct {
			Count int
			Text  string
		}{a.PerChunk, chunk})
		if err != nil {
			return nil, fmt.Errorf("failed to render flashcard prompt: %w", err)
		}

		for _, card := range generate[domain.Flashcard](ctx, a.llm, prompt, a.Temperature, "flashcards", a.log, i) {
			if err := domain.Validate(card); err != nil {
				a.log.Warn("Dropping incomplete flashcard", "chunk", i, "error", err)
				continue
			}
			cards = append(cards, card)
		}
	}

	if err := artifact.WriteJSON(a.outPath, cards); err != nil {
		return nil, fmt.Errorf("failed to save flashcards: %w", err)
	}
	a.log.Info("Generated flashcards", "count", len(cards))
	return cards, nil
}
