// Package agent turns chunks into study material with a generative service
// and ranks stored topics into a revision plan.
package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Shubham-80331/Study-Agent/internal/domain"
	"github.com/Shubham-80331/Study-Agent/internal/ingest"
	"github.com/Shubham-80331/Study-Agent/internal/llm"
	"github.com/Shubham-80331/Study-Agent/internal/retrieval"
	"github.com/Shubham-80331/Study-Agent/internal/storage"
)

// User-facing messages.
const (
	NoMaterialMessage     = "The study material has not been processed yet. Please upload a PDF first."
	UnavailableMessage    = "The language model is not configured. Please check your API key."
	OCRUnavailableMessage = "Text recognition is not configured, so scanned pages could not be read. Please enable OCR and try again."
	NoContentMessage      = "No usable text could be extracted from that document. Please try another file."
	ErrorMessage          = "Sorry, I encountered an error trying to answer your question."
	EmptyPlanMessage      = "Start by taking some quizzes!"
)

// Completer submits a prompt to a generative service. A nil Completer means
// the service is unavailable.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// QuizStore persists generated questions and answer results.
type QuizStore interface {
	UpsertTopicAndQuestions(ctx context.Context, chunk string, questions []domain.QuizQuestion) (storage.UpsertResult, error)
	RecordAnswer(ctx context.Context, questionID int64, correct bool) error
}

// RevisionSource ranks stored topics for revision.
type RevisionSource interface {
	TopicsForRevision(ctx context.Context, limit int) ([]domain.RevisionTopic, error)
}

// UserMessage maps an error to guidance text for the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, retrieval.ErrNoIndex):
		return NoMaterialMessage
	case errors.Is(err, llm.ErrUnavailable):
		return UnavailableMessage
	case errors.Is(err, ingest.ErrOCRUnavailable):
		return OCRUnavailableMessage
	case errors.Is(err, ingest.ErrNoContent):
		return NoContentMessage
	default:
		return ErrorMessage
	}
}

// generate runs one prompt in JSON mode and decodes the list held under key.
// A failed call or an unparseable response is logged and yields no items.
func generate[T any](ctx context.Context, c Completer, prompt string, temperature float32, key string, log *slog.Logger, chunk int) []T {
	raw, err := c.Complete(ctx, llm.Request{Prompt: prompt, JSON: true, Temperature: temperature})
	if err != nil {
		log.Warn("Generation failed, skipping chunk", "chunk", chunk, "error", err)
		return nil
	}
	items, err := llm.DecodeList[T](raw, key)
	if err != nil {
		log.Warn("Unparseable response, skipping chunk", "chunk", chunk, "error", err)
		return nil
	}
	return items
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
