package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Shubham-80331/Study-Agent/internal/domain"
	"github.com/Shubham-80331/Study-Agent/internal/llm"
)

const (
	DefaultQuestionsPerChunk  = 3
	DefaultOptionsPerQuestion = 4
)

// QuizAgent generates multiple-choice questions, stores them against their
// chunk's topic and grades submitted answers.
type QuizAgent struct {
	llm         Completer
	store       QuizStore
	PerChunk    int
	Options     int
	Temperature float32
	log         *slog.Logger
}

// NewQuizAgent creates a QuizAgent. A nil Completer still allows grading.
func NewQuizAgent(c Completer, store QuizStore, log *slog.Logger) *QuizAgent {
	return &QuizAgent{
		llm:         c,
		store:       store,
		PerChunk:    DefaultQuestionsPerChunk,
		Options:     DefaultOptionsPerQuestion,
		Temperature: 0.7,
		log:         loggerOr(log),
	}
}

// QuizStats summarises a generation run.
type QuizStats struct {
	Generated     int // valid questions returned by the model
	Stored        int // questions new to the store
	TopicsCreated int
}

type generatedQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// GenerateAndStore requests questions for every chunk and stores each
// chunk's valid questions in one atomic upsert. Questions that fail
// validation, or whose answer is not among their options, are dropped.
func (a *QuizAgent) GenerateAndStore(ctx context.Context, chunks []string) (QuizStats, error) {
	var stats QuizStats
	if a.llm == nil {
		return stats, llm.ErrUnavailable
	}
	a.log.Info("Generating quizzes", "chunks", len(chunks))

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		prompt, err := render(quizPrompt, struct {
			Count, Options int
			Text           string
		}{a.PerChunk, a.Options, chunk})
		if err != nil {
			return stats, fmt.Errorf("failed to render quiz prompt: %w", err)
		}

		var questions []domain.QuizQuestion
		for _, g := range generate[generatedQuestion](ctx, a.llm, prompt, a.Temperature, "questions", a.log, i) {
			q, err := domain.NewQuizQuestion(g.Question, g.Options, g.Answer)
			if err != nil {
				a.log.Warn("Dropping invalid question", "chunk", i, "error", err)
				continue
			}
			if !q.HasOption(q.Answer) {
				a.log.Warn("Dropping question whose answer is not an option", "chunk", i, "question", q.Question)
				continue
			}
			questions = append(questions, q)
		}
		if len(questions) == 0 {
			continue
		}

		res, err := a.store.UpsertTopicAndQuestions(ctx, chunk, questions)
		if err != nil {
			return stats, fmt.Errorf("failed to store quizzes for chunk %d: %w", i, err)
		}
		stats.Generated += len(questions)
		stats.Stored += res.QuestionsInserted
		if res.TopicCreated {
			stats.TopicsCreated++
		}
	}

	a.log.Info("Generated and stored quizzes", "generated", stats.Generated, "stored", stats.Stored, "new_topics", stats.TopicsCreated)
	return stats, nil
}

// Result is the outcome of one graded question.
type Result struct {
	QuestionID int64  `json:"question_id"`
	Given      string `json:"given"`
	Expected   string `json:"expected"`
	Correct    bool   `json:"correct"`
}

// Score is the outcome of a graded quiz.
type Score struct {
	Correct int      `json:"correct"`
	Total   int      `json:"total"`
	Results []Result `json:"results"`
}

// Grade marks every question in quizzes against answers, keyed by question
// id, and records each result. A missing or blank answer is incorrect.
func (a *QuizAgent) Grade(ctx context.Context, quizzes []domain.QuizQuestion, answers map[int64]string) (Score, error) {
	score := Score{Total: len(quizzes)}
	for _, q := range quizzes {
		given := answers[q.ID]
		correct := given != "" && given == q.Answer
		if err := a.store.RecordAnswer(ctx, q.ID, correct); err != nil {
			return score, fmt.Errorf("failed to record answer for question %d: %w", q.ID, err)
		}
		if correct {
			score.Correct++
		}
		score.Results = append(score.Results, Result{QuestionID: q.ID, Given: given, Expected: q.Answer, Correct: correct})
	}
	return score, nil
}
