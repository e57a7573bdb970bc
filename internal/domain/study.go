package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the `validate` struct tags of a record.
func Validate(v any) error {
	return validate.Struct(v)
}

// Topic is a deduplicated chunk of source text and its study metadata.
type Topic struct {
	ID            int64
	ContentHash   string `validate:"required"`
	Content       string `validate:"required"`
	LastRevised   *time.Time
	RevisionScore float64
	RevisionCount int
}

// QuizQuestion is one multiple-choice question derived from a Topic.
type QuizQuestion struct {
	ID             int64    `json:"id,omitempty"`
	TopicID        int64    `json:"topic_id,omitempty"`
	Question       string   `json:"question" validate:"required"`
	Options        []string `json:"options" validate:"min=2,dive,required"`
	Answer         string   `json:"answer" validate:"required"`
	CorrectCount   int      `json:"correct_count,omitempty"`
	IncorrectCount int      `json:"incorrect_count,omitempty"`
}

// NewQuizQuestion trims and validates a generated question before it reaches
// the store.
func NewQuizQuestion(question string, options []string, answer string) (QuizQuestion, error) {
	q := QuizQuestion{
		Question: strings.TrimSpace(question),
		Answer:   strings.TrimSpace(answer),
	}
	for _, o := range options {
		q.Options = append(q.Options, strings.TrimSpace(o))
	}
	if err := Validate(q); err != nil {
		return QuizQuestion{}, fmt.Errorf("invalid quiz question %q: %w", question, err)
	}
	return q, nil
}

// HasOption reports whether the answer is one of the offered options.
func (q QuizQuestion) HasOption(answer string) bool {
	for _, o := range q.Options {
		if o == answer {
			return true
		}
	}
	return false
}

// Flashcard is a question/answer pair. Flashcards are regenerated wholesale
// on every pipeline run and have no identity across runs.
type Flashcard struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}

// RevisionTopic is a Topic together with the performance totals of its
// questions.
type RevisionTopic struct {
	Topic
	TotalIncorrect int
	TotalCorrect   int
}

// Priority is a display hint derived from a topic's rank.
type Priority string

const (
	High   Priority = "High"
	Medium Priority = "Medium"
	Low    Priority = "Low"
)

// PriorityForRank maps a zero-based rank to its tier.
func PriorityForRank(i int) Priority {
	switch {
	case i < 3:
		return High
	case i < 7:
		return Medium
	default:
		return Low
	}
}

// PlanEntry is one row of a revision plan. It is derived from the store and
// never authoritative.
type PlanEntry struct {
	TopicID        int64      `json:"topic_id"`
	Preview        string     `json:"topic_preview"`
	Priority       Priority   `json:"priority"`
	TotalIncorrect int        `json:"total_incorrect"`
	TotalCorrect   int        `json:"total_correct"`
	LastRevised    *time.Time `json:"last_revised"`
	NextReview     *time.Time `json:"next_review,omitempty"`
}
