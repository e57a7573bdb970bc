package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Shubham-80331/Study-Agent/internal/artifact"
	"github.com/Shubham-80331/Study-Agent/internal/domain"
	"github.com/Shubham-80331/Study-Agent/internal/fsrs"
	"github.com/Shubham-80331/Study-Agent/internal/storage"
)

const previewLength = 100

// Planner turns the store's revision ranking into a plan.
type Planner struct {
	store   RevisionSource
	outPath string
	Limit   int
	log     *slog.Logger
}

// NewPlanner creates a Planner that caches its plan at outPath.
func NewPlanner(store RevisionSource, outPath string, log *slog.Logger) *Planner {
	return &Planner{store: store, outPath: outPath, Limit: storage.DefaultRevisionLimit, log: loggerOr(log)}
}

// BuildPlan ranks topics, weakest first, and writes the plan artifact.
// With no topics stored the plan is a single entry asking for quizzes.
func (p *Planner) BuildPlan(ctx context.Context) ([]domain.PlanEntry, error) {
	topics, err := p.store.TopicsForRevision(ctx, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank topics: %w", err)
	}

	var plan []domain.PlanEntry
	if len(topics) == 0 {
		p.log.Info("No quiz data found, generating starter plan")
		plan = []domain.PlanEntry{{TopicID: 0, Preview: EmptyPlanMessage, Priority: domain.High}}
	} else {
		plan = make([]domain.PlanEntry, 0, len(topics))
		for i, t := range topics {
			entry := domain.PlanEntry{
				TopicID:        t.ID,
				Preview:        preview(t.Content),
				Priority:       domain.PriorityForRank(i),
				TotalIncorrect: t.TotalIncorrect,
				TotalCorrect:   t.TotalCorrect,
				LastRevised:    t.LastRevised,
			}
			if t.LastRevised != nil {
				due := fsrs.Memory{Stability: t.RevisionScore, LastReview: *t.LastRevised}.Due()
				entry.NextReview = &due
			}
			plan = append(plan, entry)
		}
	}

	if err := artifact.WriteJSON(p.outPath, plan); err != nil {
		return nil, fmt.Errorf("failed to save plan: %w", err)
	}
	p.log.Info("Revision plan created", "entries", len(plan))
	return plan, nil
}

func preview(content string) string {
	r := []rune(content)
	if len(r) > previewLength {
		r = r[:previewLength]
	}
	return string(r) + "..."
}
