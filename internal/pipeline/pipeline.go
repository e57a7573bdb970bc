// Package pipeline sequences ingestion, indexing, generation and planning
// for a study document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Shubham-80331/Study-Agent/internal/agent"
	"github.com/Shubham-80331/Study-Agent/internal/domain"
	"github.com/Shubham-80331/Study-Agent/internal/ingest"
	"github.com/Shubham-80331/Study-Agent/internal/llm"
	"github.com/Shubham-80331/Study-Agent/internal/retrieval"
	"github.com/Shubham-80331/Study-Agent/internal/source"
)

// ErrNoContent means no usable chunk was extracted; downstream stages do
// not run.
var ErrNoContent = ingest.ErrNoContent

// Extractor produces normalized text from a document.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// IndexStore persists a retrieval index.
type IndexStore interface {
	Save(idx *retrieval.Index) error
}

// Deps are the collaborators of a Pipeline. Embedder, Index and Doubt are
// optional; without an Embedder question answering stays disabled.
type Deps struct {
	Extractor    Extractor
	MinChunkSize int
	Embedder     retrieval.Embedder
	Index        IndexStore
	Flashcards   *agent.FlashcardAgent
	Quizzes      *agent.QuizAgent
	Planner      *agent.Planner
	Doubt        *agent.DoubtAgent
	ReposDir     string
	Logger       *slog.Logger
}

type Pipeline struct {
	d   Deps
	log *slog.Logger
}

func New(d Deps) *Pipeline {
	if d.MinChunkSize <= 0 {
		d.MinChunkSize = ingest.DefaultMinChunkSize
	}
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{d: d, log: log}
}

// Result summarises a pipeline run.
type Result struct {
	RunID      string
	Documents  []string
	Chunks     int
	Indexed    bool
	Flashcards int
	Quiz       agent.QuizStats
	Plan       []domain.PlanEntry
	Duration   time.Duration

	// OCRUnavailable is set when scanned-looking pages were kept as direct
	// text because no recognizer is configured.
	OCRUnavailable bool
}

// Run processes one PDF.
func (p *Pipeline) Run(ctx context.Context, pdfPath string) (*Result, error) {
	return p.run(ctx, []string{pdfPath})
}

// RunSource resolves src to its PDFs and processes them as one body of
// material. Documents that fail to extract are logged and skipped.
func (p *Pipeline) RunSource(ctx context.Context, src string) (*Result, error) {
	docs, err := source.Resolve(ctx, src, p.d.ReposDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source %s: %w", src, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("source %s: %w", src, ErrNoContent)
	}
	return p.run(ctx, docs)
}

func (p *Pipeline) run(ctx context.Context, docs []string) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString(), Documents: docs}
	log := p.log.With("run_id", res.RunID)
	log.Info("Starting study pipeline", "documents", len(docs))

	var (
		chunks     []string
		extractErr []error
	)
	for _, doc := range docs {
		text, err := p.d.Extractor.Extract(ctx, doc)
		switch {
		case errors.Is(err, ingest.ErrOCRUnavailable):
			log.Warn("Scanned pages skipped", "path", doc, "error", err)
			res.OCRUnavailable = true
		case err != nil:
			log.Warn("Failed to extract document", "path", doc, "error", err)
			extractErr = append(extractErr, err)
			continue
		}
		docChunks := ingest.Chunk(text, p.d.MinChunkSize)
		log.Info("Extracted document", "path", doc, "chunks", len(docChunks))
		if len(docChunks) == 0 && err != nil {
			extractErr = append(extractErr, err)
		}
		chunks = append(chunks, docChunks...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		log.Error("Pipeline halted: no text chunks extracted")
		return nil, errors.Join(append([]error{ErrNoContent}, extractErr...)...)
	}
	res.Chunks = len(chunks)

	res.Indexed = p.index(ctx, log, chunks)

	cards, err := p.d.Flashcards.Generate(ctx, chunks)
	switch {
	case errors.Is(err, llm.ErrUnavailable):
		log.Warn("Skipping flashcards: generative service unavailable")
	case err != nil:
		log.Error("Flashcard stage failed", "error", err)
		return nil, err
	default:
		res.Flashcards = len(cards)
	}

	stats, err := p.d.Quizzes.GenerateAndStore(ctx, chunks)
	switch {
	case errors.Is(err, llm.ErrUnavailable):
		log.Warn("Skipping quizzes: generative service unavailable")
	case err != nil:
		log.Error("Quiz stage failed", "error", err)
		return nil, err
	default:
		res.Quiz = stats
	}

	plan, err := p.d.Planner.BuildPlan(ctx)
	if err != nil {
		log.Error("Planner stage failed", "error", err)
		return nil, err
	}
	res.Plan = plan

	res.Duration = time.Since(start)
	log.Info("Pipeline finished", "duration", res.Duration, "chunks", res.Chunks,
		"flashcards", res.Flashcards, "questions", res.Quiz.Stored, "indexed", res.Indexed)
	return res, nil
}

// index builds and saves the retrieval index. Failures leave question
// answering on the previous index, if any.
func (p *Pipeline) index(ctx context.Context, log *slog.Logger, chunks []string) bool {
	if p.d.Embedder == nil {
		log.Warn("No embedder configured, question answering disabled")
		return false
	}
	idx, err := retrieval.Build(ctx, p.d.Embedder, chunks)
	if err != nil {
		log.Error("Failed to build retrieval index", "error", err)
		return false
	}
	if p.d.Index != nil {
		if err := p.d.Index.Save(idx); err != nil {
			log.Error("Failed to save retrieval index", "error", err)
			return false
		}
	}
	if p.d.Doubt != nil {
		p.d.Doubt.SetIndex(idx)
	}
	log.Info("Retrieval index built", "vectors", idx.Vectors.Len())
	return true
}
