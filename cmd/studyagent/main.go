package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/Shubham-80331/Study-Agent/internal/agent"
	"github.com/Shubham-80331/Study-Agent/internal/artifact"
	"github.com/Shubham-80331/Study-Agent/internal/config"
	"github.com/Shubham-80331/Study-Agent/internal/domain"
	"github.com/Shubham-80331/Study-Agent/internal/ingest"
	"github.com/Shubham-80331/Study-Agent/internal/llm"
	"github.com/Shubham-80331/Study-Agent/internal/ocr"
	"github.com/Shubham-80331/Study-Agent/internal/pipeline"
	"github.com/Shubham-80331/Study-Agent/internal/retrieval"
	"github.com/Shubham-80331/Study-Agent/internal/storage"
	"github.com/Shubham-80331/Study-Agent/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("studyagent failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Define and parse command-line flags
	flags := pflag.NewFlagSet("studyagent", pflag.ExitOnError)
	config.RegisterFlags(flags)
	pdf := flags.String("pdf", "", "Process a PDF, a directory of PDFs or a git repository URL")
	serve := flags.Bool("serve", false, "Start the web interface")
	ask := flags.String("ask", "", "Ask a question about the processed material")
	plan := flags.Bool("plan", false, "Rebuild and print the revision plan")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()})))

	if *pdf == "" && !*serve && *ask == "" && !*plan {
		flags.Usage()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open the stores
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	slog.Info("Database opened successfully", "path", cfg.DB)

	bdb, err := retrieval.OpenBadger(cfg.IndexDir(), slog.Default())
	if err != nil {
		return err
	}
	defer bdb.Close()
	indexStore := retrieval.NewStore(bdb)

	idx, err := indexStore.Load()
	if err != nil && !errors.Is(err, retrieval.ErrNoIndex) {
		slog.Warn("Could not load retrieval index", "error", err)
	}

	// 3. Build the collaborators
	var (
		completer agent.Completer
		embedder  retrieval.Embedder
	)
	client, err := llm.New(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		ChatModel:      cfg.LLM.ChatModel,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Timeout:        cfg.LLM.Timeout,
		MaxRetries:     cfg.LLM.MaxRetries,
	})
	switch {
	case errors.Is(err, llm.ErrUnavailable):
		slog.Warn("Generative service unavailable, generation and question answering disabled", "error", err)
	case err != nil:
		return err
	default:
		completer, embedder = client, client
	}

	extractOpts := []ingest.ExtractorOption{
		ingest.WithOCRThreshold(cfg.Ingest.OCRThreshold),
		ingest.WithOCRDPI(cfg.Ingest.OCRDPI),
	}
	if cfg.OCR.Enabled {
		vision, err := ocr.NewVision(ctx, cfg.OCR.CredentialsFile)
		if err != nil {
			slog.Warn("Text recognition unavailable, scanned pages will be skipped", "error", err)
		} else {
			defer vision.Close()
			extractOpts = append(extractOpts, ingest.WithRecognizer(vision))
		}
	}

	flashcardsPath := filepath.Join(cfg.OutputsDir(), artifact.FlashcardsFile)
	planPath := filepath.Join(cfg.OutputsDir(), artifact.PlanFile)

	flashcards := agent.NewFlashcardAgent(completer, flashcardsPath, nil)
	flashcards.Temperature = cfg.LLM.Temperature
	quizzes := agent.NewQuizAgent(completer, db, nil)
	quizzes.Temperature = cfg.LLM.Temperature
	planner := agent.NewPlanner(db, planPath, nil)
	planner.Limit = cfg.Planner.Limit
	doubt := agent.NewDoubtAgent(completer, embedder, idx, nil)
	doubt.TopK = cfg.Retrieval.TopK
	doubt.Temperature = cfg.LLM.AnswerTemperature

	p := pipeline.New(pipeline.Deps{
		Extractor:    ingest.NewExtractor(nil, extractOpts...),
		MinChunkSize: cfg.Ingest.MinChunkSize,
		Embedder:     embedder,
		Index:        indexStore,
		Flashcards:   flashcards,
		Quizzes:      quizzes,
		Planner:      planner,
		Doubt:        doubt,
		ReposDir:     cfg.Repos(),
	})

	// 4. Run the requested actions
	if *pdf != "" {
		res, err := p.RunSource(ctx, *pdf)
		if err != nil {
			fmt.Fprintln(os.Stderr, agent.UserMessage(err))
			return err
		}
		fmt.Printf("Processed %d document(s): %d chunks, %d flashcards, %d new quiz questions.\n",
			len(res.Documents), res.Chunks, res.Flashcards, res.Quiz.Stored)
		if res.OCRUnavailable {
			fmt.Println("Some pages look scanned, but text recognition is not configured, so they were skipped.")
		}
	}

	if *plan {
		entries, err := planner.BuildPlan(ctx)
		if err != nil {
			return err
		}
		printPlan(entries)
	}

	if *ask != "" {
		answer, err := doubt.Ask(ctx, *ask)
		if err != nil {
			slog.Error("Failed to answer question", "error", err)
			answer = agent.UserMessage(err)
		}
		fmt.Println(answer)
	}

	if *serve {
		srv := web.NewServer(web.Deps{
			Pipeline:       p,
			Store:          db,
			Quizzes:        quizzes,
			Planner:        planner,
			Doubt:          doubt,
			UploadDir:      cfg.Uploads(),
			FlashcardsPath: flashcardsPath,
			PlanPath:       planPath,
		})
		return srv.ListenAndServe(ctx, cfg.Addr)
	}
	return nil
}

func printPlan(entries []domain.PlanEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRIORITY\tTOPIC\tINCORRECT\tCORRECT\tLAST REVISED\tNEXT REVIEW\tPREVIEW")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			e.Priority, e.TopicID, e.TotalIncorrect, e.TotalCorrect, day(e.LastRevised), day(e.NextReview), strings.Join(strings.Fields(e.Preview), " "))
	}
	w.Flush()
}

func day(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02")
}
