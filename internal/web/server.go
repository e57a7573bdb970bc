package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Shubham-80331/Study-Agent/internal/agent"
	"github.com/Shubham-80331/Study-Agent/internal/artifact"
	"github.com/Shubham-80331/Study-Agent/internal/domain"
	"github.com/Shubham-80331/Study-Agent/internal/pipeline"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

const maxUploadSize = 64 << 20

// Runner runs the study pipeline over an uploaded document.
type Runner interface {
	Run(ctx context.Context, pdfPath string) (*pipeline.Result, error)
}

// Store is the read side of the topic/quiz store.
type Store interface {
	ListQuizzes(ctx context.Context) ([]domain.QuizQuestion, error)
	Counts(ctx context.Context) (topics, questions int, err error)
}

type Grader interface {
	Grade(ctx context.Context, quizzes []domain.QuizQuestion, answers map[int64]string) (agent.Score, error)
}

type PlanBuilder interface {
	BuildPlan(ctx context.Context) ([]domain.PlanEntry, error)
}

type Asker interface {
	Ask(ctx context.Context, query string) (string, error)
}

// Deps holds the dependencies for the HTTP server.
type Deps struct {
	Pipeline       Runner
	Store          Store
	Quizzes        Grader
	Planner        PlanBuilder
	Doubt          Asker
	UploadDir      string
	FlashcardsPath string
	PlanPath       string
}

// session is the state of the single interactive user.
type session struct {
	cardIndex  int
	showAnswer bool
	quizzes    []domain.QuizQuestion
	loaded     bool
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	d         Deps
	router    *http.ServeMux
	templates *template.Template

	mu      sync.Mutex
	session session
}

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"date": func(t *time.Time) string {
		if t == nil {
			return "never"
		}
		return t.Local().Format("2006-01-02")
	},
}

// NewServer creates and configures a new server.
func NewServer(d Deps) *Server {
	tpl, err := template.New("").Funcs(funcs).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		log.Fatalf("Failed to parse templates: %v", err)
	}

	s := &Server{
		d:         d,
		router:    http.NewServeMux(),
		templates: tpl,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("Failed to create sub-filesystem for static assets: %v", err)
	}
	s.router.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.HandleFunc("GET /{$}", s.handleIndex())
	s.router.HandleFunc("POST /upload", s.handleUpload())

	// HTMX-based routes
	s.router.HandleFunc("GET /flashcards", s.handleFlashcards(nil))
	s.router.HandleFunc("POST /flashcards/next", s.handleFlashcards(func(ss *session, total int) {
		if ss.cardIndex < total-1 {
			ss.cardIndex++
			ss.showAnswer = false
		}
	}))
	s.router.HandleFunc("POST /flashcards/prev", s.handleFlashcards(func(ss *session, total int) {
		if ss.cardIndex > 0 {
			ss.cardIndex--
			ss.showAnswer = false
		}
	}))
	s.router.HandleFunc("POST /flashcards/flip", s.handleFlashcards(func(ss *session, total int) {
		ss.showAnswer = !ss.showAnswer
	}))

	s.router.HandleFunc("GET /quiz", s.handleGetQuiz())
	s.router.HandleFunc("POST /quiz", s.handlePostQuiz())

	s.router.HandleFunc("GET /plan", s.handleGetPlan())
	s.router.HandleFunc("POST /plan/refresh", s.handleRefreshPlan())

	s.router.HandleFunc("POST /ask", s.handleAsk())
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("Failed to render template", "template", name, "error", err)
	}
}

// handleIndex renders the study hub.
func (s *Server) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topics, questions, err := s.d.Store.Counts(r.Context())
		if err != nil {
			slog.Error("Failed to count topics", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.render(w, "index", map[string]interface{}{
			"Topics":    topics,
			"Questions": questions,
		})
	}
}

// handleUpload saves the uploaded PDF and runs the pipeline in the
// foreground to make the user wait.
func (s *Server) handleUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		file, header, err := r.FormFile("document")
		if err != nil {
			http.Error(w, "A PDF file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		name := filepath.Base(header.Filename)
		if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
			http.Error(w, "Only PDF files are supported", http.StatusBadRequest)
			return
		}

		path, err := s.save(file, name)
		if err != nil {
			slog.Error("Failed to save upload", "file", name, "error", err)
			http.Error(w, "Failed to save upload", http.StatusInternalServerError)
			return
		}
		slog.Info("Document uploaded", "path", path)

		res, err := s.d.Pipeline.Run(r.Context(), path)
		if err != nil {
			slog.Error("Pipeline failed", "path", path, "error", err)
			s.render(w, "upload_result", map[string]interface{}{"Error": agent.UserMessage(err)})
			return
		}

		s.mu.Lock()
		s.session = session{}
		s.mu.Unlock()

		s.render(w, "upload_result", map[string]interface{}{"Result": res})
	}
}

func (s *Server) save(src io.Reader, name string) (string, error) {
	if err := os.MkdirAll(s.d.UploadDir, 0750); err != nil {
		return "", err
	}
	path := filepath.Join(s.d.UploadDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	return path, dst.Close()
}

type flashcardView struct {
	Card       *domain.Flashcard
	ShowAnswer bool
	Position   int
	Total      int
	HasPrev    bool
	HasNext    bool
}

// handleFlashcards applies move to the session's card position, if set,
// and renders the current card.
func (s *Server) handleFlashcards(move func(ss *session, total int)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := artifact.ReadFlashcards(s.d.FlashcardsPath)
		if err != nil {
			slog.Error("Could not load flashcards", "error", err)
			http.Error(w, "Could not load flashcards", http.StatusInternalServerError)
			return
		}

		s.mu.Lock()
		if s.session.cardIndex >= len(cards) {
			s.session.cardIndex, s.session.showAnswer = 0, false
		}
		if move != nil && len(cards) > 0 {
			move(&s.session, len(cards))
		}
		view := flashcardView{ShowAnswer: s.session.showAnswer, Total: len(cards)}
		if len(cards) > 0 {
			i := s.session.cardIndex
			view.Card = &cards[i]
			view.Position = i + 1
			view.HasPrev = i > 0
			view.HasNext = i < len(cards)-1
		}
		s.mu.Unlock()

		s.render(w, "flashcard", view)
	}
}

// quizzes returns the session's quiz list, loading it on first use.
func (s *Server) quizzes(ctx context.Context) ([]domain.QuizQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.loaded {
		qs, err := s.d.Store.ListQuizzes(ctx)
		if err != nil {
			return nil, err
		}
		s.session.quizzes, s.session.loaded = qs, true
	}
	return s.session.quizzes, nil
}

func (s *Server) handleGetQuiz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := s.quizzes(r.Context())
		if err != nil {
			slog.Error("Failed to load quizzes", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.render(w, "quiz", qs)
	}
}

// handlePostQuiz grades the submitted form. Each answer arrives as
// q<question id>=<option>.
func (s *Server) handlePostQuiz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}
		qs, err := s.quizzes(r.Context())
		if err != nil {
			slog.Error("Failed to load quizzes", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		answers := make(map[int64]string, len(qs))
		for key, values := range r.PostForm {
			id, err := strconv.ParseInt(strings.TrimPrefix(key, "q"), 10, 64)
			if err != nil || !strings.HasPrefix(key, "q") || len(values) == 0 {
				continue
			}
			answers[id] = values[0]
		}

		score, err := s.d.Quizzes.Grade(r.Context(), qs, answers)
		if err != nil {
			slog.Error("Failed to grade quiz", "error", err)
			http.Error(w, "Failed to record quiz results", http.StatusInternalServerError)
			return
		}
		slog.Info("Quiz graded", "correct", score.Correct, "total", score.Total)

		// Counters changed; reload on next view.
		s.mu.Lock()
		s.session.loaded = false
		s.mu.Unlock()

		s.render(w, "quiz_result", score)
	}
}

func (s *Server) handleGetPlan() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, err := artifact.ReadPlan(s.d.PlanPath)
		if err != nil {
			slog.Error("Could not load plan", "error", err)
			http.Error(w, "Could not load plan", http.StatusInternalServerError)
			return
		}
		s.render(w, "plan", plan)
	}
}

func (s *Server) handleRefreshPlan() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, err := s.d.Planner.BuildPlan(r.Context())
		if err != nil {
			slog.Error("Failed to build plan", "error", err)
			http.Error(w, "Failed to build plan", http.StatusInternalServerError)
			return
		}
		s.render(w, "plan", plan)
	}
}

func (s *Server) handleAsk() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.PostFormValue("query"))
		if query == "" {
			http.Error(w, "Query cannot be empty", http.StatusBadRequest)
			return
		}
		answer, err := s.d.Doubt.Ask(r.Context(), query)
		if err != nil {
			slog.Error("Failed to answer question", "error", err)
			answer = agent.UserMessage(err)
		}
		s.render(w, "answer", answer)
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	slog.Info("Web interface listening", "addr", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
