package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shubham-80331/Study-Agent/internal/agent"
	"github.com/Shubham-80331/Study-Agent/internal/artifact"
	"github.com/Shubham-80331/Study-Agent/internal/domain"
	"github.com/Shubham-80331/Study-Agent/internal/ingest"
	"github.com/Shubham-80331/Study-Agent/internal/pipeline"
)

type fakeRunner struct {
	paths   []string
	err     error
	skipOCR bool
}

func (f *fakeRunner) Run(_ context.Context, path string) (*pipeline.Result, error) {
	f.paths = append(f.paths, path)
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{Chunks: 2, Flashcards: 10, Indexed: true, Quiz: agent.QuizStats{Stored: 6}, OCRUnavailable: f.skipOCR}, nil
}

type fakeStore struct {
	quizzes []domain.QuizQuestion
	lists   int
}

func (f *fakeStore) ListQuizzes(context.Context) ([]domain.QuizQuestion, error) {
	f.lists++
	return f.quizzes, nil
}

func (f *fakeStore) Counts(context.Context) (int, int, error) {
	return 2, len(f.quizzes), nil
}

type fakeGrader struct {
	answers map[int64]string
}

func (f *fakeGrader) Grade(_ context.Context, qs []domain.QuizQuestion, answers map[int64]string) (agent.Score, error) {
	f.answers = answers
	score := agent.Score{Total: len(qs)}
	for _, q := range qs {
		if answers[q.ID] == q.Answer {
			score.Correct++
		}
	}
	return score, nil
}

type fakePlanner struct {
	plan []domain.PlanEntry
}

func (f *fakePlanner) BuildPlan(context.Context) ([]domain.PlanEntry, error) {
	return f.plan, nil
}

type fakeAsker struct {
	answer string
	err    error
}

func (f *fakeAsker) Ask(context.Context, string) (string, error) {
	return f.answer, f.err
}

type testServer struct {
	*Server
	runner  *fakeRunner
	store   *fakeStore
	grader  *fakeGrader
	asker   *fakeAsker
	dataDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	ts := &testServer{
		runner: &fakeRunner{},
		store: &fakeStore{quizzes: []domain.QuizQuestion{
			{ID: 1, Question: "Which is an OS?", Options: []string{"Compiler", "Batch"}, Answer: "Batch"},
			{ID: 2, Question: "What maps pages?", Options: []string{"Page table", "Stack"}, Answer: "Page table"},
		}},
		grader:  &fakeGrader{},
		asker:   &fakeAsker{answer: "Paging maps pages to frames."},
		dataDir: dir,
	}
	ts.Server = NewServer(Deps{
		Pipeline:       ts.runner,
		Store:          ts.store,
		Quizzes:        ts.grader,
		Planner:        &fakePlanner{plan: []domain.PlanEntry{{TopicID: 7, Preview: "Threads...", Priority: domain.High, TotalIncorrect: 2}}},
		Doubt:          ts.asker,
		UploadDir:      filepath.Join(dir, "uploads"),
		FlashcardsPath: filepath.Join(dir, "outputs", artifact.FlashcardsFile),
		PlanPath:       filepath.Join(dir, "outputs", artifact.PlanFile),
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

func TestIndexAndStatic(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2 topics, 2 quiz questions stored.")

	rec = ts.do(t, http.MethodGet, "/static/app.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("document", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t)

	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, uploadRequest(t, "../../notes.pdf", []byte("%PDF-1.4 test")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Your study materials are ready")

	require.Len(t, ts.runner.paths, 1)
	saved := ts.runner.paths[0]
	assert.Equal(t, filepath.Join(ts.dataDir, "uploads", "notes.pdf"), saved)
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(data))
}

func TestUploadReportsSkippedScans(t *testing.T) {
	ts := newTestServer(t)

	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, uploadRequest(t, "notes.pdf", []byte("%PDF")))
	assert.NotContains(t, rec.Body.String(), "text recognition is not configured")

	ts.runner.skipOCR = true
	rec = httptest.NewRecorder()
	ts.ServeHTTP(rec, uploadRequest(t, "notes.pdf", []byte("%PDF")))
	body := rec.Body.String()
	assert.Contains(t, body, "Your study materials are ready")
	assert.Contains(t, body, "text recognition is not configured")
}

func TestUploadScannedDocumentWithoutRecognizer(t *testing.T) {
	ts := newTestServer(t)
	ts.runner.err = errors.Join(pipeline.ErrNoContent, fmt.Errorf("%w: 2 of 2 pages", ingest.ErrOCRUnavailable))

	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, uploadRequest(t, "scan.pdf", []byte("%PDF")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Text recognition is not configured")
}

func TestUploadRejectsNonPDF(t *testing.T) {
	ts := newTestServer(t)
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, uploadRequest(t, "notes.txt", []byte("hello")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.runner.paths)
}

func TestUploadReportsPipelineFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.runner.err = pipeline.ErrNoContent

	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, uploadRequest(t, "scan.pdf", []byte("%PDF")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No usable text could be extracted")
}

func TestFlashcardNavigation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/flashcards", nil)
	assert.Contains(t, rec.Body.String(), "No flashcards were generated.")

	require.NoError(t, artifact.WriteJSON(ts.d.FlashcardsPath, []domain.Flashcard{
		{Question: "First?", Answer: "One"},
		{Question: "Second?", Answer: "Two"},
	}))

	rec = ts.do(t, http.MethodGet, "/flashcards", nil)
	body := rec.Body.String()
	assert.Contains(t, body, "First?")
	assert.NotContains(t, body, "One")
	assert.Contains(t, body, "Card 1 of 2")

	rec = ts.do(t, http.MethodPost, "/flashcards/flip", nil)
	assert.Contains(t, rec.Body.String(), "One")

	rec = ts.do(t, http.MethodPost, "/flashcards/next", nil)
	body = rec.Body.String()
	assert.Contains(t, body, "Second?")
	assert.NotContains(t, body, "Two", "moving hides the answer")
	assert.Contains(t, body, "Card 2 of 2")

	rec = ts.do(t, http.MethodPost, "/flashcards/next", nil)
	assert.Contains(t, rec.Body.String(), "Card 2 of 2", "next stops at the last card")

	rec = ts.do(t, http.MethodPost, "/flashcards/prev", nil)
	assert.Contains(t, rec.Body.String(), "Card 1 of 2")

	rec = ts.do(t, http.MethodPost, "/flashcards/prev", nil)
	assert.Contains(t, rec.Body.String(), "Card 1 of 2", "prev stops at the first card")
}

func TestQuizFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/quiz", nil)
	body := rec.Body.String()
	assert.Contains(t, body, "Q1: Which is an OS?")
	assert.Contains(t, body, `name="q2"`)

	ts.do(t, http.MethodGet, "/quiz", nil)
	assert.Equal(t, 1, ts.store.lists, "quiz list is cached in the session")

	rec = ts.do(t, http.MethodPost, "/quiz", url.Values{"q1": {"Batch"}, "q2": {"Stack"}, "other": {"x"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "You got 1 out of 2 correct.")
	assert.Equal(t, map[int64]string{1: "Batch", 2: "Stack"}, ts.grader.answers)

	ts.do(t, http.MethodGet, "/quiz", nil)
	assert.Equal(t, 2, ts.store.lists, "grading reloads the quiz list")
}

func TestPlan(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/plan", nil)
	assert.Contains(t, rec.Body.String(), "No revision plan was generated.")

	rec = ts.do(t, http.MethodPost, "/plan/refresh", nil)
	body := rec.Body.String()
	assert.Contains(t, body, "Threads...")
	assert.Contains(t, body, "never")
}

func TestAsk(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/ask", url.Values{"query": {"What is paging?"}})
	assert.Contains(t, rec.Body.String(), "Paging maps pages to frames.")

	rec = ts.do(t, http.MethodPost, "/ask", url.Values{"query": {"  "}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.asker.err = errors.New("timeout")
	rec = ts.do(t, http.MethodPost, "/ask", url.Values{"query": {"Why?"}})
	assert.Contains(t, rec.Body.String(), "encountered an error")
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/ask", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
