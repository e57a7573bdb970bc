package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Shubham-80331/Study-Agent/internal/digest"
	"github.com/Shubham-80331/Study-Agent/internal/domain"
	"github.com/Shubham-80331/Study-Agent/internal/fsrs"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DefaultRevisionLimit is the number of topics returned by TopicsForRevision
// when no positive limit is given.
const DefaultRevisionLimit = 10

// timeLayout is fixed width so that text order equals time order.
const timeLayout = "2006-01-02 15:04:05.000000000"

// ErrQuestionNotFound is returned when an answer is recorded for an unknown question.
var ErrQuestionNotFound = errors.New("quiz question not found")

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn  *sql.DB
	now   func() time.Time
	sched *fsrs.Params
}

// Option configures a DB.
type Option func(*DB)

// WithClock overrides the clock used for last-revised timestamps.
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// WithScheduler overrides the parameters used to update revision scores.
func WithScheduler(p *fsrs.Params) Option {
	return func(db *DB) { db.sched = p }
}

// Open creates a new database connection and ensures the schema is up to date.
// The store is single-writer: it pins one connection for its lifetime.
func Open(dsn string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db := &DB{conn: conn, now: time.Now, sched: fsrs.DefaultParams()}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.Initialize(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Initialize creates the tables if they don't exist. It is safe to call on
// every start.
func (db *DB) Initialize(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// UpsertResult describes what a call to UpsertTopicAndQuestions stored.
type UpsertResult struct {
	TopicID           int64
	TopicCreated      bool
	QuestionsInserted int
}

// UpsertTopicAndQuestions stores a chunk as a topic, keyed by its content
// hash, and adds every question not already present for that topic.
// The call is atomic: on error nothing is written.
func (db *DB) UpsertTopicAndQuestions(ctx context.Context, chunk string, questions []domain.QuizQuestion) (UpsertResult, error) {
	topic := domain.Topic{ContentHash: digest.Of(chunk), Content: chunk}
	if err := domain.Validate(topic); err != nil {
		return UpsertResult{}, fmt.Errorf("invalid topic: %w", err)
	}
	for _, q := range questions {
		if err := domain.Validate(q); err != nil {
			return UpsertResult{}, fmt.Errorf("invalid quiz question %q: %w", q.Question, err)
		}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var result UpsertResult
	res, err := tx.ExecContext(ctx, `
		INSERT INTO topics (content_hash, content)
		VALUES (?, ?)
		ON CONFLICT(content_hash) DO NOTHING
	`, topic.ContentHash, topic.Content)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to insert topic %s: %w", topic.ContentHash, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		result.TopicCreated = true
	}

	err = tx.QueryRowContext(ctx, `SELECT id FROM topics WHERE content_hash = ?`, topic.ContentHash).Scan(&result.TopicID)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to find topic %s: %w", topic.ContentHash, err)
	}

	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("failed to encode options for %q: %w", q.Question, err)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO quiz_questions (topic_id, question, options, answer)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(topic_id, question) DO NOTHING
		`, result.TopicID, q.Question, string(options), q.Answer)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("failed to insert quiz question %q: %w", q.Question, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			result.QuestionsInserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to commit topic %s: %w", topic.ContentHash, err)
	}
	return result, nil
}

// RecordAnswer increments the correct or incorrect counter of a question and
// marks its topic as revised now. It returns ErrQuestionNotFound for an
// unknown id.
func (db *DB) RecordAnswer(ctx context.Context, questionID int64, correct bool) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	counter := "incorrect_count"
	if correct {
		counter = "correct_count"
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE quiz_questions SET `+counter+` = `+counter+` + 1 WHERE id = ?`, questionID)
	if err != nil {
		return fmt.Errorf("failed to record answer for question %d: %w", questionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record answer for question %d: %w", questionID, err)
	}
	if n == 0 {
		return fmt.Errorf("question %d: %w", questionID, ErrQuestionNotFound)
	}

	var (
		topicID        int64
		stability      float64
		lastRevised    sql.NullString
		totalCorrect   int
		totalIncorrect int
	)
	err = tx.QueryRowContext(ctx, `
		SELECT t.id, t.revision_score, t.last_revised,
			(SELECT COALESCE(SUM(correct_count), 0) FROM quiz_questions WHERE topic_id = t.id),
			(SELECT COALESCE(SUM(incorrect_count), 0) FROM quiz_questions WHERE topic_id = t.id)
		FROM topics t
		WHERE t.id = (SELECT topic_id FROM quiz_questions WHERE id = ?)
	`, questionID).Scan(&topicID, &stability, &lastRevised, &totalCorrect, &totalIncorrect)
	if err != nil {
		return fmt.Errorf("failed to load topic for question %d: %w", questionID, err)
	}

	last, err := parseTime(lastRevised)
	if err != nil {
		return fmt.Errorf("failed to parse last revised of topic %d: %w", topicID, err)
	}
	mem := fsrs.Memory{Stability: stability}
	if last != nil {
		mem.LastReview = *last
	}
	now := db.now().UTC()
	next := db.sched.Next(mem, correct, fsrs.DifficultyFrom(totalCorrect, totalIncorrect), now)

	_, err = tx.ExecContext(ctx, `
		UPDATE topics
		SET last_revised = ?, revision_score = ?, revision_count = revision_count + 1
		WHERE id = ?
	`, formatTime(now), next.Stability, topicID)
	if err != nil {
		return fmt.Errorf("failed to update topic %d: %w", topicID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit answer for question %d: %w", questionID, err)
	}
	return nil
}

// ListQuizzes retrieves every stored question in insertion order.
func (db *DB) ListQuizzes(ctx context.Context) ([]domain.QuizQuestion, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, topic_id, question, options, answer, correct_count, incorrect_count
		FROM quiz_questions
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []domain.QuizQuestion
	for rows.Next() {
		var q domain.QuizQuestion
		var options string
		if err := rows.Scan(&q.ID, &q.TopicID, &q.Question, &options, &q.Answer, &q.CorrectCount, &q.IncorrectCount); err != nil {
			return nil, fmt.Errorf("failed to scan quiz row: %w", err)
		}
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options of question %d: %w", q.ID, err)
		}
		quizzes = append(quizzes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	return quizzes, nil
}

// TopicsForRevision ranks topics by quiz performance: most incorrect answers
// first, then fewest correct answers, then least recently revised (never
// revised first). Topic id breaks any remaining tie.
func (db *DB) TopicsForRevision(ctx context.Context, limit int) ([]domain.RevisionTopic, error) {
	if limit <= 0 {
		limit = DefaultRevisionLimit
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT
			t.id, t.content_hash, t.content, t.last_revised, t.revision_score, t.revision_count,
			COALESCE(SUM(q.incorrect_count), 0) AS total_incorrect,
			COALESCE(SUM(q.correct_count), 0) AS total_correct
		FROM topics t
		LEFT JOIN quiz_questions q ON q.topic_id = t.id
		GROUP BY t.id
		ORDER BY total_incorrect DESC, total_correct ASC, t.last_revised ASC NULLS FIRST, t.id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank topics: %w", err)
	}
	defer rows.Close()

	var topics []domain.RevisionTopic
	for rows.Next() {
		var rt domain.RevisionTopic
		var lastRevised sql.NullString
		if err := rows.Scan(
			&rt.ID,
			&rt.ContentHash,
			&rt.Content,
			&lastRevised,
			&rt.RevisionScore,
			&rt.RevisionCount,
			&rt.TotalIncorrect,
			&rt.TotalCorrect,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ranked topic row: %w", err)
		}
		if rt.LastRevised, err = parseTime(lastRevised); err != nil {
			return nil, fmt.Errorf("failed to parse last revised of topic %d: %w", rt.ID, err)
		}
		topics = append(topics, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to rank topics: %w", err)
	}
	return topics, nil
}

// Topic retrieves a topic by id. It returns nil if there is none.
func (db *DB) Topic(ctx context.Context, id int64) (*domain.Topic, error) {
	var t domain.Topic
	var lastRevised sql.NullString
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, content_hash, content, last_revised, revision_score, revision_count
		FROM topics WHERE id = ?
	`, id).Scan(&t.ID, &t.ContentHash, &t.Content, &lastRevised, &t.RevisionScore, &t.RevisionCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Topic not found
		}
		return nil, fmt.Errorf("failed to find topic %d: %w", id, err)
	}
	if t.LastRevised, err = parseTime(lastRevised); err != nil {
		return nil, fmt.Errorf("failed to parse last revised of topic %d: %w", id, err)
	}
	return &t, nil
}

// Counts returns the number of stored topics and quiz questions.
func (db *DB) Counts(ctx context.Context) (topics, questions int, err error) {
	err = db.conn.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM topics), (SELECT COUNT(*) FROM quiz_questions)
	`).Scan(&topics, &questions)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return topics, questions, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(timeLayout, s.String, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
