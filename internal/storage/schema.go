package storage

const schema = `
-- The 'topics' table stores each distinct text chunk and its revision metadata.
CREATE TABLE IF NOT EXISTS topics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    content_hash TEXT NOT NULL UNIQUE,
    content TEXT NOT NULL,
    last_revised TEXT,                -- UTC, fixed width; NULL until first answer
    revision_score REAL NOT NULL DEFAULT 0.0,
    revision_count INTEGER NOT NULL DEFAULT 0
);

-- The 'quiz_questions' table stores generated questions and their answer counters.
CREATE TABLE IF NOT EXISTS quiz_questions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    topic_id INTEGER NOT NULL,
    question TEXT NOT NULL,
    options TEXT NOT NULL,            -- JSON array, order preserved
    answer TEXT NOT NULL,
    correct_count INTEGER NOT NULL DEFAULT 0,
    incorrect_count INTEGER NOT NULL DEFAULT 0,

    UNIQUE(topic_id, question),
    FOREIGN KEY(topic_id) REFERENCES topics(id)
);

CREATE INDEX IF NOT EXISTS idx_quiz_questions_topic ON quiz_questions(topic_id);
`
