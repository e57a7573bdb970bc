package retrieval

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"
)

var metaKey = []byte("meta")

type meta struct {
	Generation uint64 `json:"generation"`
	Dim        int    `json:"dim"`
	Count      int    `json:"count"`
}

// Store persists an Index in BadgerDB. Each save writes a new generation
// and switches the meta record to it in one transaction, so readers see
// either the old index or the new one.
type Store struct {
	db *badger.DB
}

// OpenBadger opens a BadgerDB at path, or in memory when path is empty.
func OpenBadger(path string, log *slog.Logger) (*badger.DB, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0750); err != nil {
			return nil, fmt.Errorf("create index directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}
	if log != nil {
		opts = opts.WithLogger(&badgerLogger{logger: log})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// NewStore wraps an open BadgerDB.
func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

// Save replaces the persisted index with idx.
func (s *Store) Save(idx *Index) error {
	if idx == nil || idx.Vectors == nil || idx.Vectors.Len() != len(idx.Chunks) {
		return errors.New("index vectors and chunks are misaligned")
	}

	prev, err := s.meta()
	if err != nil && !errors.Is(err, ErrNoIndex) {
		return err
	}
	next := meta{Generation: prev.Generation + 1, Dim: idx.Vectors.Dim(), Count: len(idx.Chunks)}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i, chunk := range idx.Chunks {
		if err := wb.Set(chunkKey(next.Generation, i), []byte(chunk)); err != nil {
			return fmt.Errorf("failed to write chunk %d: %w", i, err)
		}
		if err := wb.Set(vectorKey(next.Generation, i), encodeVector(idx.Vectors.vectors[i])); err != nil {
			return fmt.Errorf("failed to write vector %d: %w", i, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush index: %w", err)
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error { return txn.Set(metaKey, raw) }); err != nil {
		return fmt.Errorf("failed to switch index generation: %w", err)
	}

	if prev.Generation > 0 {
		if err := s.db.DropPrefix(generationPrefix(prev.Generation)); err != nil {
			slog.Warn("Failed to drop previous index generation", "generation", prev.Generation, "error", err)
		}
	}
	return nil
}

// Load reads the persisted index. It returns ErrNoIndex if none was saved.
func (s *Store) Load() (*Index, error) {
	m, err := s.meta()
	if err != nil {
		return nil, err
	}

	idx := &Index{Vectors: NewFlatIndex(m.Dim), Chunks: make([]string, m.Count)}
	err = s.db.View(func(txn *badger.Txn) error {
		for i := 0; i < m.Count; i++ {
			item, err := txn.Get(chunkKey(m.Generation, i))
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			text, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			idx.Chunks[i] = string(text)

			item, err = txn.Get(vectorKey(m.Generation, i))
			if err != nil {
				return fmt.Errorf("vector %d: %w", i, err)
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("vector %d: %w", i, err)
			}
			if err := idx.Vectors.Add(decodeVector(raw)); err != nil {
				return fmt.Errorf("vector %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	return idx, nil
}

func (s *Store) meta() (meta, error) {
	var m meta
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &m) })
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return meta{}, ErrNoIndex
	}
	if err != nil {
		return meta{}, fmt.Errorf("failed to read index metadata: %w", err)
	}
	return m, nil
}

func generationPrefix(gen uint64) []byte {
	return []byte(fmt.Sprintf("g/%016x/", gen))
}

func chunkKey(gen uint64, i int) []byte {
	return []byte(fmt.Sprintf("g/%016x/chunk/%08d", gen, i))
}

func vectorKey(gen uint64, i int) []byte {
	return []byte(fmt.Sprintf("g/%016x/vec/%08d", gen, i))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
