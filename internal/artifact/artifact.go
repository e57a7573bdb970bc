// Package artifact reads and writes the regenerable JSON files shown by the
// interactive surface. They are caches, never a source of truth.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Shubham-80331/Study-Agent/internal/domain"
)

const (
	FlashcardsFile = "flashcards.json"
	PlanFile       = "planner.json"
)

// WriteJSON writes v to path as indented JSON. The file is replaced via a
// rename so readers never see a partial write.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ReadFlashcards loads a flashcard artifact. A missing file is an empty list.
func ReadFlashcards(path string) ([]domain.Flashcard, error) {
	var cards []domain.Flashcard
	if err := readJSON(path, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// ReadPlan loads a revision plan artifact. A missing file is an empty plan.
func ReadPlan(path string) ([]domain.PlanEntry, error) {
	var plan []domain.PlanEntry
	if err := readJSON(path, &plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
