// Package source resolves a document source (a PDF, a directory of PDFs or
// a git repository) to the PDF files it holds.
package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Resolve returns the PDF files named by src in lexical order. Git
// repositories are cloned, or pulled if already present, under reposDir.
func Resolve(ctx context.Context, src, reposDir string) ([]string, error) {
	root := src
	if IsGitURL(src) {
		local, err := gitURLToLocalPath(reposDir, src)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(local), 0750); err != nil {
			return nil, fmt.Errorf("failed to create repos directory: %w", err)
		}
		if err := syncRepo(ctx, src, local); err != nil {
			return nil, err
		}
		root = local
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source %s: %w", root, err)
	}
	if !info.IsDir() {
		if !isPDF(root) {
			return nil, fmt.Errorf("source %s is not a PDF", root)
		}
		return []string{root}, nil
	}

	var pdfs []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if !d.IsDir() && isPDF(d.Name()) {
			pdfs = append(pdfs, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", root, walkErr)
	}
	sort.Strings(pdfs)

	slog.Info("Resolved source", "source", src, "documents", len(pdfs))
	return pdfs, nil
}

func isPDF(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}
