package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// IsGitURL reports whether src names a remote git repository rather than a
// local path.
func IsGitURL(src string) bool {
	if strings.HasPrefix(src, "git@") {
		return true
	}
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "ssh", "git":
		return true
	case "http", "https":
		return strings.HasSuffix(u.Path, ".git")
	}
	return false
}

// syncRepo clones a git repository if it doesn't exist at the given path,
// or pulls the latest changes if it does.
func syncRepo(ctx context.Context, repoURL, localPath string) error {
	_, err := os.Stat(localPath)
	switch {
	case os.IsNotExist(err):
		slog.Info("Cloning repository", "url", repoURL, "path", localPath)
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{URL: repoURL})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", repoURL, err)
		}
	case err == nil:
		slog.Info("Pulling latest changes", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}
		err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}
	return nil
}

// gitURLToLocalPath maps a repository URL to baseDir/<host>/<path>.
func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	var host, repoPath string

	parsedURL, err := url.Parse(repoURL)
	switch {
	case err == nil && parsedURL.Host != "" && (parsedURL.Scheme == "https" || parsedURL.Scheme == "http" || parsedURL.Scheme == "ssh" || parsedURL.Scheme == "git"):
		host, repoPath = parsedURL.Hostname(), parsedURL.Path
	case strings.Contains(repoURL, "@"):
		// scp-like syntax: user@host:path
		parts := strings.SplitN(repoURL, ":", 2)
		if len(parts) != 2 {
			return "", fmt.Errorf("could not parse git URL: %s", repoURL)
		}
		hostAndUser := strings.Split(parts[0], "@")
		if len(hostAndUser) != 2 {
			return "", fmt.Errorf("could not parse git URL: %s", repoURL)
		}
		host, repoPath = hostAndUser[1], parts[1]
	default:
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	repoPath = strings.Trim(strings.TrimSuffix(repoPath, ".git"), "/")
	if host == "" || repoPath == "" {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	local := filepath.Join(baseDir, host, repoPath)
	rel, err := filepath.Rel(baseDir, local)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("git URL %s escapes the repository directory", repoURL)
	}
	return local, nil
}
