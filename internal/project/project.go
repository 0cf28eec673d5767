// Package project locates the repository a documentation project lives in.
package project

import (
	"errors"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// ChangelogFile is the file name looked up at the repository root.
const ChangelogFile = "CHANGELOG.md"

// RepositoryRoot returns the working tree root of the git repository that
// contains dir. When dir is not inside a repository, the cleaned absolute
// dir is returned together with ok=false.
func RepositoryRoot(dir string) (root string, ok bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir, false
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if !errors.Is(err, git.ErrRepositoryNotExists) {
			slog.Debug("Repository lookup failed", "dir", abs, "error", err)
		}
		return abs, false
	}
	wt, err := repo.Worktree()
	if err != nil {
		return abs, false
	}
	return wt.Filesystem.Root(), true
}

// ChangelogPath returns the changelog path at the repository root that
// contains dir, falling back to dir itself. The second return reports
// whether the file exists.
func ChangelogPath(dir string) (string, bool) {
	root, _ := RepositoryRoot(dir)
	p := filepath.Join(root, ChangelogFile)
	if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
		return p, true
	}
	return p, false
}

// DetectName derives a project name for root. The repository name of the
// "origin" remote wins; otherwise the directory name is used.
func DetectName(root string) string {
	if name := remoteName(root); name != "" {
		return name
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return filepath.Base(abs)
}

func remoteName(root string) string {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		return ""
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ""
	}
	return RepoNameFromURL(urls[0])
}

// RepoNameFromURL extracts the repository name from a clone URL, handling
// both URL and scp-like ("git@host:org/repo.git") forms.
func RepoNameFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		p = u.Path
	} else if i := strings.Index(raw, ":"); i >= 0 && !strings.Contains(raw[:i], "/") {
		p = raw[i+1:]
	}
	p = strings.TrimSuffix(strings.TrimRight(p, "/"), ".git")
	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
