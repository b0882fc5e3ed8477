// Package ingestion turns a workspace into a graph: it walks the tree,
// loads file content and runs detectors on a bounded worker pool.
package ingestion

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/gobwas/glob"

	"github.com/Benny93/codenode/internal/detect"
)

// Default patterns to ignore (in addition to .gitignore).
var defaultIgnorePatterns = []string{
	".git/",
	"node_modules/",
	".codenode/",
	".hg/",
	".svn/",
	"dist/",
	"build/",
	"coverage/",
	".next/",
	".cache/",
	".DS_Store",
	"Thumbs.db",
}

// WalkOptions controls which files WalkWorkspace returns.
type WalkOptions struct {
	// RespectGitignore applies the root .gitignore.
	RespectGitignore bool

	// Exclude holds glob patterns matched against the slash-separated
	// relative path and the base name.
	Exclude []string
}

// WalkWorkspace returns the sorted absolute paths of every indexable file
// under root. Unreadable subdirectories are skipped.
func WalkWorkspace(root string, opts WalkOptions) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrRootNotDir)
	}

	allPatterns := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns))
	for _, p := range defaultIgnorePatterns {
		allPatterns = append(allPatterns, gitignore.ParsePattern(p, nil))
	}
	if opts.RespectGitignore {
		patterns, err := loadGitignore(root)
		if err != nil {
			return nil, fmt.Errorf("loading .gitignore: %w", err)
		}
		allPatterns = append(allPatterns, patterns...)
	}
	matcher := gitignore.NewMatcher(allPatterns)

	excludes, err := compileExcludes(opts.Exclude)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if d.Name() == ".git" || matcher.Match(splitPath(relPath), true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !detect.IsSupported(path) {
			return nil
		}
		if matcher.Match(splitPath(relPath), false) || excludes.match(relPath) {
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking workspace: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

// loadGitignore loads .gitignore patterns from the workspace root.
func loadGitignore(root string) ([]gitignore.Pattern, error) {
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, nil
}

type excludeSet []glob.Glob

func compileExcludes(patterns []string) (excludeSet, error) {
	set := make(excludeSet, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", p, err)
		}
		set = append(set, g)
	}
	return set, nil
}

func (s excludeSet) match(relPath string) bool {
	slashed := filepath.ToSlash(relPath)
	base := filepath.Base(relPath)
	for _, g := range s {
		if g.Match(slashed) || g.Match(base) {
			return true
		}
	}
	return false
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}
