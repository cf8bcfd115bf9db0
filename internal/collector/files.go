package collector

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// alwaysIgnored are never reported: VCS internals and editor swap files.
var alwaysIgnored = []string{".git", ".hg", ".svn", "*.swp", "*~", ".DS_Store"}

// FileWatcher reports file writes under a working directory.
type FileWatcher struct {
	WorkDir        string
	IgnorePatterns []string
	Logger         zerolog.Logger
}

// Watch starts a recursive fsnotify watcher on WorkDir and calls onEdit for
// every Write/Create of a non-ignored file until ctx is cancelled.
// Errors returned by onEdit are logged and do not stop the watcher.
func (fw *FileWatcher) Watch(ctx context.Context, onEdit func(path string) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	patterns, err := fw.loadIgnorePatterns()
	if err != nil {
		fw.Logger.Warn().Err(err).Msg("failed to load ignore patterns")
	}

	// Walk the directory tree and add a watcher for every subdirectory.
	if err := filepath.WalkDir(fw.WorkDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !d.IsDir() {
			return nil
		}
		if path != fw.WorkDir && fw.isIgnored(path, patterns) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if fw.isIgnored(event.Name, patterns) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				// New directory: watch it too.
				if event.Has(fsnotify.Create) {
					_ = watcher.Add(event.Name)
				}
				continue
			}
			if err := onEdit(event.Name); err != nil {
				fw.Logger.Warn().Err(err).Str("path", event.Name).Msg("failed to record file edit")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fw.Logger.Debug().Err(err).Msg("watcher error")
		}
	}
}

// isIgnored reports whether path or any of its parent directories inside
// WorkDir matches one of the given glob patterns.
func (fw *FileWatcher) isIgnored(path string, patterns []string) bool {
	rel := path
	if fw.WorkDir != "" {
		if r, err := filepath.Rel(fw.WorkDir, path); err == nil {
			rel = r
		}
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range patterns {
		pattern = strings.TrimSuffix(strings.TrimPrefix(pattern, "/"), "/")
		if pattern == "" {
			continue
		}
		// Match against the relative path.
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
		// Match against each path element.
		for _, part := range strings.Split(rel, "/") {
			if matched, _ := filepath.Match(pattern, part); matched {
				return true
			}
		}
	}
	return false
}

// loadIgnorePatterns merges the built-in and configured patterns with those
// from .gitignore and .devpulseignore files found in the working directory.
func (fw *FileWatcher) loadIgnorePatterns() ([]string, error) {
	patterns := append([]string{}, alwaysIgnored...)
	patterns = append(patterns, fw.IgnorePatterns...)

	for _, name := range []string{".gitignore", ".devpulseignore"} {
		p := filepath.Join(fw.WorkDir, name)
		extra, err := readPatternFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return patterns, err
		}
		patterns = append(patterns, extra...)
	}
	return patterns, nil
}

// readPatternFile reads a gitignore-style file and returns non-empty,
// non-comment, non-negated lines.
func readPatternFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}
