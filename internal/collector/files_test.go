package collector

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"pgregory.net/rapid"
)

// Feature: devpulse, Property 3: Ignore pattern filtering
func TestIgnorePatternFiltering(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ext := rapid.StringMatching(`[a-z]{2,4}`).Draw(t, "ext")
		otherExt := rapid.StringMatching(`[a-z]{2,4}`).Draw(t, "otherExt")
		if otherExt == ext {
			otherExt = otherExt + "x"
		}
		dir := rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "dir")
		stem := rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "stem")

		fw := &FileWatcher{WorkDir: "/work"}
		patterns := []string{"*." + ext}

		matching := filepath.Join("/work", dir, stem+"."+ext)
		other := filepath.Join("/work", dir, stem+"."+otherExt)

		if !fw.isIgnored(matching, patterns) {
			t.Fatalf("expected %q to be ignored by %v", matching, patterns)
		}
		if fw.isIgnored(other, patterns) {
			t.Fatalf("expected %q not to be ignored by %v", other, patterns)
		}
	})
}

func TestIgnoredDirectoriesCoverChildren(t *testing.T) {
	fw := &FileWatcher{WorkDir: "/work"}
	patterns := []string{"node_modules/", ".git", "/build"}

	for _, p := range []string{
		"/work/node_modules/pkg/index.js",
		"/work/.git/HEAD",
		"/work/build/out.bin",
	} {
		if !fw.isIgnored(p, patterns) {
			t.Errorf("expected %q to be ignored", p)
		}
	}
	if fw.isIgnored("/work/src/main.go", patterns) {
		t.Error("expected src/main.go not to be ignored")
	}
}

func TestLoadIgnorePatternsReadsIgnoreFiles(t *testing.T) {
	dir := t.TempDir()
	content := "# comment\n\n*.log\n!keep.log\ndist/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".devpulseignore"), []byte("*.tmp\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fw := &FileWatcher{WorkDir: dir, IgnorePatterns: []string{"*.bak"}}
	patterns, err := fw.loadIgnorePatterns()
	if err != nil {
		t.Fatalf("loadIgnorePatterns: %v", err)
	}

	for _, want := range []string{".git", "*.bak", "*.log", "dist/", "*.tmp"} {
		if !contains(patterns, want) {
			t.Errorf("expected pattern %q in %v", want, patterns)
		}
	}
	if contains(patterns, "!keep.log") || contains(patterns, "# comment") {
		t.Errorf("negations and comments must be dropped: %v", patterns)
	}
}

func TestWatchReportsWrites(t *testing.T) {
	dir := t.TempDir()
	fw := &FileWatcher{WorkDir: dir, IgnorePatterns: []string{"*.log"}, Logger: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	got := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- fw.Watch(ctx, func(path string) error {
			mu.Lock()
			seen = append(seen, filepath.Base(path))
			mu.Unlock()
			select {
			case got <- struct{}{}:
			default:
			}
			return nil
		})
	}()

	// Keep writing until the watcher has registered and reported an edit.
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-got:
			break loop
		case <-ticker.C:
			_ = os.WriteFile(filepath.Join(dir, "debug.log"), []byte("x"), 0o644)
			_ = os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644)
		case <-deadline:
			t.Fatal("timed out waiting for a file edit")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, name := range seen {
		if name != "main.go" {
			t.Errorf("unexpected edit reported for %q", name)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
