package common

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSourceHashIgnoresSkippedDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "cmd", "api", "cmd.go"), "package main")

	before, err := SourceHash(root)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	writeFile(t, filepath.Join(root, "infra", "main.go"), "package main")
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "ref: refs/heads/main")

	after, err := SourceHash(root)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if before != after {
		t.Fatalf("skipped dirs changed the hash: %s != %s", before, after)
	}

	writeFile(t, filepath.Join(root, "cmd", "api", "cmd.go"), "package main // changed")
	changed, err := SourceHash(root)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if changed == before {
		t.Fatalf("expected hash to change with source")
	}
}

func TestSourceHashIncludesPaths(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(a, "x.go"), "same")
	writeFile(t, filepath.Join(b, "y.go"), "same")

	ha, _ := SourceHash(a)
	hb, _ := SourceHash(b)
	if ha == hb {
		t.Fatalf("renaming a file should change the hash")
	}
}
