package shell

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestGlob(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Image.gz-dtb", "Image.gz-dtb.old", "notes.txt"} {
		err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600)
		if err != nil {
			t.Fatal(err)
		}
	}

	matches, err := Glob(dir, []string{"Image.gz-dtb*"})
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}

	sort.Strings(matches)
	expected := []string{
		filepath.ToSlash(filepath.Join(dir, "Image.gz-dtb")),
		filepath.ToSlash(filepath.Join(dir, "Image.gz-dtb.old")),
	}
	if len(matches) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, matches)
	}
	for idx, match := range expected {
		if matches[idx] != match {
			t.Errorf("match %d: expected %s, got %s", idx, match, matches[idx])
		}
	}
}

func TestGlobNoMatches(t *testing.T) {
	matches, err := Glob(t.TempDir(), []string{"Image.gz-dtb*"})
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}

	if len(matches) != 0 {
		t.Errorf("expected no matches, got %v", matches)
	}
}
