package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanner_Scan(t *testing.T) {
	// Create a temporary directory structure for testing
	tmpDir, err := os.MkdirTemp("", "hqe-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Create spec directory structure
	specDirs := []string{
		"e2e/regression",
		"e2e/smoke",
		"e2e/support",
		"node_modules",
		".cache",
	}
	for _, dir := range specDirs {
		if err := os.MkdirAll(filepath.Join(tmpDir, dir), 0755); err != nil {
			t.Fatalf("failed to create dir %s: %v", dir, err)
		}
	}

	// Create suite files
	specFiles := []string{
		"e2e/home.e2e.hcl",
		"e2e/regression/home.e2e.hcl",
		"e2e/smoke/blog.e2e.hcl",
		"e2e/support/e2e.hcl",
		"e2e/support/extra.e2e.hcl",
		"node_modules/pkg/x.e2e.hcl",
		".cache/old.e2e.hcl",
		"e2e/notes.txt",
	}
	for _, file := range specFiles {
		fullPath := filepath.Join(tmpDir, file)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create dir for %s: %v", file, err)
		}
		if err := os.WriteFile(fullPath, []byte("# suite"), 0644); err != nil {
			t.Fatalf("failed to create file %s: %v", file, err)
		}
	}

	scanner := NewScanner(".e2e.hcl", []string{"node_modules", "support"})

	t.Run("scans suite files correctly", func(t *testing.T) {
		results, err := scanner.Scan(tmpDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Should find 3 suite files, not the ones in support/node_modules/hidden dirs
		if len(results) != 3 {
			t.Errorf("expected 3 suite files, got %d: %v", len(results), results)
		}
	})

	t.Run("results are sorted", func(t *testing.T) {
		results, err := scanner.Scan(filepath.Join(tmpDir, "e2e"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := 1; i < len(results); i++ {
			if results[i-1] > results[i] {
				t.Errorf("results not sorted: %v", results)
			}
		}
	})

	t.Run("accepts a single suite file", func(t *testing.T) {
		file := filepath.Join(tmpDir, "e2e/home.e2e.hcl")
		results, err := scanner.Scan(file)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 1 || results[0] != file {
			t.Errorf("expected [%s], got %v", file, results)
		}
	})

	t.Run("returns error for non-existent directory", func(t *testing.T) {
		_, err := scanner.Scan("/non/existent/path")
		if err == nil {
			t.Error("expected error for non-existent directory")
		}
	})

	t.Run("returns error for a file that is not a suite", func(t *testing.T) {
		_, err := scanner.Scan(filepath.Join(tmpDir, "e2e/notes.txt"))
		if err == nil {
			t.Error("expected error for file path")
		}
	})
}
