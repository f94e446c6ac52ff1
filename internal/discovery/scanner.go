package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Scanner scans for suite files in a directory
type Scanner struct {
	suffix   string
	skipDirs map[string]bool
}

// NewScanner creates a new Scanner for files ending in suffix, skipping the given directories
func NewScanner(suffix string, skipDirs []string) *Scanner {
	skipMap := make(map[string]bool)
	for _, dir := range skipDirs {
		skipMap[dir] = true
	}
	return &Scanner{suffix: suffix, skipDirs: skipMap}
}

// Scan finds all suite files in the given root directory, sorted by path
func (s *Scanner) Scan(root string) ([]string, error) {
	var specFiles []string

	// Clean and validate the root path
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("spec path does not exist: %s", root)
	}
	if !info.IsDir() {
		if strings.HasSuffix(info.Name(), s.suffix) {
			return []string{root}, nil
		}
		return nil, fmt.Errorf("spec path is not a directory or suite file: %s", root)
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			// Skip hidden directories (starting with .)
			if strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}

			if s.skipDirs[name] {
				return filepath.SkipDir
			}

			return nil
		}

		if strings.HasSuffix(d.Name(), s.suffix) {
			specFiles = append(specFiles, path)
		}

		return nil
	})

	sort.Strings(specFiles)
	return specFiles, err
}
