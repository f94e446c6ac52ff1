package discovery

import (
	"path/filepath"
	"strings"

	"hqe/internal/domain"
)

// Filter filters suite files and test cases
type Filter struct{}

// NewFilter creates a new Filter
func NewFilter() *Filter {
	return &Filter{}
}

// FilterByName filters suite files by name pattern using wildcard matching
// Supports patterns like "*home.e2e.hcl" or "*regression*"
func (f *Filter) FilterByName(files []string, pattern string) []string {
	if pattern == "" {
		return files
	}

	var filtered []string

	for _, file := range files {
		name := filepath.Base(file)

		// filepath.Match supports * and ? wildcards
		matched, err := filepath.Match(pattern, name)
		if err == nil && matched {
			filtered = append(filtered, file)
			continue
		}

		// Patterns like "*home*" also match against the path so a directory
		// name such as "regression" can select its suites.
		if strings.Contains(pattern, "*") {
			if matchParts(file, strings.Split(pattern, "*")) {
				filtered = append(filtered, file)
			}
			continue
		}

		if !strings.Contains(pattern, "?") && strings.Contains(file, pattern) {
			filtered = append(filtered, file)
		}
	}

	return filtered
}

// matchParts reports whether every non-empty part occurs in s, and at least one part is non-empty.
func matchParts(s string, parts []string) bool {
	nonEmpty := false
	for _, part := range parts {
		if part == "" {
			continue
		}
		nonEmpty = true
		if !strings.Contains(s, part) {
			return false
		}
	}
	return nonEmpty
}

// FilterCases keeps test cases whose full name contains grep and that carry
// every tag in tags. Empty criteria keep everything.
func (f *Filter) FilterCases(cases []domain.TestCase, grep string, tags []string) []domain.TestCase {
	if grep == "" && len(tags) == 0 {
		return cases
	}

	var filtered []domain.TestCase
	for _, tc := range cases {
		if grep != "" && !strings.Contains(strings.ToLower(tc.FullName()), strings.ToLower(grep)) {
			continue
		}
		keep := true
		for _, tag := range tags {
			if !tc.HasTag(tag) {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, tc)
		}
	}
	return filtered
}
