package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"hqe/internal/config"
	"hqe/internal/discovery"
	"hqe/internal/domain"
	"hqe/internal/storage"

	"github.com/fatih/color"
)

// Formatter formats and displays output
type Formatter struct {
	config  *config.Config
	parser  *discovery.Parser
	storage storage.Storage
	out     io.Writer
}

// NewFormatter creates a new Formatter writing to stdout
func NewFormatter(cfg *config.Config, parser *discovery.Parser, st storage.Storage) *Formatter {
	return &Formatter{
		config:  cfg,
		parser:  parser,
		storage: st,
		out:     color.Output,
	}
}

// SetOutput redirects the formatter, e.g. to a buffer in tests
func (f *Formatter) SetOutput(w io.Writer) {
	f.out = w
}

func (f *Formatter) printf(c *color.Color, format string, args ...any) {
	if c == nil {
		fmt.Fprintf(f.out, format, args...)
		return
	}
	c.Fprintf(f.out, format, args...)
}

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	white  = color.New(color.FgWhite)
	gray   = color.New(color.FgHiBlack)
)

// PrintMetaStats reads the last run summary and displays it
func (f *Formatter) PrintMetaStats() error {
	output, err := f.storage.Load()
	if err != nil {
		return err
	}
	meta := output.Meta

	// Print header
	f.printf(nil, "\n")
	f.printf(cyan, "╔═══════════════════════════════════════════════════════════════╗\n")
	f.printf(cyan, "║                    Test Execution Statistics                  ║\n")
	f.printf(cyan, "╚═══════════════════════════════════════════════════════════════╝\n\n")

	// Print table
	rows := []struct {
		label string
		value string
		c     *color.Color
	}{
		{"Base URL", meta.BaseURL, white},
		{"Spec Files", fmt.Sprint(meta.SpecFiles), white},
		{"Total Test Cases", fmt.Sprint(meta.TotalTestCases), white},
		{"Passed Test Cases", fmt.Sprint(meta.PassedTestCases), green},
		{"Failed Test Cases", fmt.Sprint(meta.FailedTestCases), red},
		{"Duration", fmt.Sprintf("%.2fs", meta.DurationSeconds), white},
		{"Workers", fmt.Sprint(meta.Workers), white},
		{"Timestamp", meta.Timestamp, white},
	}
	f.printf(nil, "┌─────────────────────────────────┬─────────────────────────────┐\n")
	for i, row := range rows {
		f.printf(nil, "│ %-31s │ ", row.label)
		f.printf(row.c, "%-27s", truncate(row.value, 27))
		f.printf(nil, " │\n")
		if i < len(rows)-1 {
			f.printf(nil, "├─────────────────────────────────┼─────────────────────────────┤\n")
		}
	}
	f.printf(nil, "└─────────────────────────────────┴─────────────────────────────┘\n")

	// Print summary line
	f.printf(nil, "\n")
	if meta.FailedTestCases == 0 {
		f.printf(green, "✓ All %d test case(s) passed!\n", meta.TotalTestCases)
		return nil
	}
	f.printf(red, "✗ %d of %d test case(s) failed\n\n", meta.FailedTestCases, meta.TotalTestCases)
	f.printFailedTestsTree(output.Details)
	return nil
}

// TreeNode represents a node in the file tree structure
type TreeNode struct {
	Name     string
	Children map[string]*TreeNode
	Failures []domain.TestFailure
	IsFile   bool
}

// printFailedTestsTree prints failures grouped by spec file, with the
// failing action and the expected and observed values.
func (f *Formatter) printFailedTestsTree(failures []domain.TestFailure) {
	if len(failures) == 0 {
		return
	}

	root := &TreeNode{Children: make(map[string]*TreeNode)}
	for _, failure := range failures {
		rel := f.relPath(failure.FilePath)
		parts := strings.Split(filepath.ToSlash(rel), "/")
		current := root
		for i, part := range parts {
			if part == "" || part == "." {
				continue
			}
			if current.Children[part] == nil {
				current.Children[part] = &TreeNode{
					Name:     part,
					Children: make(map[string]*TreeNode),
					IsFile:   i == len(parts)-1,
				}
			}
			current = current.Children[part]
		}
		current.Failures = append(current.Failures, failure)
	}
	f.printTreeNode(root, "")
}

func (f *Formatter) printTreeNode(node *TreeNode, prefix string) {
	keys := make([]string, 0, len(node.Children))
	for key := range node.Children {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for i, key := range keys {
		child := node.Children[key]
		last := i == len(keys)-1
		connector, childPrefix := "├── ", prefix+"│   "
		if last {
			connector, childPrefix = "└── ", prefix+"    "
		}

		if child.IsFile {
			f.printf(yellow, "%s%s%s\n", prefix, connector, child.Name)
			for j, failure := range child.Failures {
				f.printFailure(childPrefix, failure, j == len(child.Failures)-1)
			}
		} else {
			f.printf(cyan, "%s%s%s\n", prefix, connector, child.Name)
		}
		f.printTreeNode(child, childPrefix)
	}
}

func (f *Formatter) printFailure(prefix string, failure domain.TestFailure, last bool) {
	connector, detail := "├── ", prefix+"│     "
	if last {
		connector, detail = "└── ", prefix+"      "
	}
	name := failure.TestName
	if failure.Suite != "" {
		name = failure.Suite + " › " + failure.TestName
	}
	f.printf(red, "%s%s%s\n", prefix, connector, name)
	f.printf(gray, "%s%s", detail, failure.Kind)
	if failure.Location != "" {
		f.printf(gray, " at %s", failure.Location)
	}
	f.printf(nil, "\n")
	if failure.Expected != "" {
		f.printf(nil, "%sexpected %s to include ", detail, failure.Subject)
		f.printf(green, "%q\n", failure.Expected)
		f.printf(nil, "%sbut got ", detail)
		f.printf(red, "%q\n", failure.Actual)
	} else {
		f.printf(nil, "%s%s\n", detail, failure.Message)
	}
	if failure.Screenshot != "" {
		f.printf(gray, "%sscreenshot: %s\n", detail, failure.Screenshot)
	}
}

// PrintRunResult prints one line per finished case, used with --log-level debug
// where the progress bar is hidden.
func (f *Formatter) PrintRunResult(r domain.CaseResult) {
	if r.Passed() {
		f.printf(green, "  ✓ ")
		f.printf(nil, "%s ", r.Case.FullName())
		f.printf(gray, "(%s)\n", r.Duration().Round(time.Millisecond))
		return
	}
	f.printf(red, "  ✗ %s\n", r.Case.FullName())
}

// CountTestCases returns the total number of test cases across the given suite files.
func (f *Formatter) CountTestCases(files []string) (int, error) {
	var total int
	for _, file := range files {
		cases, err := f.parser.FindTestCases(file)
		if err != nil {
			return 0, err
		}
		total += len(cases)
	}
	return total, nil
}

func (f *Formatter) relPath(path string) string {
	if rel, err := filepath.Rel(f.config.ProjectPath, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

// NormalizedPathKey returns a path key for matching summary entries to
// discovered files.
func NormalizedPathKey(projectPath, path string) string {
	p := path
	if projectPath != "" {
		if rel, err := filepath.Rel(projectPath, path); err == nil && !strings.HasPrefix(rel, "..") {
			p = rel
		}
	}
	return strings.ToLower(filepath.ToSlash(p))
}

// PrintTestList prints suite files, optionally with their test cases.
// Files in failedPaths (keys from NormalizedPathKey) are marked with [F].
func (f *Formatter) PrintTestList(files []string, showTestCases bool, failedPaths map[string]struct{}) error {
	if showTestCases {
		f.printf(green, "Found %d suite file(s) with test cases:\n\n", len(files))
	} else {
		f.printf(green, "Found %d suite file(s):\n\n", len(files))
	}

	for i, file := range files {
		failMarker := ""
		if _, ok := failedPaths[NormalizedPathKey(f.config.ProjectPath, file)]; ok {
			failMarker = " " + red.Sprint("[F]")
		}

		lastFile := i == len(files)-1
		connector, childPrefix := "├── ", "│   "
		if lastFile {
			connector, childPrefix = "└── ", "    "
		}
		f.printf(cyan, "%s%s", connector, f.relPath(file))
		f.printf(nil, "%s\n", failMarker)

		if !showTestCases {
			continue
		}
		testCases, err := f.parser.FindTestCases(file)
		if err != nil {
			f.printf(red, "%s└── error reading suite file: %v\n", childPrefix, err)
			continue
		}
		if len(testCases) == 0 {
			f.printf(red, "%s└── (no test cases found)\n", childPrefix)
		}
		for j, testCase := range testCases {
			caseConnector := "├── "
			if j == len(testCases)-1 {
				caseConnector = "└── "
			}
			f.printf(nil, "%s%s", childPrefix, caseConnector)
			f.printf(yellow, "%s\n", testCase)
		}
		if !lastFile {
			f.printf(nil, "\n")
		}
	}
	return nil
}

// PrintHistory prints recent runs and the cases whose status changed between runs.
func (f *Formatter) PrintHistory(runs []domain.RunRecord, flaky []domain.FlakyCase) {
	f.printf(cyan, "Recent runs:\n")
	if len(runs) == 0 {
		f.printf(gray, "  (no runs recorded)\n")
	}
	for _, r := range runs {
		started := time.UnixMilli(r.StartedAt).Format(time.RFC3339)
		c := green
		if r.Failed > 0 {
			c = red
		}
		f.printf(nil, "  %s  %s  ", started, r.ID[:min(8, len(r.ID))])
		f.printf(c, "%d/%d passed", r.Total-r.Failed, r.Total)
		if r.FinishedAt > r.StartedAt {
			f.printf(gray, "  %s", (time.Duration(r.FinishedAt-r.StartedAt) * time.Millisecond).String())
		}
		f.printf(nil, "  %s\n", r.BaseURL)
	}

	f.printf(nil, "\n")
	if len(flaky) == 0 {
		f.printf(green, "✓ No flaky test cases\n")
		return
	}
	f.printf(yellow, "Flaky test cases (status changed between runs):\n")
	for _, c := range flaky {
		f.printf(nil, "  %s  ", c.FullName)
		f.printf(green, "%d passed", c.Passed)
		f.printf(nil, " / ")
		f.printf(red, "%d failed", c.Failed)
		f.printf(gray, " in %d runs\n", c.Runs)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
