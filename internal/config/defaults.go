package config

import "time"

const (
	// DefaultProjectPath is the default project path
	DefaultProjectPath = "."
	// DefaultSpecPath is where suite files are discovered
	DefaultSpecPath = "e2e"
	// DefaultSpecSuffix identifies suite files
	DefaultSpecSuffix = ".e2e.hcl"
	// DefaultBaseURL is the site under test
	DefaultBaseURL = "https://horadoqa.com.br"
	// DefaultResultsDir receives the Allure result files
	DefaultResultsDir = "allure-results"
	// DefaultSupportFile is loaded once before any test case runs
	DefaultSupportFile = "e2e/support/e2e.hcl"
	// DefaultSummaryDir and DefaultSummaryFile hold the last run summary
	DefaultSummaryDir  = ".hqe"
	DefaultSummaryFile = "last-run.json"
	// DefaultWorkers is the default number of parallel test cases
	DefaultWorkers = 1
	// DefaultCommandTimeout bounds how long an assertion keeps retrying
	DefaultCommandTimeout = 4 * time.Second
	// DefaultPageLoadTimeout bounds a single visit
	DefaultPageLoadTimeout = 60 * time.Second
	// DefaultDriver and DefaultBrowser select the automation backend
	DefaultDriver  = "playwright"
	DefaultBrowser = "chromium"

	// DefaultConfigName is looked up as hqe.yaml in the project path
	DefaultConfigName = "hqe"
	// EnvPrefix prefixes every environment override, e.g. HQE_BASE_URL
	EnvPrefix = "HQE"
)

// DefaultPathsToIgnore are directories skipped when scanning for suites
var DefaultPathsToIgnore = []string{
	"node_modules",
	"vendor",
	"support",
	"allure-results",
	"allure-report",
}
