package cli

import "hqe/internal/config"

// Flags holds command-line flags
type Flags struct {
	// Global
	ConfigFile  string
	ProjectPath string
	LogLevel    string
	LogFormat   string

	// Selection
	SpecPath   string
	NameFilter string
	Grep       string
	Tags       []string
	TestCases  bool

	// Run
	Workers      int
	BaseURL      string
	ResultsDir   string
	Driver       string
	Browser      string
	Headed       bool
	Bail         bool
	Migrate      bool
	Fresh        bool
	OpenFailures bool

	// History
	HistoryLimit int
}

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		ConfigFile:   f.ConfigFile,
		ProjectPath:  f.ProjectPath,
		SpecPath:     f.SpecPath,
		NameFilter:   f.NameFilter,
		Grep:         f.Grep,
		Tags:         append([]string(nil), f.Tags...),
		Workers:      f.Workers,
		BaseURL:      f.BaseURL,
		ResultsDir:   f.ResultsDir,
		Driver:       f.Driver,
		Browser:      f.Browser,
		Headed:       f.Headed,
		Bail:         f.Bail,
		Migrate:      f.Migrate,
		Fresh:        f.Fresh,
		TestCases:    f.TestCases,
		OpenFailures: f.OpenFailures,
		HistoryLimit: f.HistoryLimit,
		LogLevel:     f.LogLevel,
		LogFormat:    f.LogFormat,
	}
}
