package domain

// RunRecord is one stored run in the history database
type RunRecord struct {
	ID         string `db:"id"`
	BaseURL    string `db:"base_url"`
	StartedAt  int64  `db:"started_at"`
	FinishedAt int64  `db:"finished_at"`
	Total      int    `db:"total"`
	Failed     int    `db:"failed"`
}

// FlakyCase is a test case whose terminal status differed across runs
type FlakyCase struct {
	CaseID   string `db:"case_id"`
	FullName string `db:"full_name"`
	Runs     int    `db:"runs"`
	Passed   int    `db:"passed"`
	Failed   int    `db:"failed"`
}
