package report

// Allure result file schema (allure2 `*-result.json`).

const (
	stageRunning  = "running"
	stageFinished = "finished"
)

// Result is one test case result file
type Result struct {
	UUID          string         `json:"uuid"`
	HistoryID     string         `json:"historyId"`
	TestCaseID    string         `json:"testCaseId"`
	Name          string         `json:"name"`
	FullName      string         `json:"fullName"`
	Status        string         `json:"status"`
	StatusDetails *StatusDetails `json:"statusDetails,omitempty"`
	Stage         string         `json:"stage"`
	Steps         []Step         `json:"steps"`
	Labels        []Label        `json:"labels"`
	Parameters    []Parameter    `json:"parameters"`
	Attachments   []Attachment   `json:"attachments"`
	Start         int64          `json:"start"`
	Stop          int64          `json:"stop"`
}

// StatusDetails explains a failed status
type StatusDetails struct {
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

// Step is a narrative step of a test case
type Step struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Stage  string `json:"stage"`
	Start  int64  `json:"start"`
	Stop   int64  `json:"stop"`
}

type Label struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Attachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}
