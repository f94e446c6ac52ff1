package domain

// TestFailure represents a failed test case
type TestFailure struct {
	TestID     string `json:"test_id"`
	TestName   string `json:"test_name"`
	Suite      string `json:"suite"`
	FilePath   string `json:"file_path"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Action     string `json:"action,omitempty"`
	Location   string `json:"location,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Expected   string `json:"expected,omitempty"`
	Actual     string `json:"actual,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
	Resolved   bool   `json:"resolved,omitempty"` // Track if test case is marked as resolved
}
