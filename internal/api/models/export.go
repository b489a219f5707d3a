package models

// ExportCreateRequest is the body for POST /v1/exports.
type ExportCreateRequest struct {
	// Start and End bound the window, formatted YYYY-MM-DDTHH:mm.
	Start string `json:"start"`
	End   string `json:"end"`

	// Aggregation is one of 15min, hourly, daily, monthly, yearly.
	Aggregation string `json:"aggregation"`

	// Cities are city labels, optionally qualified: "Delhi (Delhi)".
	Cities []string `json:"cities"`

	// Pollutants are source codes validated against the allow-list.
	Pollutants []string `json:"pollutants"`

	// Gaps and GapValue form the gap policy passed through to the
	// source. Defaults: 1 and "NULL".
	Gaps     int    `json:"gaps,omitempty"`
	GapValue string `json:"gapValue,omitempty"`
}

// ExportJob is returned when a job is accepted.
type ExportJob struct {
	JobID     string    `json:"jobId"`
	File      string    `json:"file"`
	Status    string    `json:"status"`
	CreatedAt Timestamp `json:"createdAt"`
}

// ExportProgress is the poll response for a job.
type ExportProgress struct {
	JobID string `json:"jobId"`

	// Progress is 0-100, non-decreasing, and exactly 100 once the job
	// is terminal. Unknown job ids report 0.
	Progress int `json:"progress"`

	// Status distinguishes success from failure once progress hits 100.
	Status string `json:"status"`

	// Reason carries the failure detail for failed jobs.
	Reason string `json:"reason,omitempty"`
}
