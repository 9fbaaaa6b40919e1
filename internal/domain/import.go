package domain

import "time"

// ImportReport summarises one import run.
type ImportReport struct {
	RunID      string        `json:"run_id"`
	Source     string        `json:"source"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Rows       int           `json:"rows"`
	Imported   int           `json:"imported"`
	Skipped    int           `json:"skipped"`
	Warnings   []string      `json:"warnings,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// OK reports whether the run finished without a fatal error.
func (r ImportReport) OK() bool {
	return r.Error == ""
}
