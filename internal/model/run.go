package model

import "time"

// RunStatus represents the outcome state of a recorded search run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusEmpty    RunStatus = "empty"
	RunStatusFailed   RunStatus = "failed"
)

// Run is the persisted record of one contact search.
type Run struct {
	ID        string         `json:"id"`
	Criteria  SearchCriteria `json:"criteria"`
	Status    RunStatus      `json:"status"`
	Contacts  []Contact      `json:"contacts,omitempty"`
	ErrorStep string         `json:"error_step,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
