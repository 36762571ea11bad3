package ledger

import "time"

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning Status = "running"
	StatusFailed  Status = "failed"
	StatusDone    Status = "done"
)

// EventStatus is the outcome recorded for one stage pass.
type EventStatus string

const (
	EventStarted   EventStatus = "started"
	EventCompleted EventStatus = "completed"
	EventFailed    EventStatus = "failed"
)

// Run is one scene production.
type Run struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	Stage        string    `json:"stage"`
	Wave         int       `json:"wave"`
	Workspace    string    `json:"workspace"`
	Idea         string    `json:"idea,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StageEvent is one row of a run's stage history.
type StageEvent struct {
	ID        int64         `json:"id"`
	RunID     string        `json:"run_id"`
	Stage     string        `json:"stage"`
	Wave      int           `json:"wave"`
	Status    EventStatus   `json:"status"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Artifact is a produced file attributed to a run.
type Artifact struct {
	RunID       string    `json:"run_id"`
	Handle      string    `json:"handle"`
	Kind        string    `json:"kind"`
	Source      string    `json:"source,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
