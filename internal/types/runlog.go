package types

import "time"

// RunLogStatus is the lifecycle status of one distributor within a run.
type RunLogStatus string

const (
	RunLogStarted   RunLogStatus = "started"
	RunLogCompleted RunLogStatus = "completed"
	RunLogFailed    RunLogStatus = "failed"
)

// RunLog records one (run, distributor) pair.
type RunLog struct {
	ID              string        `json:"id"`
	RunID           string        `json:"run_id"`
	Distributor     string        `json:"distributor"`
	Status          RunLogStatus  `json:"status"`
	ProductsFound   int           `json:"products_found"`
	ProductsUpdated int           `json:"products_updated"`
	ProductsNew     int           `json:"products_new"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// Finish closes the log with the given outcome. A nil err marks it completed.
func (l *RunLog) Finish(at time.Time, err error) {
	l.CompletedAt = &at
	l.Duration = at.Sub(l.StartedAt)
	if err != nil {
		l.Status = RunLogFailed
		l.ErrorMessage = err.Error()
		return
	}
	l.Status = RunLogCompleted
}

// RunStatus is the live, process-wide state of the orchestrator. It is never persisted.
type RunStatus struct {
	Running            bool       `json:"is_running"`
	RunID              string     `json:"run_id,omitempty"`
	Progress           int        `json:"progress"`
	CurrentDistributor string     `json:"current_distributor"`
	TotalProducts      int        `json:"total_products"`
	CompletedProducts  int        `json:"completed_products"`
	TotalUpdated       int        `json:"total_updated"`
	TotalNew           int        `json:"total_new"`
	StartTime          *time.Time `json:"start_time"`
	EndTime            *time.Time `json:"end_time"`
	Error              string     `json:"error,omitempty"`
}
