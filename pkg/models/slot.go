package models

// WorkerSlot is a unit of execution concurrency bound to at most one running trial.
type WorkerSlot struct {
	ID      int  `json:"id"`
	Busy    bool `json:"busy"`
	TrialID *int `json:"trial_id,omitempty"`
}
