package model

import "time"

// ScoringJob is an asynchronous scoring request flowing through the queue.
type ScoringJob struct {
	JobID      string    // unique id for tracing
	SessionID  string    // session to score
	EnqueuedAt time.Time // time the job was accepted
}
