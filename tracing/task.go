package tracing

import "time"

// A TaskStep represents a milestone in the processing of task
type TaskStep struct {
	Time   time.Time `json:"time"`
	What   string    `json:"what"`
	Detail any       `json:"-"`
}

// A Task is a unit of work performed by a domain, such as one read issued
// to a device.
type Task struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	What      string     `json:"what"`
	Where     string     `json:"where"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	Steps     []TaskStep `json:"steps"`
	Outcome   string     `json:"outcome"`
	Err       error      `json:"-"`
	Detail    any        `json:"-"`
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool
