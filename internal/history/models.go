package history

import "time"

// Record represents a single build, push or revert attempt in the journal
type Record struct {
	ID              int64
	Environment     string
	Action          string // build, set, revert
	Branch          string
	SHA             string
	PrevRevision    *string // nullable; branch:SHA before the attempt
	NewRevision     *string // nullable; branch:SHA requested
	Status          string  // success, failed, declined
	StartedAt       time.Time
	CompletedAt     *time.Time // nullable
	DurationSeconds *float64   // nullable
	ErrorMessage    *string    // nullable
}

// EnvironmentStatus represents the latest journal state of one environment
type EnvironmentStatus struct {
	Environment   string   `json:"environment"`
	LatestAttempt *Record  `json:"latest_attempt,omitempty"`
	RecentHistory []Record `json:"recent_history"`
}
