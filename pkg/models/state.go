package models

import "time"

// BatchStatus is the lifecycle state of a batch's attack progress.
type BatchStatus string

const (
	StatusPending    BatchStatus = "pending"
	StatusInProgress BatchStatus = "in-progress"
	StatusCompleted  BatchStatus = "completed"
	StatusFailed     BatchStatus = "failed"
)

// AttackResult is appended to a BatchState each time an attack finishes.
type AttackResult struct {
	Attack          string    `json:"attack"`
	NewCracks       int       `json:"newCracks"`
	DurationSeconds float64   `json:"durationSeconds"`
	CompletedAt     time.Time `json:"completedAt"`
}

// FeedbackSummary is the per-batch feedback sub-record written back by the
// Feedback Emitter after it runs.
type FeedbackSummary struct {
	NewRootsDiscovered  int `json:"newRootsDiscovered"`
	HIBPPromoted        int `json:"hibpPromoted"`
	TotalDiscoveredRoots int `json:"totalDiscoveredRoots"`
	BetaSize            int `json:"betaSize"`
	NoCapPlusSize       int `json:"nocapPlusSize"`
	FeedbackCracks      int `json:"feedbackCracks"`
}

// BatchState is the per-batch record of attack progress, persisted as part
// of the single structured StateDocument.
type BatchState struct {
	HashlistID        string           `json:"hashlistId"`
	HashCount         int              `json:"hashCount"`
	Cracked           int              `json:"cracked"`
	Status            BatchStatus      `json:"status"`
	AttacksApplied    []string         `json:"attacksApplied"`
	AttacksRemaining  []string         `json:"attacksRemaining"`
	AttackResults     []AttackResult   `json:"attackResults"`
	Feedback          *FeedbackSummary `json:"feedback,omitempty"`
	activeExternalRef string           // not persisted: session/correlation id of the running attack
}

// ExternalRef returns the correlation reference recorded by the most recent
// StartAttack call, if any.
func (b *BatchState) ExternalRef() string { return b.activeExternalRef }

// SetExternalRef is used by the state store when starting an attack.
func (b *BatchState) SetExternalRef(ref string) { b.activeExternalRef = ref }

// StateDocument is the single structured document persisted atomically by
// the Batch State Machine.
type StateDocument struct {
	Version     int                    `json:"version"`
	LastUpdated time.Time              `json:"lastUpdated"`
	StartedAt   time.Time              `json:"startedAt"`
	Batches     map[string]*BatchState `json:"batches"`
}
