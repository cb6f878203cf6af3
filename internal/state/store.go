// Package state implements the Batch State Machine: a durable, resumable
// per-batch record of attack progress, held as a mutex-guarded in-memory
// map and persisted atomically to disk after every mutation, since this
// map is the one piece of global mutable state in the whole pipeline and
// must survive a crash.
package state

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rawblock/gravelpit/internal/failure"
	"github.com/rawblock/gravelpit/pkg/models"
)

const documentVersion = 1

// Store holds the in-memory StateDocument and persists it to path on every
// mutating call.
type Store struct {
	mu   sync.RWMutex
	path string
	doc  *models.StateDocument

	// checkpointEvery limits how often Distributor-style batch loops force
	// a write; 0 means every mutation is flushed immediately.
	checkpointEvery int
	sinceFlush      int
}

// Open loads the state document at path, or creates a fresh one if it
// doesn't exist. A StateCorruption failure aborts startup without
// attempting automatic repair, per the propagation policy.
func Open(path string) (*Store, error) {
	doc := &models.StateDocument{
		Version:   documentVersion,
		StartedAt: time.Now(),
		Batches:   make(map[string]*models.BatchState),
	}
	existed, err := readDocument(path, doc)
	if err != nil {
		return nil, failure.New(failure.StateCorruption, err)
	}
	if !existed {
		log.Printf("[State] No existing state document at %s, starting fresh", path)
	} else {
		log.Printf("[State] Loaded state document with %d batches from %s", len(doc.Batches), path)
	}
	if doc.Batches == nil {
		doc.Batches = make(map[string]*models.BatchState)
	}
	return &Store{path: path, doc: doc}, nil
}

// SetCheckpointInterval configures how many mutations may accumulate
// before a write is forced, bounding lost work on crash to K batches
// during long Distributor passes.
func (s *Store) SetCheckpointInterval(k int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpointEvery = k
}

func (s *Store) flushLocked(force bool) error {
	s.sinceFlush++
	if !force && s.checkpointEvery > 0 && s.sinceFlush < s.checkpointEvery {
		return nil
	}
	s.sinceFlush = 0
	s.doc.LastUpdated = time.Now()
	return writeAtomic(s.path, s.doc)
}

// Flush forces an immediate persist regardless of the checkpoint interval.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(true)
}

func batchKey(batchID uint32) string {
	return fmt.Sprintf("%04d", batchID)
}

// Init creates a pending record for batchID if one doesn't already exist.
// Idempotent.
func (s *Store) Init(batchID uint32, hashCount int, defaultAttackOrder []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := batchKey(batchID)
	if _, exists := s.doc.Batches[key]; exists {
		return nil
	}

	remaining := make([]string, len(defaultAttackOrder))
	copy(remaining, defaultAttackOrder)

	s.doc.Batches[key] = &models.BatchState{
		HashlistID:       key,
		HashCount:        hashCount,
		Status:           models.StatusPending,
		AttacksApplied:   []string{},
		AttacksRemaining: remaining,
		AttackResults:    []models.AttackResult{},
	}
	return s.flushLocked(false)
}

// Get returns a copy-free pointer to the batch record, or nil if absent.
// Callers must not mutate fields directly; use the Store's operations.
func (s *Store) Get(batchID uint32) *models.BatchState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Batches[batchKey(batchID)]
}

// StartAttack transitions the batch to in-progress and records the
// executor's correlation reference (e.g. a tmux session name) so a
// subsequent resume can find the running attempt.
func (s *Store) StartAttack(batchID uint32, attackName, externalRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.doc.Batches[batchKey(batchID)]
	if !ok {
		return failure.WithBatch(failure.StateCorruption, batchKey(batchID), fmt.Errorf("no record for batch"))
	}
	b.Status = models.StatusInProgress
	b.SetExternalRef(externalRef)
	return s.flushLocked(false)
}

// CompleteAttack appends an AttackResult, moves attackName from
// attacksRemaining to attacksApplied, and adds newCracks to the cumulative
// total. If attacksRemaining becomes empty the batch transitions to
// completed. Enforces attack-uniqueness: a name already in attacksApplied
// is not appended twice.
func (s *Store) CompleteAttack(batchID uint32, attackName string, newCracks int, durationSeconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := batchKey(batchID)
	b, ok := s.doc.Batches[key]
	if !ok {
		return failure.WithBatch(failure.StateCorruption, key, fmt.Errorf("no record for batch"))
	}

	for _, applied := range b.AttacksApplied {
		if applied == attackName {
			log.Printf("[State] attack %s already applied to batch %s, ignoring duplicate completion", attackName, key)
			return nil
		}
	}

	b.AttackResults = append(b.AttackResults, models.AttackResult{
		Attack:          attackName,
		NewCracks:       newCracks,
		DurationSeconds: durationSeconds,
		CompletedAt:     time.Now(),
	})
	b.AttacksApplied = append(b.AttacksApplied, attackName)
	b.AttacksRemaining = removeFirst(b.AttacksRemaining, attackName)
	b.Cracked += newCracks

	if len(b.AttacksRemaining) == 0 {
		b.Status = models.StatusCompleted
	}

	return s.flushLocked(false)
}

// UpdateCracked sets the cumulative cracked count directly — used by the
// Distributor when it has just computed the authoritative partition size.
func (s *Store) UpdateCracked(batchID uint32, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := batchKey(batchID)
	b, ok := s.doc.Batches[key]
	if !ok {
		return failure.WithBatch(failure.StateCorruption, key, fmt.Errorf("no record for batch"))
	}
	if total < b.Cracked {
		log.Printf("[State] WARNING: UpdateCracked(%s, %d) would decrease cracked count from %d, ignoring", key, total, b.Cracked)
		return nil
	}
	b.Cracked = total
	return s.flushLocked(false)
}

// RecordFeedback stores the Feedback Emitter's per-batch discovery summary.
func (s *Store) RecordFeedback(batchID uint32, summary models.FeedbackSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := batchKey(batchID)
	b, ok := s.doc.Batches[key]
	if !ok {
		return failure.WithBatch(failure.StateCorruption, key, fmt.Errorf("no record for batch"))
	}
	b.Feedback = &summary
	return s.flushLocked(false)
}

// IsAttackApplied reports whether attackName is already in
// attacksApplied[batchID].
func (s *Store) IsAttackApplied(batchID uint32, attackName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.doc.Batches[batchKey(batchID)]
	if !ok {
		return false
	}
	for _, a := range b.AttacksApplied {
		if a == attackName {
			return true
		}
	}
	return false
}

// AttackStats summarizes one attack's observed effectiveness across all
// batches, used by ReorderAttacks.
type AttackStats struct {
	Name            string
	TotalNewCracks  int
	TotalDuration   float64
	TimesApplied    int
}

// StatsProvider computes per-attack effectiveness from the accumulated
// AttackResults across all batches.
func (s *Store) StatsProvider() map[string]AttackStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]AttackStats)
	for _, b := range s.doc.Batches {
		for _, r := range b.AttackResults {
			st := stats[r.Attack]
			st.Name = r.Attack
			st.TotalNewCracks += r.NewCracks
			st.TotalDuration += r.DurationSeconds
			st.TimesApplied++
			stats[r.Attack] = st
		}
	}
	return stats
}

// ReorderAttacks reorders attacksRemaining for batchID by the
// caller-supplied rank, highest first (sequencer.CrackRate builds such a
// rank from crack-rate ÷ duration). Only attacksRemaining is touched, so
// applied attacks are never discarded or re-introduced.
func (s *Store) ReorderAttacks(batchID uint32, rank func(name string) float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := batchKey(batchID)
	b, ok := s.doc.Batches[key]
	if !ok {
		return failure.WithBatch(failure.StateCorruption, key, fmt.Errorf("no record for batch"))
	}

	remaining := make([]string, len(b.AttacksRemaining))
	copy(remaining, b.AttacksRemaining)

	sortBy(remaining, func(a, bb string) bool {
		return rank(a) > rank(bb)
	})
	b.AttacksRemaining = remaining
	return s.flushLocked(false)
}

// Snapshot returns a read-only copy of the current state document, keyed by
// batch id string, for external read-mostly consumers (the status API)
// that must never be able to mutate the live document through what they
// were handed.
func (s *Store) Snapshot() models.StateDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batches := make(map[string]*models.BatchState, len(s.doc.Batches))
	for k, b := range s.doc.Batches {
		cp := *b
		cp.AttacksApplied = append(make([]string, 0, len(b.AttacksApplied)), b.AttacksApplied...)
		cp.AttacksRemaining = append(make([]string, 0, len(b.AttacksRemaining)), b.AttacksRemaining...)
		cp.AttackResults = append(make([]models.AttackResult, 0, len(b.AttackResults)), b.AttackResults...)
		if b.Feedback != nil {
			fb := *b.Feedback
			cp.Feedback = &fb
		}
		batches[k] = &cp
	}
	return models.StateDocument{
		Version:     s.doc.Version,
		LastUpdated: s.doc.LastUpdated,
		StartedAt:   s.doc.StartedAt,
		Batches:     batches,
	}
}

func removeFirst(list []string, target string) []string {
	out := make([]string, 0, len(list))
	removed := false
	for _, v := range list {
		if !removed && v == target {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out
}

// sortBy is a tiny stable insertion sort — the attack lists involved are
// small (tens of recipes at most), so this file does not import "sort".
func sortBy(list []string, less func(a, b string) bool) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && less(list[j], list[j-1]); j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
}
