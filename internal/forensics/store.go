// Package forensics is a Postgres-backed analytics store that durably
// mirrors cracked records, attack results, and root/cohort assignments for
// ad-hoc SQL querying across iterations. It is secondary to the state
// document: nothing in the orchestration path reads it back.
package forensics

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/gravelpit/pkg/models"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens the connection pool and verifies it with a ping.
func Connect(ctx context.Context, connStr string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to forensics database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes schema.sql, idempotently.
func (s *Store) InitSchema(ctx context.Context) error {
	schemaBytes, err := os.ReadFile("internal/forensics/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read forensics schema file: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute forensics schema migrations: %w", err)
	}
	return nil
}

// RecordCracked batch-inserts cracked records (PEARLs or DIAMONDs) for one
// batch, tagged with the caller-supplied source label. The orchestrator
// passes the recipe name for a consolidated-chunk attack and the literal
// "attack" for per-batch reconciliation, whose Reconciler call does not
// carry the attack name. Duplicate (batch, hash) pairs are
// ignored rather than erroring, since a batch's attacks may legitimately
// overlap on a hash if the caller replays a crackedlog append.
func (s *Store) RecordCracked(ctx context.Context, batchID uint32, records []models.CrackedRecord, source string) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const sql = `
		INSERT INTO cracked_records (batch_id, hash, plain, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (batch_id, hash) DO NOTHING;
	`
	for _, r := range records {
		if _, err := tx.Exec(ctx, sql, batchID, string(r.Hash), r.Plain, source); err != nil {
			return fmt.Errorf("insert cracked_records: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// RecordAttackResult mirrors one AttackResult the sequencer just appended
// to the state document.
func (s *Store) RecordAttackResult(ctx context.Context, batchID uint32, result models.AttackResult) error {
	const sql = `
		INSERT INTO attack_results (batch_id, attack, new_cracks, duration_seconds, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (batch_id, attack) DO UPDATE
		SET new_cracks = EXCLUDED.new_cracks, duration_seconds = EXCLUDED.duration_seconds, completed_at = EXCLUDED.completed_at;
	`
	_, err := s.pool.Exec(ctx, sql, batchID, result.Attack, result.NewCracks, result.DurationSeconds, result.CompletedAt)
	return err
}

// RecordRootCohorts upserts a root's cohort assignments, incrementing
// frequency on conflict rather than overwriting it.
func (s *Store) RecordRootCohorts(ctx context.Context, root models.Root) error {
	if len(root.Cohorts) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const sql = `
		INSERT INTO root_cohorts (root, cohort, frequency)
		VALUES ($1, $2, $3)
		ON CONFLICT (root, cohort) DO UPDATE
		SET frequency = root_cohorts.frequency + EXCLUDED.frequency;
	`
	for _, cohort := range root.Cohorts {
		if _, err := tx.Exec(ctx, sql, root.Word, cohort, root.Frequency); err != nil {
			return fmt.Errorf("insert root_cohorts: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// CohortSummary is one row of the cohort-size report.
type CohortSummary struct {
	Cohort     string `json:"cohort"`
	RootCount  int    `json:"rootCount"`
	TotalFreq  int    `json:"totalFrequency"`
}

// CohortSummaries reports, per cohort, how many distinct roots have been
// assigned to it and their combined observed frequency — the query a
// human would run between iterations to decide which cohort wordlists are
// worth growing further.
func (s *Store) CohortSummaries(ctx context.Context) ([]CohortSummary, error) {
	const sql = `
		SELECT cohort, COUNT(DISTINCT root), COALESCE(SUM(frequency), 0)
		FROM root_cohorts
		GROUP BY cohort
		ORDER BY SUM(frequency) DESC;
	`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CohortSummary
	for rows.Next() {
		var c CohortSummary
		if err := rows.Scan(&c.Cohort, &c.RootCount, &c.TotalFreq); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// BatchCrackCount reports the cumulative number of cracked hashes recorded
// for a batch, independent of the state document — useful for verifying
// the two stores agree.
func (s *Store) BatchCrackCount(ctx context.Context, batchID uint32) (int, error) {
	const sql = `SELECT COUNT(*) FROM cracked_records WHERE batch_id = $1;`
	var count int
	err := s.pool.QueryRow(ctx, sql, batchID).Scan(&count)
	return count, err
}
