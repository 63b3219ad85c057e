package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/devteam/internal/domain"
	"github.com/Strob0t/devteam/internal/port/database"
)

// Compile-time interface check.
var _ database.Store = (*Store)(nil)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// inTx runs fn in a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Step results ---

func (s *Store) StepResult(ctx context.Context, workflowExecutionID, stepID string) (any, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT result FROM workflow_step_results WHERE workflow_execution_id = $1 AND step_id = $2`,
		workflowExecutionID, stepID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get step result %s/%s: %w", workflowExecutionID, stepID, err)
	}

	var result any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("unmarshal step result: %w", err)
	}
	return result, true, nil
}

// RecordStepResult stores the latest output of a workflow step.
func (s *Store) RecordStepResult(ctx context.Context, workflowExecutionID, stepID string, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal step result: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO workflow_step_results (workflow_execution_id, step_id, result, recorded_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (workflow_execution_id, step_id)
		 DO UPDATE SET result = EXCLUDED.result, recorded_at = EXCLUDED.recorded_at`,
		workflowExecutionID, stepID, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record step result %s/%s: %w", workflowExecutionID, stepID, err)
	}
	return nil
}

// statusConflict is returned by transitions when the row moved on.
func statusConflict(kind, id string, status any) error {
	return fmt.Errorf("transition %s %s: status %v: %w", kind, id, status, domain.ErrConflict)
}
