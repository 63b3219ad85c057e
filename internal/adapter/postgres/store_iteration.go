package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/devteam/internal/domain/iteration"
)

const iterationColumns = `id, workflow_execution_id, step_id, iteration_number, max_iterations, trigger,
	trigger_details, changes, status, collaboration_session_id, created_at, completed_at`

// CreateIteration inserts a session. The (execution, step, number) unique
// constraint turns a lost numbering race into domain.ErrConflict.
func (s *Store) CreateIteration(ctx context.Context, it *iteration.Session) error {
	changes, err := json.Marshal(it.Changes)
	if err != nil {
		return fmt.Errorf("marshal iteration changes: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO iteration_sessions (`+iterationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		it.ID, it.WorkflowExecutionID, it.StepID, it.IterationNumber, it.MaxIterations, it.Trigger,
		it.TriggerDetails, changes, it.Status, it.CollaborationSessionID, it.CreatedAt, it.CompletedAt)
	if err != nil {
		return wrapf(err, "create iteration %s:%s #%d", it.WorkflowExecutionID, it.StepID, it.IterationNumber)
	}
	return nil
}

func (s *Store) GetIteration(ctx context.Context, id string) (*iteration.Session, error) {
	it, err := scanIteration(s.pool.QueryRow(ctx,
		`SELECT `+iterationColumns+` FROM iteration_sessions WHERE id = $1`, id))
	if err != nil {
		return nil, wrapf(err, "get iteration %s", id)
	}
	return it, nil
}

func (s *Store) ListIterations(ctx context.Context, workflowExecutionID, stepID string) ([]iteration.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+iterationColumns+` FROM iteration_sessions
		 WHERE workflow_execution_id = $1 AND step_id = $2
		 ORDER BY iteration_number`, workflowExecutionID, stepID)
	if err != nil {
		return nil, fmt.Errorf("list iterations: %w", err)
	}
	defer rows.Close()

	var out []iteration.Session
	for rows.Next() {
		it, err := scanIteration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (s *Store) TransitionIteration(ctx context.Context, id string, from iteration.Status, fn func(*iteration.Session) error) (*iteration.Session, error) {
	var out *iteration.Session
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanIteration(tx.QueryRow(ctx,
			`SELECT `+iterationColumns+` FROM iteration_sessions WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return wrapf(err, "transition iteration %s", id)
		}
		if cur.Status != from {
			return statusConflict("iteration", id, cur.Status)
		}
		if err := fn(cur); err != nil {
			return err
		}

		changes, err := json.Marshal(cur.Changes)
		if err != nil {
			return fmt.Errorf("marshal iteration changes: %w", err)
		}
		tag, err := tx.Exec(ctx,
			`UPDATE iteration_sessions
			 SET changes = $2, status = $3, collaboration_session_id = $4, completed_at = $5
			 WHERE id = $1`,
			id, changes, cur.Status, cur.CollaborationSessionID, cur.CompletedAt)
		if err := expectOneRow(tag, err, "update iteration %s", id); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanIteration(row scannable) (*iteration.Session, error) {
	var (
		it      iteration.Session
		changes []byte
	)
	err := row.Scan(&it.ID, &it.WorkflowExecutionID, &it.StepID, &it.IterationNumber, &it.MaxIterations, &it.Trigger,
		&it.TriggerDetails, &changes, &it.Status, &it.CollaborationSessionID, &it.CreatedAt, &it.CompletedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(changes, &it.Changes); err != nil {
		return nil, fmt.Errorf("unmarshal iteration changes: %w", err)
	}
	return &it, nil
}
