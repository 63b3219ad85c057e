package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/devteam/internal/domain/approval"
	"github.com/Strob0t/devteam/internal/port/database"
)

const approvalColumns = `id, workflow_execution_id, step_id, step_name, approver_type, status, content,
	timeout_at, fallback_action, approver, response, max_iterations, priority, created_at, updated_at`

func (s *Store) CreateApproval(ctx context.Context, r *approval.Request) error {
	content, approver, response, err := marshalApproval(r)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO approval_requests (`+approvalColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		r.ID, r.WorkflowExecutionID, r.StepID, r.StepName, r.ApproverType, r.Status, content,
		r.TimeoutAt, r.FallbackAction, approver, response, r.MaxIterations, r.Priority, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return wrapf(err, "create approval %s", r.ID)
	}
	return nil
}

func (s *Store) GetApproval(ctx context.Context, id string) (*approval.Request, error) {
	r, err := scanApproval(s.pool.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM approval_requests WHERE id = $1`, id))
	if err != nil {
		return nil, wrapf(err, "get approval %s", id)
	}
	return r, nil
}

func (s *Store) ListApprovals(ctx context.Context, f database.ApprovalFilter) ([]approval.Request, error) {
	statuses := make([]string, len(f.Statuses))
	for i, st := range f.Statuses {
		statuses[i] = string(st)
	}
	var due *time.Time
	if f.DueBefore != nil {
		t := f.DueBefore.UTC()
		due = &t
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+approvalColumns+` FROM approval_requests
		 WHERE ($1 = '' OR workflow_execution_id = $1)
		   AND ($2 = '' OR approver_type = $2)
		   AND (cardinality($3::text[]) = 0 OR status = ANY($3))
		   AND ($4::timestamptz IS NULL OR (status = 'pending' AND timeout_at IS NOT NULL AND timeout_at <= $4))
		 ORDER BY created_at, id`,
		f.WorkflowExecutionID, string(f.ApproverType), pgTextArray(statuses), due)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var out []approval.Request
	for rows.Next() {
		r, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// TransitionApproval locks the row with SELECT ... FOR UPDATE so concurrent
// responders and the sweep serialize on it.
func (s *Store) TransitionApproval(ctx context.Context, id string, from approval.Status, fn func(*approval.Request) error) (*approval.Request, error) {
	var out *approval.Request
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanApproval(tx.QueryRow(ctx,
			`SELECT `+approvalColumns+` FROM approval_requests WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return wrapf(err, "transition approval %s", id)
		}
		if cur.Status != from {
			return statusConflict("approval", id, cur.Status)
		}
		if err := fn(cur); err != nil {
			return err
		}

		content, approver, response, err := marshalApproval(cur)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE approval_requests
			 SET approver_type = $2, status = $3, content = $4, timeout_at = $5, fallback_action = $6,
			     approver = $7, response = $8, max_iterations = $9, priority = $10, updated_at = $11
			 WHERE id = $1`,
			id, cur.ApproverType, cur.Status, content, cur.TimeoutAt, cur.FallbackAction,
			approver, response, cur.MaxIterations, cur.Priority, cur.UpdatedAt)
		if err := expectOneRow(tag, err, "update approval %s", id); err != nil {
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

func marshalApproval(r *approval.Request) (content, approver, response []byte, err error) {
	if content, err = json.Marshal(r.Content); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal approval content: %w", err)
	}
	if r.Approver != nil {
		if approver, err = json.Marshal(r.Approver); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal approver: %w", err)
		}
	}
	if r.Response != nil {
		if response, err = json.Marshal(r.Response); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal approval response: %w", err)
		}
	}
	return content, approver, response, nil
}

func scanApproval(row scannable) (*approval.Request, error) {
	var (
		r                           approval.Request
		content, approver, response []byte
	)
	err := row.Scan(&r.ID, &r.WorkflowExecutionID, &r.StepID, &r.StepName, &r.ApproverType, &r.Status, &content,
		&r.TimeoutAt, &r.FallbackAction, &approver, &response, &r.MaxIterations, &r.Priority, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &r.Content); err != nil {
		return nil, fmt.Errorf("unmarshal approval content: %w", err)
	}
	if len(approver) > 0 {
		r.Approver = &approval.Approver{}
		if err := json.Unmarshal(approver, r.Approver); err != nil {
			return nil, fmt.Errorf("unmarshal approver: %w", err)
		}
	}
	if len(response) > 0 {
		r.Response = &approval.Response{}
		if err := json.Unmarshal(response, r.Response); err != nil {
			return nil, fmt.Errorf("unmarshal approval response: %w", err)
		}
	}
	return &r, nil
}
