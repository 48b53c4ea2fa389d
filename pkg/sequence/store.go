package sequence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore persists sequence executions to sequence_executions,
// implementing Store.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps a connection pool for sequence execution storage.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// StartExecution inserts a new running sequence_executions row.
func (s *PostgresStore) StartExecution(ctx context.Context, exec Execution) (string, error) {
	trigger, err := json.Marshal(exec.Trigger)
	if err != nil {
		return "", fmt.Errorf("encoding sequence trigger: %w", err)
	}

	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO sequence_executions
			(org_id, user_id, sequence_key, status, input_context, step_results, is_simulation, created_at)
		VALUES ($1, $2, $3, 'running', $4, '[]', $5, $6)
		RETURNING id
	`, exec.OrgID, exec.UserID, exec.SequenceKey, []byte(trigger), exec.IsSimulation, time.Now())

	var id string
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("starting sequence execution: %w", err)
	}
	return id, nil
}

// SaveProgress implements Store.
func (s *PostgresStore) SaveProgress(ctx context.Context, executionID string, stepResults []StepResult) error {
	encoded, err := json.Marshal(stepResults)
	if err != nil {
		return fmt.Errorf("encoding step results: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sequence_executions SET step_results = $1 WHERE id = $2`,
		[]byte(encoded), executionID,
	)
	if err != nil {
		return fmt.Errorf("saving sequence progress: %w", err)
	}
	return nil
}

// MarkCompleted implements Store.
func (s *PostgresStore) MarkCompleted(ctx context.Context, executionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sequence_executions SET status = 'completed' WHERE id = $1`,
		executionID,
	)
	if err != nil {
		return fmt.Errorf("marking sequence completed: %w", err)
	}
	return nil
}

// MarkFailed implements Store.
func (s *PostgresStore) MarkFailed(ctx context.Context, executionID string, failedStepIndex int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sequence_executions SET status = 'failed', failed_step_index = $1 WHERE id = $2`,
		failedStepIndex, executionID,
	)
	if err != nil {
		return fmt.Errorf("marking sequence failed: %w", err)
	}
	return nil
}
