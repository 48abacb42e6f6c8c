package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/batutahq/batuta/pkg/models"
	"github.com/batutahq/batuta/pkg/persistence"
)

// InstanceRepository handles instance snapshot database operations.
type InstanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewInstanceRepository(db *sql.DB, logger *slog.Logger) *InstanceRepository {
	return &InstanceRepository{db: db, logger: logger}
}

// Save upserts the latest snapshot of an instance.
func (r *InstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance) error {
	payload, err := json.Marshal(instance)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID,
			fmt.Errorf("failed to marshal instance: %w", err))
	}

	query := `
		INSERT INTO workflow_instances
			(id, workflow_name, workflow_version, status, payload, started_at, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			payload = EXCLUDED.payload,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	var completedAt *time.Time
	if instance.CompletedAt != nil {
		completedAt = instance.CompletedAt
	}

	_, err = r.db.ExecContext(ctx, query,
		instance.ID,
		instance.WorkflowName,
		instance.WorkflowVersion,
		string(instance.Status),
		payload,
		instance.StartedAt,
		completedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID,
			fmt.Errorf("failed to upsert instance: %w", err))
	}

	return nil
}

func (r *InstanceRepository) Find(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	query := `
		SELECT payload
		FROM workflow_instances
		WHERE id = $1
	`

	var payload []byte

	err := r.db.QueryRowContext(ctx, query, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewInstanceError("Find", id, persistence.ErrInstanceNotFound)
		}

		return nil, persistence.NewInstanceError("Find", id,
			fmt.Errorf("failed to query instance: %w", err))
	}

	var instance models.WorkflowInstance

	err = json.Unmarshal(payload, &instance)
	if err != nil {
		return nil, persistence.NewInstanceError("Find", id,
			fmt.Errorf("failed to unmarshal instance: %w", err))
	}

	return &instance, nil
}

func (r *InstanceRepository) FindRunning(ctx context.Context) ([]*models.WorkflowInstance, error) {
	query := `
		SELECT payload
		FROM workflow_instances
		WHERE status = $1
		ORDER BY started_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, string(models.InstanceStatusRunning))
	if err != nil {
		return nil, fmt.Errorf("failed to query running instances: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	instances := make([]*models.WorkflowInstance, 0)

	for rows.Next() {
		var payload []byte

		err = rows.Scan(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}

		var instance models.WorkflowInstance

		err = json.Unmarshal(payload, &instance)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal instance: %w", err)
		}

		instances = append(instances, &instance)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}

	return instances, nil
}
