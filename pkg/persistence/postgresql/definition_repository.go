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
	"github.com/lib/pq"
)

// DefinitionRepository handles definition-store database operations.
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewDefinitionRepository(db *sql.DB, logger *slog.Logger) *DefinitionRepository {
	return &DefinitionRepository{db: db, logger: logger}
}

func (r *DefinitionRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(definition)
	if err != nil {
		return persistence.NewDefinitionError("Save", definition.Name, definition.Version,
			fmt.Errorf("failed to marshal definition: %w", err))
	}

	query := `
		INSERT INTO workflow_definitions (name, version, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err = r.db.ExecContext(ctx, query, definition.Name, definition.Version, payload, definition.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return persistence.NewDefinitionError("Save", definition.Name, definition.Version,
				persistence.ErrDefinitionAlreadyExists)
		}

		return persistence.NewDefinitionError("Save", definition.Name, definition.Version,
			fmt.Errorf("failed to insert definition: %w", err))
	}

	return nil
}

func (r *DefinitionRepository) FindByNameAndVersion(ctx context.Context, name string, version int) (*models.WorkflowDefinition, error) {
	query := `
		SELECT payload
		FROM workflow_definitions
		WHERE name = $1 AND version = $2
	`

	var payload []byte

	err := r.db.QueryRowContext(ctx, query, name, version).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewDefinitionError("FindByNameAndVersion", name, version,
				persistence.ErrDefinitionNotFound)
		}

		return nil, persistence.NewDefinitionError("FindByNameAndVersion", name, version,
			fmt.Errorf("failed to query definition: %w", err))
	}

	var definition models.WorkflowDefinition

	err = json.Unmarshal(payload, &definition)
	if err != nil {
		return nil, persistence.NewDefinitionError("FindByNameAndVersion", name, version,
			fmt.Errorf("failed to unmarshal definition: %w", err))
	}

	return &definition, nil
}

func (r *DefinitionRepository) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	query := `
		SELECT payload
		FROM workflow_definitions
		ORDER BY name ASC, version ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	definitions := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		var payload []byte

		err = rows.Scan(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}

		var definition models.WorkflowDefinition

		err = json.Unmarshal(payload, &definition)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
		}

		definitions = append(definitions, &definition)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating definitions: %w", err)
	}

	return definitions, nil
}
