package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/batutahq/batuta/pkg/models"
	"github.com/batutahq/batuta/pkg/persistence"
)

// InstanceRepository stores each instance snapshot as instances/<id>.json.
// Save overwrites: the latest snapshot is the durable state.
type InstanceRepository struct {
	root string
}

func NewInstanceRepository(root string) *InstanceRepository {
	return &InstanceRepository{root: root}
}

func (r *InstanceRepository) dir() string {
	return path.Join(r.root, "instances")
}

func (r *InstanceRepository) filePath(id string) string {
	return path.Join(r.dir(), id+".json")
}

func (r *InstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance) error {
	err := os.MkdirAll(r.dir(), dirPerm)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID,
			fmt.Errorf("failed to create instances directory: %w", err))
	}

	payload, err := json.MarshalIndent(instance, "", "  ")
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID,
			fmt.Errorf("failed to marshal instance: %w", err))
	}

	target := r.filePath(instance.ID)
	tmp := target + ".tmp"

	err = os.WriteFile(tmp, payload, 0o644)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID,
			fmt.Errorf("failed to write instance file: %w", err))
	}

	err = os.Rename(tmp, target)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID,
			fmt.Errorf("failed to move instance file into place: %w", err))
	}

	return nil
}

func (r *InstanceRepository) Find(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	payload, err := os.ReadFile(r.filePath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewInstanceError("Find", id, persistence.ErrInstanceNotFound)
		}

		return nil, persistence.NewInstanceError("Find", id,
			fmt.Errorf("failed to read instance file: %w", err))
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
	root := os.DirFS(r.dir())

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list instance files: %w", err)
	}

	running := make([]*models.WorkflowInstance, 0)

	for _, file := range files {
		id := file[:len(file)-len(".json")]

		instance, err := r.Find(ctx, id)
		if err != nil {
			return nil, err
		}

		if instance.Status == models.InstanceStatusRunning {
			running = append(running, instance)
		}
	}

	return running, nil
}
