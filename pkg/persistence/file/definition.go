package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"time"

	"github.com/batutahq/batuta/pkg/models"
	"github.com/batutahq/batuta/pkg/persistence"
)

const dirPerm = 0o755

// DefinitionRepository stores each definition as definitions/<name>-v<version>.json.
type DefinitionRepository struct {
	root string
}

func NewDefinitionRepository(root string) *DefinitionRepository {
	return &DefinitionRepository{root: root}
}

func (r *DefinitionRepository) dir() string {
	return path.Join(r.root, "definitions")
}

func (r *DefinitionRepository) filePath(name string, version int) string {
	return path.Join(r.dir(), fmt.Sprintf("%s-v%d.json", name, version))
}

func (r *DefinitionRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	err := os.MkdirAll(r.dir(), dirPerm)
	if err != nil {
		return persistence.NewDefinitionError("Save", definition.Name, definition.Version,
			fmt.Errorf("failed to create definitions directory: %w", err))
	}

	target := r.filePath(definition.Name, definition.Version)

	if _, err := os.Stat(target); err == nil {
		return persistence.NewDefinitionError("Save", definition.Name, definition.Version,
			persistence.ErrDefinitionAlreadyExists)
	}

	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = time.Now().UTC()
	}

	payload, err := json.MarshalIndent(definition, "", "  ")
	if err != nil {
		return persistence.NewDefinitionError("Save", definition.Name, definition.Version,
			fmt.Errorf("failed to marshal definition: %w", err))
	}

	// Write to a temp file first so concurrent readers never see a torn file.
	tmp := target + ".tmp"

	err = os.WriteFile(tmp, payload, 0o644)
	if err != nil {
		return persistence.NewDefinitionError("Save", definition.Name, definition.Version,
			fmt.Errorf("failed to write definition file: %w", err))
	}

	err = os.Rename(tmp, target)
	if err != nil {
		return persistence.NewDefinitionError("Save", definition.Name, definition.Version,
			fmt.Errorf("failed to move definition file into place: %w", err))
	}

	return nil
}

func (r *DefinitionRepository) FindByNameAndVersion(ctx context.Context, name string, version int) (*models.WorkflowDefinition, error) {
	payload, err := os.ReadFile(r.filePath(name, version))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewDefinitionError("FindByNameAndVersion", name, version,
				persistence.ErrDefinitionNotFound)
		}

		return nil, persistence.NewDefinitionError("FindByNameAndVersion", name, version,
			fmt.Errorf("failed to read definition file: %w", err))
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
	root := os.DirFS(r.dir())

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list definition files: %w", err)
	}

	sort.Strings(files)

	definitions := make([]*models.WorkflowDefinition, 0, len(files))

	for _, file := range files {
		payload, err := os.ReadFile(path.Join(r.dir(), file))
		if err != nil {
			return nil, fmt.Errorf("failed to read definition file %s: %w", file, err)
		}

		var definition models.WorkflowDefinition

		err = json.Unmarshal(payload, &definition)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal definition file %s: %w", file, err)
		}

		definitions = append(definitions, &definition)
	}

	return definitions, nil
}
