// Package file provides file-based persistence for definitions and instances.
// Suitable for development and tests; each record is one JSON file.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/batutahq/batuta/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root        string
	definitions *DefinitionRepository
	instances   *InstanceRepository
}

func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:        cleanRoot,
		definitions: NewDefinitionRepository(cleanRoot),
		instances:   NewInstanceRepository(cleanRoot),
	}
}

func (p *Persistence) Definitions() persistence.DefinitionRepository {
	return p.definitions
}

func (p *Persistence) Instances() persistence.InstanceRepository {
	return p.instances
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}
