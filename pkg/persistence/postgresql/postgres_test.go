package postgresql_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/batutahq/batuta/pkg/models"
	"github.com/batutahq/batuta/pkg/persistence"
	"github.com/batutahq/batuta/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func TestMain(m *testing.M) {
	code := m.Run()

	if postgresContainer != nil {
		_ = testcontainers.TerminateContainer(postgresContainer)
	}

	os.Exit(code)
}

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"workflow_instances", "workflow_definitions", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("batuta_test"),
			postgres.WithUsername("batuta"),
			postgres.WithPassword("batuta"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	persist, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = persist.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return persist, ctx, databaseURL
}

func testDefinition(name string, version int) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		Name:    name,
		Version: version,
		Steps: []*models.WorkflowStep{
			{
				ID: "reserve", Name: "Reserve", Kind: models.StepKindOperatorCall,
				Operator: "inventory", Method: "reserve", Required: true,
				CompensationID: "release",
			},
			{
				ID: "release", Name: "Release", Kind: models.StepKindCompensation,
				Operator: "inventory", Method: "release",
			},
		},
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'workflow_definitions')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "workflow_definitions table should exist")

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'workflow_instances')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "workflow_instances table should exist")

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestDefinitionRepository_SaveAndFind(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	definition := testDefinition("order-processing", 1)

	err := p.Definitions().Save(ctx, definition)
	require.NoError(t, err)
	assert.False(t, definition.CreatedAt.IsZero())

	retrieved, err := p.Definitions().FindByNameAndVersion(ctx, "order-processing", 1)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, "order-processing", retrieved.Name)
	assert.Equal(t, 1, retrieved.Version)
	require.Len(t, retrieved.Steps, 2)
	assert.Equal(t, "release", retrieved.Steps[0].CompensationID)
}

func TestDefinitionRepository_VersionConflict(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	require.NoError(t, p.Definitions().Save(ctx, testDefinition("order-processing", 1)))

	err := p.Definitions().Save(ctx, testDefinition("order-processing", 1))
	require.Error(t, err)
	assert.True(t, persistence.IsDefinitionAlreadyExists(err))

	require.NoError(t, p.Definitions().Save(ctx, testDefinition("order-processing", 2)))
}

func TestDefinitionRepository_FindMissing(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	_, err := p.Definitions().FindByNameAndVersion(ctx, "ghost", 1)
	require.Error(t, err)
	assert.True(t, persistence.IsDefinitionNotFound(err))
}

func TestDefinitionRepository_List(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	require.NoError(t, p.Definitions().Save(ctx, testDefinition("alpha", 1)))
	require.NoError(t, p.Definitions().Save(ctx, testDefinition("alpha", 2)))
	require.NoError(t, p.Definitions().Save(ctx, testDefinition("beta", 1)))

	definitions, err := p.Definitions().List(ctx)
	require.NoError(t, err)
	assert.Len(t, definitions, 3)
}

func TestInstanceRepository_SaveAndFind(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	instance := models.NewWorkflowInstance(testDefinition("order-processing", 1), map[string]any{"order_id": "o-1"})
	instance = instance.MoveToStep("reserve")

	err := p.Instances().Save(ctx, &instance)
	require.NoError(t, err)

	retrieved, err := p.Instances().Find(ctx, instance.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, instance.ID, retrieved.ID)
	assert.Equal(t, models.InstanceStatusRunning, retrieved.Status)
	assert.Equal(t, "reserve", retrieved.CurrentStepID)

	value, ok := retrieved.Context.Get("order_id")
	require.True(t, ok)
	assert.Equal(t, "o-1", value)
}

func TestInstanceRepository_SaveIsUpsert(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	instance := models.NewWorkflowInstance(testDefinition("order-processing", 1), nil)
	require.NoError(t, p.Instances().Save(ctx, &instance))

	completed := instance.CompleteStep("reserve", map[string]any{"reservation_id": "r-1"}).Complete()
	require.NoError(t, p.Instances().Save(ctx, &completed))

	retrieved, err := p.Instances().Find(ctx, instance.ID)
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusCompleted, retrieved.Status)
	require.Len(t, retrieved.History, 1)
	assert.Equal(t, "reserve", retrieved.History[0].StepID)
	require.NotNil(t, retrieved.CompletedAt)
}

func TestInstanceRepository_FindMissing(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	_, err := p.Instances().Find(ctx, "nope")
	require.Error(t, err)
	assert.True(t, persistence.IsInstanceNotFound(err))
}

func TestInstanceRepository_FindRunningFilters(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	definition := testDefinition("order-processing", 1)

	running := models.NewWorkflowInstance(definition, nil)
	completed := models.NewWorkflowInstance(definition, nil).Complete()
	failed := models.NewWorkflowInstance(definition, nil).FailStep("reserve", errors.New("boom"))

	require.NoError(t, p.Instances().Save(ctx, &running))
	require.NoError(t, p.Instances().Save(ctx, &completed))
	require.NoError(t, p.Instances().Save(ctx, &failed))

	found, err := p.Instances().FindRunning(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, running.ID, found[0].ID)
}
