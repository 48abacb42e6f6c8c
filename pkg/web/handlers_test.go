package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/batutahq/batuta/pkg/mocks"
	"github.com/batutahq/batuta/pkg/models"
	"github.com/batutahq/batuta/pkg/operators/logop"
	"github.com/batutahq/batuta/pkg/persistence/file"
	"github.com/batutahq/batuta/pkg/registry"
	"github.com/batutahq/batuta/pkg/services"
	"github.com/batutahq/batuta/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, *mocks.MockEventBus, *file.Persistence) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())
	eventBus := &mocks.MockEventBus{}

	definitionService := services.NewDefinition(persist)
	runService := services.NewRun(persist, eventBus)

	reg := registry.NewRegistry(slog.Default())
	reg.Register(logop.NewOperator(slog.Default()))

	handlers := web.NewAPIHandlers(definitionService, runService, validator.New(validator.WithRequiredStructEnabled()), reg)

	app := fiber.New()
	handlers.RegisterRoutes(app)

	return app, eventBus, persist
}

func registerBody(t *testing.T, name string, version int) []byte {
	t.Helper()

	payload, err := json.Marshal(web.RegisterWorkflowRequest{
		Definition: &models.WorkflowDefinition{
			Name:    name,
			Version: version,
			Steps: []*models.WorkflowStep{
				{ID: "announce", Name: "Announce", Kind: models.StepKindOperatorCall, Operator: "log", Method: "info"},
			},
		},
	})
	require.NoError(t, err)

	return payload
}

func postJSON(t *testing.T, app *fiber.App, path string, body []byte) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func TestRegisterWorkflow(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp := postJSON(t, app, "/workflows", registerBody(t, "order-processing", 1))
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var created models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "order-processing", created.Name)
	assert.Equal(t, 1, created.Version)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestRegisterWorkflow_DuplicateVersionConflicts(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp := postJSON(t, app, "/workflows", registerBody(t, "order-processing", 1))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, app, "/workflows", registerBody(t, "order-processing", 1))
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Equal(t, "conflict", problem["type"])
}

func TestRegisterWorkflow_InvalidJSON(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp := postJSON(t, app, "/workflows", []byte("not-json"))
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegisterWorkflow_UnboundOperator(t *testing.T) {
	app, _, _ := setupTestApp(t)

	payload, err := json.Marshal(web.RegisterWorkflowRequest{
		Definition: &models.WorkflowDefinition{
			Name:    "order-processing",
			Version: 1,
			Steps: []*models.WorkflowStep{
				{ID: "pay", Name: "Pay", Kind: models.StepKindOperatorCall, Operator: "stripe", Method: "charge"},
			},
		},
	})
	require.NoError(t, err)

	resp := postJSON(t, app, "/workflows", payload)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetWorkflow(t *testing.T) {
	app, _, _ := setupTestApp(t)

	for _, version := range []int{1, 2} {
		resp := postJSON(t, app, "/workflows", registerBody(t, "order-processing", version))
		_ = resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// Without a version parameter the latest registered version comes back.
	req := httptest.NewRequest(http.MethodGet, "/workflows/order-processing", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var definition models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(body, &definition))
	assert.Equal(t, 2, definition.Version)

	// A pinned version stays reachable after newer ones are registered.
	req = httptest.NewRequest(http.MethodGet, "/workflows/order-processing?version=1", nil)
	pinned, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = pinned.Body.Close() }()

	require.Equal(t, http.StatusOK, pinned.StatusCode)

	body, err = io.ReadAll(pinned.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &definition))
	assert.Equal(t, 1, definition.Version)
}

func TestGetWorkflow_NotFound(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/workflows/ghost", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartRun(t *testing.T) {
	app, eventBus, _ := setupTestApp(t)
	eventBus.On("Publish", mock.Anything, "run.requested", mock.Anything).Return(nil)

	resp := postJSON(t, app, "/workflows", registerBody(t, "order-processing", 1))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	payload, err := json.Marshal(web.StartRunRequest{
		WorkflowName: "order-processing",
		Input:        map[string]any{"order_id": "o-1"},
	})
	require.NoError(t, err)

	resp = postJSON(t, app, "/runs", payload)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var ack services.StartResponse
	require.NoError(t, json.Unmarshal(body, &ack))
	assert.NotEmpty(t, ack.EventID)
	assert.Equal(t, 1, ack.WorkflowVersion)

	eventBus.AssertCalled(t, "Publish", mock.Anything, "run.requested", mock.Anything)
}

func TestStartRun_UnknownWorkflow(t *testing.T) {
	app, _, _ := setupTestApp(t)

	payload, err := json.Marshal(web.StartRunRequest{WorkflowName: "ghost"})
	require.NoError(t, err)

	resp := postJSON(t, app, "/runs", payload)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetInstance(t *testing.T) {
	app, _, persist := setupTestApp(t)

	definition := &models.WorkflowDefinition{
		Name: "order-processing", Version: 1,
		Steps: []*models.WorkflowStep{
			{ID: "announce", Name: "Announce", Kind: models.StepKindOperatorCall, Operator: "log", Method: "info"},
		},
	}
	instance := models.NewWorkflowInstance(definition, map[string]any{"order_id": "o-1"})
	require.NoError(t, persist.Instances().Save(t.Context(), &instance))

	req := httptest.NewRequest(http.MethodGet, "/runs/"+instance.ID, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var view web.InstanceResponse
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, instance.ID, view.ID)
	assert.Equal(t, models.InstanceStatusRunning, view.Status)
	assert.Equal(t, "o-1", view.Context["order_id"])
}

func TestGetInstance_NotFound(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/runs/nope", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Equal(t, "not_found", problem["type"])
}

func TestGetRunningInstances(t *testing.T) {
	app, _, persist := setupTestApp(t)

	definition := &models.WorkflowDefinition{
		Name: "order-processing", Version: 1,
		Steps: []*models.WorkflowStep{
			{ID: "announce", Name: "Announce", Kind: models.StepKindOperatorCall, Operator: "log", Method: "info"},
		},
	}

	running := models.NewWorkflowInstance(definition, nil)
	completed := models.NewWorkflowInstance(definition, nil).Complete()
	require.NoError(t, persist.Instances().Save(t.Context(), &running))
	require.NoError(t, persist.Instances().Save(t.Context(), &completed))

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var list struct {
		Runs       []web.InstanceResponse `json:"runs"`
		TotalCount int                    `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 1, list.TotalCount)
	require.Len(t, list.Runs, 1)
	assert.Equal(t, running.ID, list.Runs[0].ID)
}

func TestHealthCheck(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
}
