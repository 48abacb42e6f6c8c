// Package web provides HTTP handlers and REST API endpoints for workflow
// definitions and runs.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/batutahq/batuta/pkg/persistence"
	"github.com/batutahq/batuta/pkg/registry"
	"github.com/batutahq/batuta/pkg/services"
)

type APIHandlers struct {
	definitionService *services.Definition
	runService        *services.Run
	validator         *validator.Validate
	registry          *registry.Registry
}

func NewAPIHandlers(
	definitionService *services.Definition,
	runService *services.Run,
	validator *validator.Validate,
	reg *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		definitionService: definitionService,
		runService:        runService,
		validator:         validator,
		registry:          reg,
	}
}

// RegisterRoutes wires all endpoints onto the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	app.Get("/workflows", h.GetWorkflows)
	app.Post("/workflows", h.RegisterWorkflow)
	app.Get("/workflows/:name", h.GetWorkflow)

	app.Get("/runs", h.GetRunningInstances)
	app.Post("/runs", h.StartRun)
	app.Get("/runs/:id", h.GetInstance)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	definitions, err := h.definitionService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   definitions,
		"total_count": len(definitions),
	})
}

func (h *APIHandlers) RegisterWorkflow(c fiber.Ctx) error {
	var req RegisterWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.registry.ValidateDefinition(req.Definition); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.definitionService.Register(c.Context(), services.RegisterRequest{
		Definition: req.Definition,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetWorkflow returns one definition by name. The version query parameter
// selects a pinned version; absent, the latest registered version is returned.
func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Workflow name is required")
	}

	version := 0

	if versionStr := c.Query("version"); versionStr != "" {
		parsed, err := strconv.Atoi(versionStr)
		if err != nil {
			return badRequest(c, "Invalid version parameter")
		}

		version = parsed
	}

	definition, err := h.definitionService.Get(c.Context(), name, version)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) StartRun(c fiber.Ctx) error {
	var req StartRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	resp, err := h.runService.Start(c.Context(), services.StartRequest{
		WorkflowName:    req.WorkflowName,
		WorkflowVersion: req.WorkflowVersion,
		Input:           req.Input,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(resp)
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	instance, err := h.runService.Get(c.Context(), id)
	if err != nil {
		if persistence.IsInstanceNotFound(err) {
			return notFound(c, "Workflow instance not found")
		}

		return handleServiceError(c, err)
	}

	return c.JSON(toInstanceResponse(instance))
}

func (h *APIHandlers) GetRunningInstances(c fiber.Ctx) error {
	running, err := h.runService.ListRunning(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	responses := make([]InstanceResponse, 0, len(running))
	for _, instance := range running {
		responses = append(responses, toInstanceResponse(instance))
	}

	return c.JSON(fiber.Map{
		"runs":        responses,
		"total_count": len(responses),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.definitionService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Batuta API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Batuta API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
