package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/storylinez/storylinez-go/internal/service"
	"github.com/storylinez/storylinez-go/pkg/pipeline"
	"github.com/storylinez/storylinez-go/pkg/response"
)

type PipelineHandler struct {
	service   *service.PipelineService
	validator *validator.Validate
}

func NewPipelineHandler(svc *service.PipelineService, v *validator.Validate) *PipelineHandler {
	return &PipelineHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/pipelines
func (h *PipelineHandler) Create(c *fiber.Ctx) error {
	var spec pipeline.Spec
	if err := c.BodyParser(&spec); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&spec); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	run, err := h.service.Enqueue(c.UserContext(), spec)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Accepted(c, run)
}

// Get handles GET /api/pipelines/:runId
func (h *PipelineHandler) Get(c *fiber.Ctx) error {
	runID := c.Params("runId")
	if runID == "" {
		return response.ValidationError(c, "Run ID is required", nil)
	}

	run, err := h.service.Get(c.UserContext(), runID)
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			return response.NotFound(c, "Run not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, run)
}

// Cancel handles POST /api/pipelines/:runId/cancel
func (h *PipelineHandler) Cancel(c *fiber.Ctx) error {
	runID := c.Params("runId")

	run, err := h.service.Cancel(c.UserContext(), runID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRunNotFound):
			return response.NotFound(c, "Run not found")
		case errors.Is(err, service.ErrRunFinished):
			return response.Conflict(c, "Run already finished")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, run)
}

func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errs := make(map[string]string)
		for _, e := range validationErrors {
			errs[e.Namespace()] = e.Tag()
		}
		return errs
	}
	return nil
}
