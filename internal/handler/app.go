package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/storylinez/storylinez-go/pkg/response"
)

// NewApp builds the status HTTP surface. createLimits run in front of the
// enqueue route.
func NewApp(h *PipelineHandler, log *slog.Logger, createLimits ...fiber.Handler) *fiber.App {
	if log == nil {
		log = slog.Default()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          errorHandler(log),
		BodyLimit:             1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	pipelines := api.Group("/pipelines")
	pipelines.Post("/", append(createLimits, h.Create)...)
	pipelines.Get("/:runId", h.Get)
	pipelines.Post("/:runId/cancel", h.Cancel)

	return app
}

func errorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			if fe.Code == fiber.StatusNotFound {
				return response.NotFound(c, fe.Message)
			}
			return response.Error(c, fe.Code, response.CodeServiceError, fe.Message, nil)
		}
		log.Error("unhandled request error", "path", c.Path(), "error", err)
		return response.ServiceError(c, "Internal Server Error")
	}
}
