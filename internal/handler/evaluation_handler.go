package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/evalia-go-api/internal/dto"
	"github.com/noah-isme/evalia-go-api/internal/service"
	"github.com/noah-isme/evalia-go-api/internal/utils"
)

// EvaluationHandler exposes the pipeline entry points and the polling
// endpoint consumed by the UI.
type EvaluationHandler struct {
	service  service.EvaluationService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewEvaluationHandler constructs the handler.
func NewEvaluationHandler(service service.EvaluationService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Get("/:id", h.get)
	router.Post("/:id/submissions", h.addSubmission)
	router.Post("/:id/rubrics", h.generateRubrics)
	router.Post("/:id/grade", h.grade)
}

func (h *EvaluationHandler) create(c *fiber.Ctx) error {
	var req dto.CreateEvaluationRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.Create(c.Context(), req)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "evaluation created", response)
}

func (h *EvaluationHandler) addSubmission(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.CreateSubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.AddSubmission(c.Context(), id, req)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission registered", response)
}

func (h *EvaluationHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation retrieved", response)
}

func (h *EvaluationHandler) generateRubrics(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.StartRubricGeneration(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "rubric generation queued",
		dto.EnqueueResponse{EvaluationID: id, Stage: "rubrics"})
}

func (h *EvaluationHandler) grade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.StartGrading(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "grading queued",
		dto.EnqueueResponse{EvaluationID: id, Stage: "grading"})
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error) error {
	if errors.Is(err, service.ErrEvaluationNotFound) {
		return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
	}

	requestLogger(h.logger, c).Error().Err(err).Msg("evaluation request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
