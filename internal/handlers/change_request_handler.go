package handlers

import (
	"errors"

	"github.com/changedesk/changedesk/internal/dto"
	"github.com/changedesk/changedesk/internal/middleware"
	"github.com/changedesk/changedesk/internal/models"
	"github.com/changedesk/changedesk/internal/services"
	"github.com/gofiber/fiber/v2"
)

type ChangeRequestHandler struct {
	crService *services.ChangeRequestService
}

func NewChangeRequestHandler(crService *services.ChangeRequestService) *ChangeRequestHandler {
	return &ChangeRequestHandler{crService: crService}
}

func (h *ChangeRequestHandler) Create(c *fiber.Ctx) error {
	identity := middleware.Identity(c)
	if identity == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var req dto.CreateChangeRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	cr, err := h.crService.Create(identity.UserID, &req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(cr)
}

func (h *ChangeRequestHandler) List(c *fiber.Ctx) error {
	crs, err := h.crService.List()
	if err != nil {
		return internalError(c)
	}
	return c.JSON(crs)
}

func (h *ChangeRequestHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid change request id",
		})
	}

	cr, err := h.crService.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, services.ErrChangeRequestNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "Change request not found",
			})
		}
		return internalError(c)
	}
	return c.JSON(cr)
}

func (h *ChangeRequestHandler) Update(c *fiber.Ctx) error {
	identity := middleware.Identity(c)
	if identity == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid change request id",
		})
	}

	var req dto.UpdateChangeRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	cr, err := h.crService.Update(identity, uint(id), &req)
	if err != nil {
		if errors.Is(err, services.ErrChangeRequestNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "Change request not found",
			})
		}
		if errors.Is(err, services.ErrForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}

	return c.JSON(cr)
}

func (h *ChangeRequestHandler) Search(c *fiber.Ctx) error {
	crs, err := h.crService.Search(c.Query("q"))
	if err != nil {
		return internalError(c)
	}
	return c.JSON(crs)
}

func (h *ChangeRequestHandler) ListByStatus(c *fiber.Ctx) error {
	status := models.Status(c.Params("status"))
	if !status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid status",
		})
	}

	crs, err := h.crService.ListByStatus(status)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(crs)
}

func (h *ChangeRequestHandler) Recent(c *fiber.Ctx) error {
	crs, err := h.crService.ListRecent(c.QueryInt("limit", 10))
	if err != nil {
		return internalError(c)
	}
	return c.JSON(crs)
}

func (h *ChangeRequestHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.crService.Stats()
	if err != nil {
		return internalError(c)
	}
	return c.JSON(stats)
}

func (h *ChangeRequestHandler) MyPendingReviews(c *fiber.Ctx) error {
	identity := middleware.Identity(c)
	if identity == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	crs, err := h.crService.PendingReviews(identity.UserID)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(crs)
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: "Internal server error",
	})
}
