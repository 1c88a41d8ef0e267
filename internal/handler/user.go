package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/StudyingHUYANG/VisionMark/internal/middleware"
	"github.com/StudyingHUYANG/VisionMark/internal/model"
	"github.com/StudyingHUYANG/VisionMark/internal/service"
)

type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// GetByUserID handles GET /api/v1/users/:userId
func (h *UserHandler) GetByUserID(c fiber.Ctx) error {
	userID, errMsg := middleware.ValidateSubmitterID(c.Params("userId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, errMsg)
	}

	resp, err := h.svc.Lookup(c.Context(), userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, "user not found")
		}
		middleware.Logger.Error().Err(err).Msg("lookup user")
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "failed to lookup user")
	}

	return c.JSON(resp)
}

// Segments handles GET /api/v1/users/:userId/segments?page=&page_size=
func (h *UserHandler) Segments(c fiber.Ctx) error {
	userID, errMsg := middleware.ValidateSubmitterID(c.Params("userId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, errMsg)
	}

	page := fiber.Query[int](c, "page", 1)
	pageSize := fiber.Query[int](c, "page_size", service.DefaultPageSize)

	resp, err := h.svc.Contributions(c.Context(), userID, page, pageSize)
	if err != nil {
		middleware.Logger.Error().Err(err).Msg("list user segments")
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "failed to list segments")
	}

	return c.JSON(resp)
}
