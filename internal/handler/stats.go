package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/StudyingHUYANG/VisionMark/internal/middleware"
	"github.com/StudyingHUYANG/VisionMark/internal/service"
)

type StatsHandler struct {
	svc *service.StatsService
}

func NewStatsHandler(svc *service.StatsService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// Overview handles GET /api/v1/stats/overview
func (h *StatsHandler) Overview(c fiber.Ctx) error {
	stats, err := h.svc.Overview(c.Context())
	if err != nil {
		middleware.Logger.Error().Err(err).Msg("stats overview")
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "failed to fetch statistics")
	}

	return c.JSON(stats)
}

// PopularVideos handles GET /api/v1/stats/popular-videos
func (h *StatsHandler) PopularVideos(c fiber.Ctx) error {
	videos, err := h.svc.PopularVideos(c.Context())
	if err != nil {
		middleware.Logger.Error().Err(err).Msg("stats popular videos")
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "failed to fetch popular videos")
	}

	return c.JSON(fiber.Map{"list": videos})
}

// TopUsers handles GET /api/v1/stats/top-users
func (h *StatsHandler) TopUsers(c fiber.Ctx) error {
	users, err := h.svc.TopSubmitters(c.Context())
	if err != nil {
		middleware.Logger.Error().Err(err).Msg("stats top users")
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "failed to fetch top users")
	}

	return c.JSON(fiber.Map{"list": users})
}
