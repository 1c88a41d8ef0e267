package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/StudyingHUYANG/VisionMark/internal/middleware"
	"github.com/StudyingHUYANG/VisionMark/internal/model"
	"github.com/StudyingHUYANG/VisionMark/internal/service"
	"github.com/StudyingHUYANG/VisionMark/pkg/hash"
)

// SubmitterHeader carries the opaque submitter/voter reference.
const SubmitterHeader = "X-User-ID"

type SegmentHandler struct {
	svc    *service.SegmentService
	ipSalt string
}

func NewSegmentHandler(svc *service.SegmentService, ipSalt string) *SegmentHandler {
	return &SegmentHandler{svc: svc, ipSalt: ipSalt}
}

// List handles GET /api/v1/segments?video_id=&part_id=
func (h *SegmentHandler) List(c fiber.Ctx) error {
	key, errMsg := videoKey(fiber.Query[string](c, "video_id"), fiber.Query[string](c, "part_id"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, errMsg)
	}

	segs, err := h.svc.ListActive(c.Context(), key)
	if err != nil {
		middleware.Logger.Error().Err(err).Str("request_id", middleware.RequestID(c)).Msg("list active segments")
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "failed to list segments")
	}

	return c.JSON(model.SegmentsResponse{Segments: segs})
}

// Submit handles POST /api/v1/segments
func (h *SegmentHandler) Submit(c fiber.Ctx) error {
	var req model.SubmitRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "invalid request body")
	}

	key, errMsg := videoKey(req.VideoID, req.PartID)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, errMsg)
	}

	submitterID, errMsg := h.submitter(c)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, errMsg)
	}

	iv := model.Interval{Start: req.StartTime, End: req.EndTime}
	resp, err := h.svc.Put(c.Context(), key, iv, req.Category, submitterID)
	if err != nil {
		return h.fail(c, err, "failed to submit segment")
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Vote handles POST /api/v1/segments/:id/vote
func (h *SegmentHandler) Vote(c fiber.Ctx) error {
	id, errMsg := middleware.ValidateSegmentID(c.Params("id"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, errMsg)
	}

	var req model.VoteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "invalid request body")
	}
	if !req.Direction.Valid() {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, `direction must be "up" or "down"`)
	}

	// Anonymous votes are accepted and always count.
	voterID := ""
	if raw := c.Get(SubmitterHeader); raw != "" {
		voterID, errMsg = middleware.ValidateSubmitterID(raw)
		if errMsg != "" {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, errMsg)
		}
	}

	confidence, err := h.svc.Vote(c.Context(), id, req.Direction, voterID)
	if err != nil {
		return h.fail(c, err, "failed to record vote")
	}

	return c.JSON(model.VoteResponse{Confidence: confidence})
}

// Skip handles POST /api/v1/segments/:id/skip
func (h *SegmentHandler) Skip(c fiber.Ctx) error {
	id, errMsg := middleware.ValidateSegmentID(c.Params("id"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, errMsg)
	}

	if err := h.svc.ReportSkip(c.Context(), id); err != nil {
		return h.fail(c, err, "failed to record skip")
	}

	return c.JSON(model.SkipResponse{Success: true})
}

// submitter returns the X-User-ID reference or, for anonymous clients, a
// salted hash of the client IP.
func (h *SegmentHandler) submitter(c fiber.Ctx) (string, string) {
	if raw := c.Get(SubmitterHeader); raw != "" {
		return middleware.ValidateSubmitterID(raw)
	}
	return hash.HashIP(c.IP(), h.ipSalt), ""
}

func (h *SegmentHandler) fail(c fiber.Ctx, err error, msg string) error {
	switch {
	case errors.Is(err, model.ErrInvalidInterval):
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "segment not found")
	default:
		middleware.Logger.Error().Err(err).Str("request_id", middleware.RequestID(c)).Msg(msg)
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, msg)
	}
}

func videoKey(contentID, partID string) (model.VideoKey, string) {
	contentID, errMsg := middleware.ValidateContentID(contentID)
	if errMsg != "" {
		return model.VideoKey{}, errMsg
	}
	partID, errMsg = middleware.ValidatePartID(partID)
	if errMsg != "" {
		return model.VideoKey{}, errMsg
	}
	return model.VideoKey{ContentID: contentID, PartID: partID}, ""
}
