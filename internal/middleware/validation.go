package middleware

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// Field length limits matching database schema constraints.
const (
	MaxContentIDLen   = 64 // videos.content_id VARCHAR(64)
	MaxPartIDLen      = 32 // videos.part_id VARCHAR(32)
	MaxSubmitterIDLen = 64 // submitters.submitter_id VARCHAR(64)
)

var (
	// contentIDRe matches platform video ids (BV ids, av numbers, slugs).
	contentIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	// partIDRe matches part (page) ids: usually a page number or a cid.
	partIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	// submitterIDRe matches opaque submitter references, typically a hex hash.
	submitterIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ErrorResponse writes the standard API error body {"error": message}.
func ErrorResponse(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// ValidateContentID checks that a video id is well-formed and within DB limits.
func ValidateContentID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "video_id is required"
	}
	if len(id) > MaxContentIDLen {
		return "", "video_id must be at most 64 characters"
	}
	if !contentIDRe.MatchString(id) {
		return "", "video_id contains invalid characters"
	}
	return id, ""
}

// ValidatePartID checks the part id. An empty part defaults to "1", the
// first page of a video.
func ValidatePartID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "1", ""
	}
	if len(id) > MaxPartIDLen {
		return "", "part_id must be at most 32 characters"
	}
	if !partIDRe.MatchString(id) {
		return "", "part_id contains invalid characters"
	}
	return id, ""
}

// ValidateSubmitterID checks an opaque submitter reference.
func ValidateSubmitterID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "userId is required"
	}
	if len(id) > MaxSubmitterIDLen {
		return "", "userId must be at most 64 characters"
	}
	if !submitterIDRe.MatchString(id) {
		return "", "userId contains invalid characters"
	}
	return id, ""
}

// ValidateSegmentID parses a positive segment id from a path parameter.
func ValidateSegmentID(raw string) (int64, string) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, "segment id must be a positive integer"
	}
	return id, ""
}
