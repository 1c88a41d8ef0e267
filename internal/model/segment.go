package model

import (
	"fmt"
	"math"
	"time"
)

// Category is the closed set of advertisement kinds a segment may carry.
type Category string

const (
	CategoryHardAd           Category = "hard_ad"
	CategorySoftAd           Category = "soft_ad"
	CategoryProductPlacement Category = "product_placement"
	CategoryIntroAd          Category = "intro_ad"
	CategoryMidAd            Category = "mid_ad"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryHardAd,
	CategorySoftAd,
	CategoryProductPlacement,
	CategoryIntroAd,
	CategoryMidAd,
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Direction is the sign of a vote.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// Status is the lifecycle state of a segment record.
//
//	active     eligible and winning its time region
//	suppressed eligible but overlapped by a higher ranked segment
//	retired    no longer eligible; terminal
type Status string

const (
	StatusActive     Status = "active"
	StatusSuppressed Status = "suppressed"
	StatusRetired    Status = "retired"
)

// Interval is a half-open span [Start, End) in seconds.
type Interval struct {
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

// Validate checks that the bounds are finite, non-negative and ordered.
func (iv Interval) Validate() error {
	for _, v := range []float64{iv.Start, iv.End} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: bounds must be finite", ErrInvalidInterval)
		}
		if v < 0 {
			return fmt.Errorf("%w: bounds must be non-negative", ErrInvalidInterval)
		}
	}
	if iv.Start >= iv.End {
		return fmt.Errorf("%w: start_time must be before end_time", ErrInvalidInterval)
	}
	return nil
}

// Overlaps reports whether two half-open intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// Contains reports whether t falls in [Start, End).
func (iv Interval) Contains(t float64) bool {
	return t >= iv.Start && t < iv.End
}

// Segment is one submitted advertisement interval with its vote state.
type Segment struct {
	ID          int64     `json:"id"`
	VideoID     int64     `json:"-"`
	Video       VideoKey  `json:"-"`
	Start       float64   `json:"start_time"`
	End         float64   `json:"end_time"`
	Category    Category  `json:"category"`
	Upvotes     int       `json:"upvotes"`
	Downvotes   int       `json:"downvotes"`
	VoteCount   int       `json:"-"` // real votes; the submission prior is not counted
	Confidence  float64   `json:"confidence"`
	Active      bool      `json:"active"`
	Status      Status    `json:"-"`
	SubmitterID string    `json:"-"`
	SkipCount   int       `json:"-"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// Interval returns the segment's time span.
func (s Segment) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// SetStatus updates the status and keeps the wire-level active flag in step.
func (s *Segment) SetStatus(st Status) {
	s.Status = st
	s.Active = st == StatusActive
}

// SegmentsResponse is the API response for GET /api/v1/segments.
type SegmentsResponse struct {
	Segments []Segment `json:"segments"`
}

// SubmitRequest is the API request body for POST /api/v1/segments.
type SubmitRequest struct {
	VideoID   string   `json:"video_id"`
	PartID    string   `json:"part_id"`
	StartTime float64  `json:"start_time"`
	EndTime   float64  `json:"end_time"`
	Category  Category `json:"category"`
}

// SubmitResponse is returned with 201 after a successful submission.
type SubmitResponse struct {
	ID           int64 `json:"id"`
	PointsEarned int   `json:"points_earned"`
}

// VoteRequest is the API request body for POST /api/v1/segments/{id}/vote.
type VoteRequest struct {
	Direction Direction `json:"direction"`
}

// VoteResponse carries the recomputed confidence.
type VoteResponse struct {
	Confidence float64 `json:"confidence"`
}

// SkipResponse acknowledges a realized skip report.
type SkipResponse struct {
	Success bool `json:"success"`
}
