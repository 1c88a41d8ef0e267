package model

import "time"

// Tier is the contribution level derived from a submitter's points.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Submitter is the attribution record for an opaque submitter reference.
type Submitter struct {
	SubmitterID string    `json:"userId"`
	Points      int       `json:"points"`
	Submissions int       `json:"submissions"`
	FirstSeen   time.Time `json:"-"`
	LastActive  time.Time `json:"-"`
}

// SubmitterResponse is the API response for submitter lookups.
type SubmitterResponse struct {
	SubmitterID string `json:"userId"`
	Points      int    `json:"points"`
	Tier        Tier   `json:"tier"`
	Submissions int    `json:"submissions"`
	AccountAge  int    `json:"accountAge"`
}

// Contribution is one segment listed in a submitter's history.
type Contribution struct {
	ID         int64    `json:"id"`
	VideoID    string   `json:"video_id"`
	PartID     string   `json:"part_id"`
	StartTime  float64  `json:"start_time"`
	EndTime    float64  `json:"end_time"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Active     bool     `json:"active"`
}

// ContributionsPage is a paged slice of a submitter's contributions.
type ContributionsPage struct {
	List     []Contribution `json:"list"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int            `json:"total"`
}

// StatsOverview is the API response for GET /api/v1/stats/overview.
type StatsOverview struct {
	TotalVideos     int `json:"total_videos"`
	TotalSegments   int `json:"total_segments"`
	ActiveSegments  int `json:"active_segments"`
	TotalVotes      int `json:"total_votes"`
	TotalSkips      int `json:"total_skips"`
	TotalSubmitters int `json:"total_users"`
}

// PopularVideo is one row of the popular-videos ranking.
type PopularVideo struct {
	VideoID      string `json:"video_id"`
	PartID       string `json:"part_id"`
	SegmentCount int    `json:"annotation_count"`
}

// TopSubmitter is one row of the top-users ranking.
type TopSubmitter struct {
	SubmitterID string `json:"userId"`
	Points      int    `json:"total_points"`
	Tier        Tier   `json:"tier"`
}
