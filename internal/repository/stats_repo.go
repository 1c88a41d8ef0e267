package repository

import (
	"context"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
)

type StatsRepo struct {
	db DB
}

func NewStatsRepo(db DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// Overview returns aggregate counts across all tables.
func (r *StatsRepo) Overview(ctx context.Context) (*model.StatsOverview, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM videos) AS total_videos,
			(SELECT COUNT(*) FROM segments) AS total_segments,
			(SELECT COUNT(*) FROM segments WHERE status = 'active') AS active_segments,
			(SELECT COALESCE(SUM(vote_count), 0) FROM segments) AS total_votes,
			(SELECT COALESCE(SUM(skip_count), 0) FROM segments) AS total_skips,
			(SELECT COUNT(*) FROM submitters) AS total_submitters`

	var stats model.StatsOverview
	err := r.db.QueryRow(ctx, query).Scan(
		&stats.TotalVideos, &stats.TotalSegments, &stats.ActiveSegments,
		&stats.TotalVotes, &stats.TotalSkips, &stats.TotalSubmitters,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// PopularVideos returns the videos with the most segments.
func (r *StatsRepo) PopularVideos(ctx context.Context, limit int) ([]model.PopularVideo, error) {
	rows, err := r.db.Query(ctx, `
		SELECT v.content_id, v.part_id, COUNT(s.id) AS segment_count
		FROM videos v
		LEFT JOIN segments s ON s.video_id = v.id
		GROUP BY v.id, v.content_id, v.part_id
		ORDER BY segment_count DESC, v.id
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := make([]model.PopularVideo, 0, limit)
	for rows.Next() {
		var p model.PopularVideo
		if err := rows.Scan(&p.VideoID, &p.PartID, &p.SegmentCount); err != nil {
			return nil, err
		}
		videos = append(videos, p)
	}
	return videos, rows.Err()
}

// TopSubmitters returns the submitters with the most points.
func (r *StatsRepo) TopSubmitters(ctx context.Context, limit int) ([]model.Submitter, error) {
	rows, err := r.db.Query(ctx, `
		SELECT submitter_id, points, submissions, first_seen, last_active
		FROM submitters
		ORDER BY points DESC, submitter_id
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]model.Submitter, 0, limit)
	for rows.Next() {
		var u model.Submitter
		if err := rows.Scan(&u.SubmitterID, &u.Points, &u.Submissions, &u.FirstSeen, &u.LastActive); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
