package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
)

type UserRepo struct {
	db DB
}

func NewUserRepo(db DB) *UserRepo {
	return &UserRepo{db: db}
}

// FindSubmitter returns the attribution record for a submitter.
func (r *UserRepo) FindSubmitter(ctx context.Context, submitterID string) (*model.Submitter, error) {
	var u model.Submitter
	err := r.db.QueryRow(ctx, `
		SELECT submitter_id, points, submissions, first_seen, last_active
		FROM submitters
		WHERE submitter_id = $1`,
		submitterID).Scan(&u.SubmitterID, &u.Points, &u.Submissions, &u.FirstSeen, &u.LastActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListContributions returns one page of a submitter's segments, newest
// first, together with the submitter's total segment count.
func (r *UserRepo) ListContributions(ctx context.Context, submitterID string, limit, offset int) ([]model.Contribution, int, error) {
	var total int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM segments WHERE submitter_id = $1`,
		submitterID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT s.id, v.content_id, v.part_id, s.start_time, s.end_time, s.category,
		       s.confidence, s.status
		FROM segments s
		JOIN videos v ON v.id = s.video_id
		WHERE s.submitter_id = $1
		ORDER BY s.id DESC
		LIMIT $2 OFFSET $3`,
		submitterID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := make([]model.Contribution, 0, limit)
	for rows.Next() {
		var c model.Contribution
		var category, status string
		if err := rows.Scan(&c.ID, &c.VideoID, &c.PartID, &c.StartTime, &c.EndTime,
			&category, &c.Confidence, &status); err != nil {
			return nil, 0, err
		}
		c.Category = model.Category(category)
		c.Active = model.Status(status) == model.StatusActive
		list = append(list, c)
	}
	return list, total, rows.Err()
}
