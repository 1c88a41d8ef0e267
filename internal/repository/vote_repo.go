package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
)

// PreviousVote returns the direction a voter last cast on a segment.
func (t *pgVideoTx) PreviousVote(ctx context.Context, segmentID int64, voterID string) (model.Direction, bool, error) {
	var dir string
	err := t.tx.QueryRow(ctx, `
		SELECT direction FROM segment_votes WHERE segment_id = $1 AND voter_id = $2`,
		segmentID, voterID).Scan(&dir)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return model.Direction(dir), true, nil
}

// RecordVote inserts or flips the voter's ledger entry for a segment.
func (t *pgVideoTx) RecordVote(ctx context.Context, segmentID int64, voterID string, dir model.Direction) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO segment_votes (segment_id, voter_id, direction)
		VALUES ($1, $2, $3)
		ON CONFLICT (segment_id, voter_id) DO UPDATE
		SET direction = EXCLUDED.direction, created_at = NOW()`,
		segmentID, voterID, string(dir))
	t.dirty = true
	return err
}

// AwardPoints upserts the submitter and credits one submission.
func (t *pgVideoTx) AwardPoints(ctx context.Context, submitterID string, points int) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO submitters (submitter_id, points, submissions)
		VALUES ($1, $2, 1)
		ON CONFLICT (submitter_id) DO UPDATE
		SET points = submitters.points + EXCLUDED.points,
		    submissions = submitters.submissions + 1,
		    last_active = NOW()`,
		submitterID, points)
	return err
}
