package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
)

// NotifyChannel is the Postgres channel every committed video update is
// announced on. The payload is the video key in "content/part" form.
const NotifyChannel = "segment_changes"

const segmentColumns = `
	s.id, s.video_id, v.content_id, v.part_id, s.start_time, s.end_time, s.category,
	s.upvotes, s.downvotes, s.vote_count, s.confidence, s.status, s.submitter_id,
	s.skip_count, s.created_at, s.updated_at`

type SegmentRepo struct {
	db DB
}

func NewSegmentRepo(db DB) *SegmentRepo {
	return &SegmentRepo{db: db}
}

// UpdateVideo locks the video row with SELECT ... FOR UPDATE so that every
// read-modify-write on the video's segments is serialized.
func (r *SegmentRepo) UpdateVideo(ctx context.Context, key model.VideoKey, create bool, fn func(tx VideoTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Ensure video exists (auto-create on first annotation)
	if create {
		_, err = tx.Exec(ctx, `
			INSERT INTO videos (content_id, part_id) VALUES ($1, $2)
			ON CONFLICT (content_id, part_id) DO NOTHING`,
			key.ContentID, key.PartID)
		if err != nil {
			return err
		}
	}

	var video model.Video
	err = tx.QueryRow(ctx, `
		SELECT id, content_id, part_id, created_at
		FROM videos
		WHERE content_id = $1 AND part_id = $2
		FOR UPDATE`,
		key.ContentID, key.PartID).Scan(&video.ID, &video.ContentID, &video.PartID, &video.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	if err != nil {
		return err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+segmentColumns+`
		FROM segments s
		JOIN videos v ON v.id = s.video_id
		WHERE s.video_id = $1
		ORDER BY s.start_time, s.id`,
		video.ID)
	if err != nil {
		return err
	}
	segs, err := scanSegments(rows)
	if err != nil {
		return err
	}

	vtx := &pgVideoTx{tx: tx, video: video, segs: segs}
	if err := fn(vtx); err != nil {
		return err
	}

	// Delivered to listeners only when the transaction commits. Read-only
	// passes stay silent so listeners that re-resolve do not wake themselves.
	if vtx.dirty {
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, key.String()); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// VideoOf returns the video key owning a segment.
func (r *SegmentRepo) VideoOf(ctx context.Context, segmentID int64) (model.VideoKey, error) {
	var key model.VideoKey
	err := r.db.QueryRow(ctx, `
		SELECT v.content_id, v.part_id
		FROM segments s
		JOIN videos v ON v.id = s.video_id
		WHERE s.id = $1`,
		segmentID).Scan(&key.ContentID, &key.PartID)
	if errors.Is(err, pgx.ErrNoRows) {
		return key, model.ErrNotFound
	}
	return key, err
}

// ListActive returns the active set for a video. An unknown video yields an
// empty slice, not an error.
func (r *SegmentRepo) ListActive(ctx context.Context, key model.VideoKey) ([]model.Segment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+segmentColumns+`
		FROM segments s
		JOIN videos v ON v.id = s.video_id
		WHERE v.content_id = $1 AND v.part_id = $2
		  AND s.status = 'active'
		ORDER BY s.start_time, s.id`,
		key.ContentID, key.PartID)
	if err != nil {
		return nil, err
	}
	return scanSegments(rows)
}

// RecordSkip increments the realized-skip counter of an active segment.
func (r *SegmentRepo) RecordSkip(ctx context.Context, segmentID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE segments SET skip_count = skip_count + 1
		WHERE id = $1 AND status = 'active'`,
		segmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// VideoKeys returns every known video identity. Used by the resolve worker
// for a full sweep.
func (r *SegmentRepo) VideoKeys(ctx context.Context) ([]model.VideoKey, error) {
	rows, err := r.db.Query(ctx, `SELECT content_id, part_id FROM videos ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []model.VideoKey
	for rows.Next() {
		var k model.VideoKey
		if err := rows.Scan(&k.ContentID, &k.PartID); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func scanSegments(rows pgx.Rows) ([]model.Segment, error) {
	defer rows.Close()

	segs := make([]model.Segment, 0)
	for rows.Next() {
		var s model.Segment
		var category, status string
		err := rows.Scan(
			&s.ID, &s.VideoID, &s.Video.ContentID, &s.Video.PartID, &s.Start, &s.End, &category,
			&s.Upvotes, &s.Downvotes, &s.VoteCount, &s.Confidence, &status, &s.SubmitterID,
			&s.SkipCount, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		s.Category = model.Category(category)
		s.SetStatus(model.Status(status))
		segs = append(segs, s)
	}
	return segs, rows.Err()
}

// pgVideoTx implements VideoTx on top of an open pgx transaction.
type pgVideoTx struct {
	tx    pgx.Tx
	video model.Video
	segs  []model.Segment
	dirty bool
}

func (t *pgVideoTx) Video() model.Video { return t.video }

func (t *pgVideoTx) Segments() []model.Segment {
	out := make([]model.Segment, len(t.segs))
	copy(out, t.segs)
	return out
}

func (t *pgVideoTx) Insert(ctx context.Context, seg *model.Segment) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO segments (video_id, start_time, end_time, category, upvotes, downvotes,
		                      vote_count, confidence, status, submitter_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		t.video.ID, seg.Start, seg.End, string(seg.Category), seg.Upvotes, seg.Downvotes,
		seg.VoteCount, seg.Confidence, string(seg.Status), seg.SubmitterID,
	).Scan(&seg.ID, &seg.CreatedAt, &seg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	seg.VideoID = t.video.ID
	seg.Video = t.video.Key()
	t.dirty = true

	t.segs = append(t.segs, *seg)
	sort.SliceStable(t.segs, func(i, j int) bool {
		if t.segs[i].Start != t.segs[j].Start {
			return t.segs[i].Start < t.segs[j].Start
		}
		return t.segs[i].ID < t.segs[j].ID
	})
	return nil
}

func (t *pgVideoTx) Save(ctx context.Context, seg model.Segment) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE segments
		SET upvotes = $1, downvotes = $2, vote_count = $3, confidence = $4,
		    status = $5, updated_at = NOW()
		WHERE id = $6 AND video_id = $7`,
		seg.Upvotes, seg.Downvotes, seg.VoteCount, seg.Confidence, string(seg.Status),
		seg.ID, t.video.ID)
	if err != nil {
		return fmt.Errorf("save segment %d: %w", seg.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	for i := range t.segs {
		if t.segs[i].ID == seg.ID {
			t.segs[i] = seg
		}
	}
	t.dirty = true
	return nil
}
