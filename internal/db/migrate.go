package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup. Segments are never deleted;
// status moves them between active, suppressed and retired.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS videos (
		id         BIGSERIAL PRIMARY KEY,
		content_id VARCHAR(64) NOT NULL,
		part_id    VARCHAR(32) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (content_id, part_id)
	)`,
	`CREATE TABLE IF NOT EXISTS segments (
		id           BIGSERIAL PRIMARY KEY,
		video_id     BIGINT NOT NULL REFERENCES videos(id),
		start_time   DOUBLE PRECISION NOT NULL CHECK (start_time >= 0),
		end_time     DOUBLE PRECISION NOT NULL CHECK (end_time > start_time),
		category     VARCHAR(20) NOT NULL,
		upvotes      INT NOT NULL DEFAULT 0,
		downvotes    INT NOT NULL DEFAULT 0,
		vote_count   INT NOT NULL DEFAULT 0,
		confidence   DOUBLE PRECISION NOT NULL DEFAULT 0.5,
		status       VARCHAR(12) NOT NULL DEFAULT 'active',
		submitter_id VARCHAR(64) NOT NULL DEFAULT '',
		skip_count   INT NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_segments_video_start ON segments (video_id, start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_segments_submitter ON segments (submitter_id, id DESC)`,
	`CREATE TABLE IF NOT EXISTS segment_votes (
		segment_id BIGINT NOT NULL REFERENCES segments(id),
		voter_id   VARCHAR(64) NOT NULL,
		direction  VARCHAR(4) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (segment_id, voter_id)
	)`,
	`CREATE TABLE IF NOT EXISTS submitters (
		submitter_id VARCHAR(64) PRIMARY KEY,
		points       INT NOT NULL DEFAULT 0,
		submissions  INT NOT NULL DEFAULT 0,
		first_seen   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_active  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the tables and indexes if they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
