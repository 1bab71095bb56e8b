package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pestai/api/internal/analysis/types"
)

// AnalysisRepo archives computed analyses in Postgres. It is written from the
// request path and never read back: serving stays on the response cache.
type AnalysisRepo struct{ DB *sql.DB }

func NewAnalysisRepo(db *sql.DB) *AnalysisRepo { return &AnalysisRepo{DB: db} }

// EnsureSchema creates the analyses table if it does not exist.
func (r *AnalysisRepo) EnsureSchema(ctx context.Context) error {
	const q = `
create table if not exists analyses (
  image_hash   text        not null,
  model        text        not null,
  content_type text        not null,
  subject_type text        not null,
  detections   integer     not null,
  result_json  jsonb       not null,
  created_at   timestamptz not null default now(),
  updated_at   timestamptz not null default now(),
  seen_count   integer     not null default 1,
  primary key (image_hash, model)
)`
	if _, err := r.DB.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create analyses table: %w", err)
	}
	return nil
}

// Upsert stores the analysis for (image_hash, model). A repeat overwrites
// the result and bumps seen_count; it happens when the cache entry expired.
func (r *AnalysisRepo) Upsert(ctx context.Context, imageHash, model, contentType string, res *types.AnalysisResponse) (int, error) {
	if res == nil {
		return 0, errors.New("nil analysis")
	}
	js, err := json.Marshal(res)
	if err != nil {
		return 0, err
	}
	const q = `
insert into analyses (image_hash, model, content_type, subject_type, detections, result_json)
values ($1,$2,$3,$4,$5,$6)
on conflict (image_hash, model) do update
set content_type = excluded.content_type,
    subject_type = excluded.subject_type,
    detections   = excluded.detections,
    result_json  = excluded.result_json,
    updated_at   = now(),
    seen_count   = analyses.seen_count + 1
returning seen_count`
	var seen int
	err = r.DB.QueryRowContext(ctx, q,
		imageHash, model, contentType, string(res.Subject.SubjectType), len(res.Detections), js,
	).Scan(&seen)
	if err != nil {
		return 0, fmt.Errorf("upsert analysis: %w", err)
	}
	return seen, nil
}

// PurgeOlderThan deletes rows not refreshed within olderThan.
func (r *AnalysisRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	const q = `delete from analyses where updated_at < $1`
	res, err := r.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
