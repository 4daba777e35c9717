package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/mediashare/internal/model"
)

// PostgresOrphanedMediaRepo はPostgreSQLを使用した削除待ちメディアリポジトリ。
type PostgresOrphanedMediaRepo struct {
	db *sql.DB
}

// NewPostgresOrphanedMediaRepo はPostgresOrphanedMediaRepoを生成する。
func NewPostgresOrphanedMediaRepo(db *sql.DB) *PostgresOrphanedMediaRepo {
	return &PostgresOrphanedMediaRepo{db: db}
}

// Enqueue は削除待ちメディアを登録する。即時に試行対象となる。
func (r *PostgresOrphanedMediaRepo) Enqueue(ctx context.Context, url, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orphaned_media (id, url, reason) VALUES ($1, $2, $3)`,
		model.NewID(), url, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue orphaned media: %w", err)
	}
	return nil
}

// ListDue は削除を試行すべきメディアを取得する。
func (r *PostgresOrphanedMediaRepo) ListDue(ctx context.Context, limit int) ([]*model.OrphanedMedia, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, url, reason, attempts, last_error, next_attempt_at, abandoned_at, created_at
		 FROM orphaned_media
		 WHERE abandoned_at IS NULL AND next_attempt_at <= now()
		 ORDER BY next_attempt_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due orphaned media: %w", err)
	}
	defer rows.Close()

	var media []*model.OrphanedMedia
	for rows.Next() {
		m := &model.OrphanedMedia{}
		var abandonedAt sql.NullTime
		if err := rows.Scan(
			&m.ID, &m.URL, &m.Reason, &m.Attempts, &m.LastError,
			&m.NextAttemptAt, &abandonedAt, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan orphaned media: %w", err)
		}
		if abandonedAt.Valid {
			m.AbandonedAt = &abandonedAt.Time
		}
		media = append(media, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orphaned media: %w", err)
	}
	return media, nil
}

// MarkFailed は削除失敗を記録する。
func (r *PostgresOrphanedMediaRepo) MarkFailed(ctx context.Context, id model.ID, lastError string, nextAttemptAt time.Time, abandon bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE orphaned_media
		 SET attempts = attempts + 1,
		     last_error = $2,
		     next_attempt_at = $3,
		     abandoned_at = CASE WHEN $4 THEN now() ELSE NULL END
		 WHERE id = $1`,
		id, lastError, nextAttemptAt, abandon,
	)
	if err != nil {
		return fmt.Errorf("failed to mark orphaned media failed: %w", err)
	}
	return nil
}

// Delete は削除が完了したメディアの行を削除する。
func (r *PostgresOrphanedMediaRepo) Delete(ctx context.Context, id model.ID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM orphaned_media WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete orphaned media: %w", err)
	}
	return nil
}

// compile-time interface check
var _ OrphanedMediaRepository = (*PostgresOrphanedMediaRepo)(nil)
