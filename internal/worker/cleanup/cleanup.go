// Package cleanup は不要になった行の定期削除ジョブを提供する。
// 期限切れセッションと、回収を断念してから保持期間を過ぎた削除待ちメディアを削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// purge は1種類の削除対象。
type purge struct {
	name  string
	query string
}

var purges = []purge{
	{
		name:  "sessions",
		query: `DELETE FROM sessions WHERE expires_at < now() - $1::interval`,
	},
	{
		name:  "orphaned_media",
		query: `DELETE FROM orphaned_media WHERE abandoned_at IS NOT NULL AND abandoned_at < now() - $1::interval`,
	},
}

// CleanupJob は保持期間を過ぎた行の削除ジョブ。
// 削除は冪等で、対象がない場合もエラーにならない。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int // 期限切れ・断念後の保持日数（デフォルト: 7）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger, retentionDays int) *CleanupJob {
	if retentionDays < 0 {
		retentionDays = 7
	}
	return &CleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: retentionDays,
	}
}

// Run は各削除対象に対してDELETEを実行する。
// 1つが失敗しても残りは実行し、最初のエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	interval := fmt.Sprintf("%d days", j.RetentionDays)

	var firstErr error
	for _, p := range purges {
		start := time.Now()
		deleted, err := j.exec(ctx, p, interval)
		if err != nil {
			j.logger.Error("クリーンアップジョブの実行に失敗しました",
				slog.String("target", p.name),
				slog.String("error", err.Error()),
				slog.Int("retention_days", j.RetentionDays),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("%sのクリーンアップに失敗: %w", p.name, err)
			}
			continue
		}

		j.logger.Info("クリーンアップジョブが完了しました",
			slog.String("target", p.name),
			slog.Int64("deleted_count", deleted),
			slog.Int("retention_days", j.RetentionDays),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}
	return firstErr
}

func (j *CleanupJob) exec(ctx context.Context, p purge, interval string) (int64, error) {
	result, err := j.db.ExecContext(ctx, p.query, interval)
	if err != nil {
		return 0, err
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return deleted, nil
}

// Start はinterval間隔でRunを実行する。コンテキストがキャンセルされるまで継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_ = j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
