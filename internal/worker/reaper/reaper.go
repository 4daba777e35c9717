// Package reaper は参照されなくなったメディアの削除をリトライするワーカーを提供する。
// 動画の作成失敗・サムネイル差し替え・動画削除で残ったメディアは
// orphaned_mediaに登録され、このワーカーが指数バックオフで削除を試行する。
package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/mediashare/internal/media"
	"github.com/hitoshi/mediashare/internal/model"
	"github.com/hitoshi/mediashare/internal/repository"
)

// Recorder は削除試行の結果を記録するメトリクスのインターフェース。
type Recorder interface {
	RecordMediaReaped(outcome string)
}

// Config はReaperの設定。
type Config struct {
	BatchSize      int
	MaxConcurrency int
	MaxAttempts    int
}

// Reaper は削除待ちメディアを取得し、並列数を制限しながら削除する。
type Reaper struct {
	orphans   repository.OrphanedMediaRepository
	discarder media.Discarder
	recorder  Recorder
	logger    *slog.Logger
	config    Config
	now       func() time.Time
}

// NewReaper はReaperの新しいインスタンスを生成する。
// 0以下の設定値にはデフォルト値（50件、並列4、最大8回）を使用する。
func NewReaper(
	orphans repository.OrphanedMediaRepository,
	discarder media.Discarder,
	recorder Recorder,
	logger *slog.Logger,
	config Config,
) *Reaper {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 8
	}
	return &Reaper{
		orphans:   orphans,
		discarder: discarder,
		recorder:  recorder,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// Start はinterval間隔でRunOnceを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (r *Reaper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("メディア回収ワーカーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", r.config.MaxConcurrency),
		slog.Int("max_attempts", r.config.MaxAttempts),
	)

	// 起動直後に1回実行
	r.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("メディア回収ワーカーを停止しました")
			return
		case <-ticker.C:
			r.runLogged(ctx)
		}
	}
}

func (r *Reaper) runLogged(ctx context.Context) {
	if err := r.RunOnce(ctx); err != nil {
		r.logger.Error("メディア回収サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は削除期限に達したメディアを1バッチ取得し、並列で削除する。
// 個々の削除失敗はエラーとして返さず、行に記録して次回に回す。
func (r *Reaper) RunOnce(ctx context.Context) error {
	start := time.Now()

	due, err := r.orphans.ListDue(ctx, r.config.BatchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		r.logger.Debug("削除待ちのメディアはありません")
		return nil
	}

	var (
		mu     sync.Mutex
		counts = make(map[string]int, 3)
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, r.config.MaxConcurrency)
	var wg sync.WaitGroup

	for _, orphan := range due {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}

		go func(o *model.OrphanedMedia) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := r.reap(ctx, o)
			mu.Lock()
			counts[outcome]++
			mu.Unlock()
		}(orphan)
	}

	wg.Wait()

	r.logger.Info("メディア回収サイクルが完了しました",
		slog.Int("orphan_count", len(due)),
		slog.Int("deleted", counts[OutcomeDeleted]),
		slog.Int("retry", counts[OutcomeRetry]),
		slog.Int("abandoned", counts[OutcomeAbandoned]),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// reap は1件のメディアを削除し、結果に応じて行を更新する。
func (r *Reaper) reap(ctx context.Context, o *model.OrphanedMedia) string {
	discardErr := r.discarder.Discard(ctx, o.URL)
	if discardErr == nil {
		if err := r.orphans.Delete(ctx, o.ID); err != nil {
			// メディアは削除済み。次回のDiscardは冪等に成功する
			r.logger.Error("削除済みメディアの行削除に失敗しました",
				slog.String("orphan_id", o.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		r.record(OutcomeDeleted)
		return OutcomeDeleted
	}

	abandon := ShouldAbandon(o.Attempts, r.config.MaxAttempts)
	next := r.now().Add(CalculateBackoff(o.Attempts))
	if err := r.orphans.MarkFailed(ctx, o.ID, discardErr.Error(), next, abandon); err != nil {
		r.logger.Error("削除失敗の記録に失敗しました",
			slog.String("orphan_id", o.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	outcome := OutcomeRetry
	if abandon {
		outcome = OutcomeAbandoned
		r.logger.Warn("メディアの削除を断念しました",
			slog.String("orphan_id", o.ID.String()),
			slog.String("url", o.URL),
			slog.String("reason", o.Reason),
			slog.Int("attempts", o.Attempts+1),
			slog.String("error", discardErr.Error()),
		)
	} else {
		r.logger.Warn("メディアの削除に失敗しました",
			slog.String("orphan_id", o.ID.String()),
			slog.String("url", o.URL),
			slog.Int("attempts", o.Attempts+1),
			slog.Time("next_attempt_at", next),
			slog.String("error", discardErr.Error()),
		)
	}
	r.record(outcome)
	return outcome
}

func (r *Reaper) record(outcome string) {
	if r.recorder != nil {
		r.recorder.RecordMediaReaped(outcome)
	}
}
