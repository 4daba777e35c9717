package reaper

import "time"

const (
	// initialBackoff は指数バックオフの初回遅延（1分）。
	initialBackoff = time.Minute
	// maxBackoff は指数バックオフの最大遅延（6時間）。
	maxBackoff = 6 * time.Hour
)

// 削除試行の結果
const (
	OutcomeDeleted   = "deleted"
	OutcomeRetry     = "retry"
	OutcomeAbandoned = "abandoned"
)

// CalculateBackoff は失敗済みの試行回数に基づいて次回までの遅延を計算する。
// 初回1分、2倍ずつ増加、最大6時間。
func CalculateBackoff(attempts int) time.Duration {
	delay := initialBackoff
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// ShouldAbandon は今回の失敗で試行上限に達するかどうかを返す。
// attemptsは今回の試行より前の失敗回数。
func ShouldAbandon(attempts, maxAttempts int) bool {
	return attempts+1 >= maxAttempts
}
