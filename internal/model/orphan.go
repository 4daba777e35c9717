package model

import "time"

// OrphanedMedia はメディアホスト上に残った参照されないメディア。
// ワーカーが削除をリトライする。
type OrphanedMedia struct {
	ID            ID
	URL           string
	Reason        string
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	AbandonedAt   *time.Time
	CreatedAt     time.Time
}
