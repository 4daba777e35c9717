package model

import "time"

// Tweet は短文投稿を表す。公開状態の概念は持たない。
type Tweet struct {
	ID        ID
	OwnerID   ID
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TweetWithOwner は投稿と所有者プロジェクションを結合したモデル。
type TweetWithOwner struct {
	Tweet
	Owner *OwnerProjection
}

// TweetPatch は投稿の部分更新内容。nilのフィールドは変更しない。
type TweetPatch struct {
	Content *string
}
