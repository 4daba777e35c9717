// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/mediashare/internal/model"
	"github.com/hitoshi/mediashare/internal/ownership"
)

// UserRepository はユーザーデータの参照インターフェース。
// ユーザーの作成・削除は外部の認証サービスが行う。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id model.ID) (*model.User, error)
}

// SessionRepository はセッションデータの参照インターフェース。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// VideoRepository は動画データの永続化インターフェース。
// 変更系の操作は所有権検証済みのProofを必須とし、
// 対象はProofのリソースIDと所有者IDの両方で絞り込む。
type VideoRepository interface {
	// Create は動画を作成する。作成日時・更新日時はストレージ側で設定される。
	Create(ctx context.Context, video *model.Video) error

	// FindByID は指定IDの動画を取得する。公開状態は問わない。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id model.ID) (*model.Video, error)

	// UpdateByID はProofが示す動画を部分更新し、更新後の行と更新前のサムネイルURLを返す。
	// 更新時点で行が存在しない場合はnilを返す。
	UpdateByID(ctx context.Context, proof ownership.Proof, patch model.VideoPatch) (*model.Video, string, error)

	// DeleteByID はProofが示す動画を削除し、削除した行を返す。
	// 行が存在しない場合はnilを返す。
	DeleteByID(ctx context.Context, proof ownership.Proof) (*model.Video, error)

	// TogglePublished は公開状態を単一のUPDATE文で反転する。
	// 行が存在しない場合はnilを返す。
	TogglePublished(ctx context.Context, proof ownership.Proof) (*model.Video, error)

	// ListByOwnerWithOwner は所有者の動画一覧を所有者プロジェクション付きで返す。
	// created_at降順。includeUnpublishedがfalseの場合は公開中のみ返す。
	ListByOwnerWithOwner(ctx context.Context, ownerID model.ID, includeUnpublished bool) ([]model.VideoWithOwner, error)

	// List は公開中の動画を検索・ソート・ページングして返す。
	// 2番目の戻り値はページングに関係なく条件に一致する総件数。
	List(ctx context.Context, query model.VideoListQuery) ([]model.VideoWithOwner, int, error)
}

// TweetRepository は短文投稿データの永続化インターフェース。
type TweetRepository interface {
	// Create は投稿を作成する。
	Create(ctx context.Context, tweet *model.Tweet) error

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id model.ID) (*model.Tweet, error)

	// UpdateByID はProofが示す投稿を部分更新する。行が存在しない場合はnilを返す。
	UpdateByID(ctx context.Context, proof ownership.Proof, patch model.TweetPatch) (*model.Tweet, error)

	// DeleteByID はProofが示す投稿を削除し、削除した行を返す。行が存在しない場合はnilを返す。
	DeleteByID(ctx context.Context, proof ownership.Proof) (*model.Tweet, error)

	// ListByOwnerWithOwner は所有者の投稿一覧を所有者プロジェクション付きで返す。created_at降順。
	ListByOwnerWithOwner(ctx context.Context, ownerID model.ID) ([]model.TweetWithOwner, error)
}

// OrphanedMediaRepository は削除待ちメディアの永続化インターフェース。
type OrphanedMediaRepository interface {
	// Enqueue は削除待ちメディアを登録する。
	Enqueue(ctx context.Context, url, reason string) error

	// ListDue は削除を試行すべきメディアをnext_attempt_at昇順で最大limit件返す。
	// 放棄済みの行は含まない。
	ListDue(ctx context.Context, limit int) ([]*model.OrphanedMedia, error)

	// MarkFailed は削除失敗を記録し、次回試行日時を設定する。
	// abandonがtrueの場合は以後の試行対象から外す。
	MarkFailed(ctx context.Context, id model.ID, lastError string, nextAttemptAt time.Time, abandon bool) error

	// Delete は削除が完了したメディアの行を削除する。
	Delete(ctx context.Context, id model.ID) error
}
