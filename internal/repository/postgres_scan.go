package repository

import (
	"database/sql"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/mediashare/internal/model"
)

// rowScanner は *sql.Row と *sql.Rows の共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// videoColumns は動画行の取得カラム。テーブル別名 v を前提とする。
const videoColumns = `v.id, v.owner_id, v.title, v.description, v.video_url, v.thumbnail_url,
		        v.duration_seconds, v.views, v.is_published, v.created_at, v.updated_at`

// tweetColumns は投稿行の取得カラム。テーブル別名 t を前提とする。
const tweetColumns = `t.id, t.owner_id, t.content, t.created_at, t.updated_at`

// ownerColumns はusersとのLEFT JOINで取得する所有者プロジェクションのカラム。
const ownerColumns = `u.id, u.full_name, u.username, u.avatar`

// scanVideo は動画行を読み取る。extraは動画カラムの後に続く追加カラムの格納先。
func scanVideo(row rowScanner, extra ...any) (*model.Video, error) {
	v := &model.Video{}
	var views pq.Int64Array
	dest := []any{
		&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.VideoURL, &v.ThumbnailURL,
		&v.DurationSeconds, &views, &v.IsPublished, &v.CreatedAt, &v.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	v.Views = []int64(views)
	if v.Views == nil {
		v.Views = []int64{}
	}
	return v, nil
}

// scanTweet は投稿行を読み取る。
func scanTweet(row rowScanner, extra ...any) (*model.Tweet, error) {
	t := &model.Tweet{}
	dest := []any{&t.ID, &t.OwnerID, &t.Content, &t.CreatedAt, &t.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return t, nil
}

// ownerScan はLEFT JOINされた所有者カラムの格納先。
// 参照先ユーザーが存在しない場合は全カラムがNULLになる。
type ownerScan struct {
	id       sql.NullString
	fullName sql.NullString
	username sql.NullString
	avatar   sql.NullString
}

func (o *ownerScan) dest() []any {
	return []any{&o.id, &o.fullName, &o.username, &o.avatar}
}

// projection は所有者プロジェクションを返す。ユーザーが存在しない場合はnil。
func (o *ownerScan) projection() *model.OwnerProjection {
	if !o.id.Valid {
		return nil
	}
	return &model.OwnerProjection{
		FullName: o.fullName.String,
		Username: o.username.String,
		Avatar:   o.avatar.String,
	}
}

// nullString はポインタをNULL許容文字列に変換する。nilはNULLになる。
func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// likePattern は部分一致検索用のLIKEパターンを生成する。
// ワイルドカード文字はエスケープする。
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
