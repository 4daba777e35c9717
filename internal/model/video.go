package model

import "time"

// ResourceKind は所有権チェックの対象となるコンテンツ種別。
type ResourceKind string

const (
	// KindVideo は動画コンテンツ。
	KindVideo ResourceKind = "video"
	// KindTweet は短文投稿コンテンツ。
	KindTweet ResourceKind = "tweet"
)

// Video は公開動画を表す。
type Video struct {
	ID              ID
	OwnerID         ID // 作成時に設定され、以後変更されない
	Title           string
	Description     string
	VideoURL        string
	ThumbnailURL    string
	DurationSeconds float64
	Views           []int64 // 追記のみの視聴カウンタ列
	IsPublished     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// VideoWithOwner は動画と所有者プロジェクションを結合したモデル。
// usersとLEFT JOINして取得されるため、所有者が削除済みの場合Ownerはnilになる。
type VideoWithOwner struct {
	Video
	Owner *OwnerProjection
}

// VideoPatch は動画の部分更新内容。nilのフィールドは変更しない。
type VideoPatch struct {
	Title        *string
	Description  *string
	ThumbnailURL *string
}

// VideoSortField は動画一覧のソートキー。
type VideoSortField string

const (
	VideoSortCreatedAt VideoSortField = "createdAt"
	VideoSortUpdatedAt VideoSortField = "updatedAt"
	VideoSortTitle     VideoSortField = "title"
	VideoSortDuration  VideoSortField = "duration"
)

// SortDirection はソート方向。
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// VideoListQuery は公開動画一覧の検索条件。
// ページ番号は1始まり。
type VideoListQuery struct {
	Page     int
	Limit    int
	Search   string
	SortBy   VideoSortField
	SortType SortDirection
	OwnerID  *ID
}

// Offset はページ番号とページサイズから取得開始位置を計算する。
func (q VideoListQuery) Offset() int {
	if q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// VideoPage はページングされた動画一覧。
type VideoPage struct {
	Videos      []VideoWithOwner
	TotalDocs   int
	Page        int
	Limit       int
	TotalPages  int
	HasPrevPage bool
	HasNextPage bool
}

// NewVideoPage は総件数からページ情報を組み立てる。
func NewVideoPage(videos []VideoWithOwner, total int, q VideoListQuery) *VideoPage {
	totalPages := 0
	if q.Limit > 0 {
		totalPages = (total + q.Limit - 1) / q.Limit
	}
	if videos == nil {
		videos = []VideoWithOwner{}
	}
	return &VideoPage{
		Videos:      videos,
		TotalDocs:   total,
		Page:        q.Page,
		Limit:       q.Limit,
		TotalPages:  totalPages,
		HasPrevPage: q.Page > 1,
		HasNextPage: q.Page < totalPages,
	}
}
