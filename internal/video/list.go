package video

import (
	"math"
	"strconv"
	"strings"

	"github.com/hitoshi/mediashare/internal/model"
)

// 一覧取得のページサイズ
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// ListParams はクエリ文字列から受け取った一覧取得パラメータ。
// 空文字列はデフォルト値を意味する。
type ListParams struct {
	Page     string
	Limit    string
	Query    string
	SortBy   string
	SortType string
	UserID   string
}

// Parse はパラメータを検証し、検索条件に変換する。
func (p ListParams) Parse() (model.VideoListQuery, error) {
	q := model.VideoListQuery{
		Page:     1,
		Limit:    DefaultPageLimit,
		Search:   strings.TrimSpace(p.Query),
		SortBy:   model.VideoSortCreatedAt,
		SortType: model.SortDesc,
	}

	if p.Page != "" {
		n, err := strconv.Atoi(p.Page)
		if err != nil || n < 1 {
			return q, model.NewValidationError("page", "must be a positive integer")
		}
		q.Page = n
	}

	if p.Limit != "" {
		n, err := strconv.Atoi(p.Limit)
		if err != nil || n < 1 || n > MaxPageLimit {
			return q, model.NewValidationError("limit", "must be between 1 and "+strconv.Itoa(MaxPageLimit))
		}
		q.Limit = n
	}

	// 取得開始位置 (page-1)*limit がintに収まらないページは受け付けない
	if q.Page > math.MaxInt/q.Limit {
		return q, model.NewValidationError("page", "out of range")
	}

	if p.SortBy != "" {
		switch f := model.VideoSortField(p.SortBy); f {
		case model.VideoSortCreatedAt, model.VideoSortUpdatedAt, model.VideoSortTitle, model.VideoSortDuration:
			q.SortBy = f
		default:
			return q, model.NewValidationError("sortBy", "unsupported sort field")
		}
	}

	if p.SortType != "" {
		switch d := model.SortDirection(strings.ToLower(p.SortType)); d {
		case model.SortAsc, model.SortDesc:
			q.SortType = d
		default:
			return q, model.NewValidationError("sortType", "must be asc or desc")
		}
	}

	if p.UserID != "" {
		id, err := model.ParseID(p.UserID)
		if err != nil {
			return q, model.NewValidationError("userId", "malformed id")
		}
		q.OwnerID = &id
	}

	return q, nil
}
