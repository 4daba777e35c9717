package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mediashare/internal/model"
	"github.com/hitoshi/mediashare/internal/video"
)

// VideoServiceInterface は動画ハンドラーが必要とするサービスインターフェース。
type VideoServiceInterface interface {
	Publish(ctx context.Context, principal model.ID, in video.CreateInput) (*model.Video, error)
	GetByID(ctx context.Context, rawID string) (*model.Video, error)
	ListByOwner(ctx context.Context, principal model.ID, rawOwnerID string) ([]model.VideoWithOwner, error)
	List(ctx context.Context, params video.ListParams) (*model.VideoPage, error)
	Update(ctx context.Context, principal model.ID, rawID string, in video.UpdateInput) (*model.Video, error)
	Delete(ctx context.Context, principal model.ID, rawID string) error
	TogglePublish(ctx context.Context, principal model.ID, rawID string) (*model.Video, error)
}

// マルチパートのフィールド名
const (
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldVideoFile   = "videoFile"
	fieldThumbnail   = "thumbnail"
)

// VideoHandler は動画のHTTPハンドラー。
type VideoHandler struct {
	service VideoServiceInterface
	upload  UploadConfig
}

// NewVideoHandler はVideoHandlerを生成する。
func NewVideoHandler(service VideoServiceInterface, upload UploadConfig) *VideoHandler {
	return &VideoHandler{service: service, upload: upload}
}

// videoResponse は動画のAPIレスポンス。
type videoResponse struct {
	ID              string         `json:"id"`
	OwnerID         string         `json:"owner_id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	VideoURL        string         `json:"video_url"`
	ThumbnailURL    string         `json:"thumbnail_url"`
	DurationSeconds float64        `json:"duration"`
	Views           []int64        `json:"views"`
	IsPublished     bool           `json:"is_published"`
	Owner           *ownerResponse `json:"owner,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// videoPageResponse はページングされた動画一覧のAPIレスポンス。
type videoPageResponse struct {
	Videos      []videoResponse `json:"docs"`
	TotalDocs   int             `json:"total_docs"`
	Page        int             `json:"page"`
	Limit       int             `json:"limit"`
	TotalPages  int             `json:"total_pages"`
	HasPrevPage bool            `json:"has_prev_page"`
	HasNextPage bool            `json:"has_next_page"`
}

// ListVideos は公開動画の一覧を返す。
// GET /api/v1/videos?page=&limit=&query=&sortBy=&sortType=&userId=
func (h *VideoHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.service.List(r.Context(), video.ListParams{
		Page:     q.Get("page"),
		Limit:    q.Get("limit"),
		Query:    q.Get("query"),
		SortBy:   q.Get("sortBy"),
		SortType: q.Get("sortType"),
		UserID:   q.Get("userId"),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := videoPageResponse{
		Videos:      make([]videoResponse, len(page.Videos)),
		TotalDocs:   page.TotalDocs,
		Page:        page.Page,
		Limit:       page.Limit,
		TotalPages:  page.TotalPages,
		HasPrevPage: page.HasPrevPage,
		HasNextPage: page.HasNextPage,
	}
	for i := range page.Videos {
		resp.Videos[i] = toVideoResponse(&page.Videos[i].Video, page.Videos[i].Owner)
	}
	writeJSON(w, http.StatusOK, resp)
}

// PublishVideo は動画ファイルとサムネイルをアップロードして動画を公開する。
// POST /api/v1/videos (multipart: title, description, videoFile, thumbnail)
func (h *VideoHandler) PublishVideo(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	spool, err := spoolMultipart(w, r, h.upload, fieldVideoFile, fieldThumbnail)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	defer spool.Cleanup()

	v, err := h.service.Publish(r.Context(), principal, video.CreateInput{
		Title:       spool.Field(fieldTitle),
		Description: spool.Field(fieldDescription),
		VideoFile:   spool.File(fieldVideoFile),
		Thumbnail:   spool.File(fieldThumbnail),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toVideoResponse(v, nil))
}

// GetVideo は公開中の動画を返す。
// GET /api/v1/videos/{videoId}
func (h *VideoHandler) GetVideo(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.GetByID(r.Context(), chi.URLParam(r, "videoId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoResponse(v, nil))
}

// ListUserVideos はユーザーの動画一覧を所有者情報付きで返す。
// GET /api/v1/videos/user/{userId}
func (h *VideoHandler) ListUserVideos(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	videos, err := h.service.ListByOwner(r.Context(), principal, chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]videoResponse, len(videos))
	for i := range videos {
		resp[i] = toVideoResponse(&videos[i].Video, videos[i].Owner)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateVideo は動画のタイトル・説明・サムネイルを更新する。
// PATCH /api/v1/videos/{videoId} (multipart: title, description, thumbnail)
func (h *VideoHandler) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	spool, err := spoolMultipart(w, r, h.upload, fieldThumbnail)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	defer spool.Cleanup()

	v, err := h.service.Update(r.Context(), principal, chi.URLParam(r, "videoId"), video.UpdateInput{
		Title:       spool.Field(fieldTitle),
		Description: spool.Field(fieldDescription),
		Thumbnail:   spool.File(fieldThumbnail),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoResponse(v, nil))
}

// DeleteVideo は動画を削除する。
// DELETE /api/v1/videos/{videoId}
func (h *VideoHandler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), principal, chi.URLParam(r, "videoId")); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// TogglePublish は動画の公開状態を反転する。
// PATCH /api/v1/videos/{videoId}/publish
func (h *VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	v, err := h.service.TogglePublish(r.Context(), principal, chi.URLParam(r, "videoId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoResponse(v, nil))
}

// toVideoResponse はmodel.VideoからAPIレスポンスに変換する。
func toVideoResponse(v *model.Video, owner *model.OwnerProjection) videoResponse {
	views := v.Views
	if views == nil {
		views = []int64{}
	}
	return videoResponse{
		ID:              v.ID.String(),
		OwnerID:         v.OwnerID.String(),
		Title:           v.Title,
		Description:     v.Description,
		VideoURL:        v.VideoURL,
		ThumbnailURL:    v.ThumbnailURL,
		DurationSeconds: v.DurationSeconds,
		Views:           views,
		IsPublished:     v.IsPublished,
		Owner:           toOwnerResponse(owner),
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
	}
}

// compile-time interface check
var _ VideoServiceInterface = (*video.Service)(nil)
