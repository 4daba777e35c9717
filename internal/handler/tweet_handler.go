package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mediashare/internal/model"
	"github.com/hitoshi/mediashare/internal/tweet"
)

// TweetServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type TweetServiceInterface interface {
	Create(ctx context.Context, principal model.ID, rawContent string) (*model.Tweet, error)
	GetByID(ctx context.Context, rawID string) (*model.Tweet, error)
	ListByOwner(ctx context.Context, rawOwnerID string) ([]model.TweetWithOwner, error)
	Update(ctx context.Context, principal model.ID, rawID, rawContent string) (*model.Tweet, error)
	Delete(ctx context.Context, principal model.ID, rawID string) error
}

// maxTweetBodySize は投稿リクエストボディの最大バイト数。
const maxTweetBodySize = 16 << 10

// TweetHandler は短文投稿のHTTPハンドラー。
type TweetHandler struct {
	service TweetServiceInterface
}

// NewTweetHandler はTweetHandlerを生成する。
func NewTweetHandler(service TweetServiceInterface) *TweetHandler {
	return &TweetHandler{service: service}
}

// tweetRequest は投稿の作成・更新リクエストのボディ。
type tweetRequest struct {
	Content string `json:"content"`
}

// tweetResponse は投稿のAPIレスポンス。
type tweetResponse struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"owner_id"`
	Content   string         `json:"content"`
	Owner     *ownerResponse `json:"owner,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// decodeTweetRequest はリクエストボディを読み取る。失敗時は400を書き込みfalseを返す。
func decodeTweetRequest(w http.ResponseWriter, r *http.Request) (tweetRequest, bool) {
	var req tweetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTweetBodySize)).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return req, false
	}
	return req, true
}

// CreateTweet は投稿を作成する。
// POST /api/v1/tweets
func (h *TweetHandler) CreateTweet(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}
	req, ok := decodeTweetRequest(w, r)
	if !ok {
		return
	}

	t, err := h.service.Create(r.Context(), principal, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTweetResponse(t, nil))
}

// GetTweet は投稿を返す。
// GET /api/v1/tweets/{tweetId}
func (h *TweetHandler) GetTweet(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetByID(r.Context(), chi.URLParam(r, "tweetId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTweetResponse(t, nil))
}

// ListUserTweets はユーザーの投稿一覧を所有者情報付きで返す。
// GET /api/v1/tweets/user/{userId}
func (h *TweetHandler) ListUserTweets(w http.ResponseWriter, r *http.Request) {
	tweets, err := h.service.ListByOwner(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]tweetResponse, len(tweets))
	for i := range tweets {
		resp[i] = toTweetResponse(&tweets[i].Tweet, tweets[i].Owner)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateTweet は投稿本文を更新する。
// PATCH /api/v1/tweets/{tweetId}
func (h *TweetHandler) UpdateTweet(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}
	req, ok := decodeTweetRequest(w, r)
	if !ok {
		return
	}

	t, err := h.service.Update(r.Context(), principal, chi.URLParam(r, "tweetId"), req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTweetResponse(t, nil))
}

// DeleteTweet は投稿を削除する。
// DELETE /api/v1/tweets/{tweetId}
func (h *TweetHandler) DeleteTweet(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), principal, chi.URLParam(r, "tweetId")); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func toTweetResponse(t *model.Tweet, owner *model.OwnerProjection) tweetResponse {
	return tweetResponse{
		ID:        t.ID.String(),
		OwnerID:   t.OwnerID.String(),
		Content:   t.Content,
		Owner:     toOwnerResponse(owner),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// compile-time interface check
var _ TweetServiceInterface = (*tweet.Service)(nil)
