package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/mediashare/internal/middleware"
	"github.com/hitoshi/mediashare/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// invalidRequestError はリクエストボディを解析できない場合のエラー。
func invalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     model.ErrCodeValidation,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しい形式でリクエストしてください。",
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeMediaMissing:
		return http.StatusBadRequest
	case model.ErrCodeVideoNotFound, model.ErrCodeTweetNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeNotOwner, model.ErrCodeCSRF:
		return http.StatusForbidden
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeUpstreamMedia:
		return http.StatusBadGateway
	case model.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// principalFrom はリクエストの認証済みユーザーIDを返す。未認証の場合は401を書き込みfalseを返す。
func principalFrom(w http.ResponseWriter, r *http.Request) (model.ID, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return model.NilID, false
	}
	return userID, true
}

// ownerResponse は所有者プロジェクションのAPIレスポンス。
type ownerResponse struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

func toOwnerResponse(owner *model.OwnerProjection) *ownerResponse {
	if owner == nil {
		return nil
	}
	return &ownerResponse{
		FullName: owner.FullName,
		Username: owner.Username,
		Avatar:   owner.Avatar,
	}
}
