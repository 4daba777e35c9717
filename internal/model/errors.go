package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, content, media, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeMediaMissing  = "MEDIA_MISSING"
	ErrCodeVideoNotFound = "VIDEO_NOT_FOUND"
	ErrCodeTweetNotFound = "TWEET_NOT_FOUND"
	ErrCodeUserNotFound  = "USER_NOT_FOUND"
	ErrCodeNotOwner      = "NOT_OWNER"
	ErrCodeUpstreamMedia = "UPSTREAM_MEDIA_ERROR"
	ErrCodeUpdateFailed  = "UPDATE_FAILED"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeRateLimit     = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRF          = "CSRF_TOKEN_INVALID"
)

// resourceLabel はエラーメッセージ用のリソース名を返す。
func resourceLabel(kind ResourceKind) string {
	switch kind {
	case KindVideo:
		return "動画"
	case KindTweet:
		return "投稿"
	default:
		return string(kind)
	}
}

// notFoundCode はリソース種別ごとの未検出エラーコードを返す。
func notFoundCode(kind ResourceKind) string {
	if kind == KindTweet {
		return ErrCodeTweetNotFound
	}
	return ErrCodeVideoNotFound
}

// NewValidationError は必須入力の欠落・不正エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s (%s)", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewMediaMissingError は必須メディアファイルの欠落エラーを生成する。
func NewMediaMissingError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeMediaMissing,
		Message:  fmt.Sprintf("メディアファイルが指定されていません: %s", field),
		Category: "validation",
		Action:   "ファイルを添付して再度お試しください。",
	}
}

// NewContentNotFoundError はコンテンツ未検出エラーを生成する。
// 非公開の動画も同じエラーになる。
func NewContentNotFoundError(kind ResourceKind, id string) *APIError {
	return &APIError{
		Code:     notFoundCode(kind),
		Message:  fmt.Sprintf("指定された%sが見つかりません: %s", resourceLabel(kind), id),
		Category: "content",
		Action:   fmt.Sprintf("%sIDを確認してください。", resourceLabel(kind)),
	}
}

// NewNoContentError はユーザーのコンテンツが1件も無い場合のエラーを生成する。
// 空リストではなく未検出として扱う。
func NewNoContentError(kind ResourceKind) *APIError {
	return &APIError{
		Code:     notFoundCode(kind),
		Message:  fmt.Sprintf("このユーザーの%sはありません。", resourceLabel(kind)),
		Category: "content",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "content",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewNotOwnerError は所有者以外による変更操作のエラーを生成する。
func NewNotOwnerError(kind ResourceKind) *APIError {
	return &APIError{
		Code:     ErrCodeNotOwner,
		Message:  fmt.Sprintf("この%sを変更する権限がありません。", resourceLabel(kind)),
		Category: "auth",
		Action:   "自分が作成したコンテンツのみ変更できます。",
	}
}

// NewUpstreamMediaError はメディアホストへのアップロード失敗エラーを生成する。
func NewUpstreamMediaError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamMedia,
		Message:  fmt.Sprintf("メディアのアップロードに失敗しました: %s", reason),
		Category: "media",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUpdateFailedError は更新対象が更新時点で存在しなかった場合のエラーを生成する。
func NewUpdateFailedError(kind ResourceKind) *APIError {
	return &APIError{
		Code:     ErrCodeUpdateFailed,
		Message:  fmt.Sprintf("%sの更新に失敗しました。", resourceLabel(kind)),
		Category: "system",
		Action:   "最新の状態を確認してから再度お試しください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です",
		Category: "auth",
		Action:   "ログインしてください",
	}
}

// NewInternalError は内部エラーを生成する。詳細はクライアントに返さない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "サーバー内部でエラーが発生しました。",
		Category: "system",
		Action:   "しばらく時間をおいてから再度お試しください。",
	}
}

// NewCSRFError はCSRFトークン検証の失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}
