package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// maxHostResponseSize はメディアホストのレスポンスボディの上限。
const maxHostResponseSize = 1 << 20

// URLValidator はメディアホストが返したURLを検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// HostResolver は外部メディアホストのアップロードAPIを使用するバックエンド。
// POST {endpoint}/upload にmultipartでファイルを送信し、
// {"secure_url": "...", "duration": 12.3} 形式のレスポンスを受け取る。
type HostResolver struct {
	httpClient *http.Client
	validator  URLValidator
	logger     *slog.Logger
	endpoint   string
	apiKey     string
}

// NewHostResolver はHostResolverの新しいインスタンスを生成する。
// validatorがnilの場合、返却URLの検証は行わない。
func NewHostResolver(httpClient *http.Client, endpoint, apiKey string, validator URLValidator, logger *slog.Logger) *HostResolver {
	return &HostResolver{
		httpClient: httpClient,
		validator:  validator,
		logger:     logger,
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
	}
}

// Name はバックエンド名を返す。
func (h *HostResolver) Name() string { return "host" }

type hostUploadResponse struct {
	SecureURL string  `json:"secure_url"`
	Duration  float64 `json:"duration"`
}

// Resolve は一時ファイルをメディアホストにアップロードする。
// ファイルはパイプ経由でストリーミング送信し、メモリに全体を読み込まない。
func (h *HostResolver) Resolve(ctx context.Context, ref Ref) (*Resolved, error) {
	f, err := os.Open(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open upload: %v", ErrResolution, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", ref.Filename)
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.WriteField("resource_type", "auto")
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/upload", pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("%w: failed to build request: %v", ErrResolution, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		pr.Close()
		h.logger.Error("メディアホストへのアップロードに失敗しました",
			slog.String("field", ref.Field),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		h.logger.Error("メディアホストがエラーステータスを返しました",
			slog.String("field", ref.Field),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: media host returned status %d", ErrResolution, resp.StatusCode)
	}

	var body hostUploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxHostResponseSize)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to decode media host response: %v", ErrResolution, err)
	}
	if body.SecureURL == "" {
		return nil, fmt.Errorf("%w: media host returned no url", ErrResolution)
	}
	if h.validator != nil {
		if err := h.validator.ValidateURL(body.SecureURL); err != nil {
			return nil, fmt.Errorf("%w: media host returned unsafe url: %v", ErrResolution, err)
		}
	}

	return &Resolved{URL: body.SecureURL, DurationSeconds: body.Duration}, nil
}

// Discard はメディアホスト上のメディアを削除する。既に存在しない場合（404）は成功として扱う。
func (h *HostResolver) Discard(ctx context.Context, mediaURL string) error {
	form := url.Values{"url": {mediaURL}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/destroy", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to destroy media: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxHostResponseSize))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("media host returned status %d on destroy", resp.StatusCode)
	}
}

// compile-time interface check
var _ Backend = (*HostResolver)(nil)
