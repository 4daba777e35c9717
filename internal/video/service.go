// Package video は動画コンテンツの作成・取得・更新・削除・公開状態切り替えを提供する。
package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/mediashare/internal/media"
	"github.com/hitoshi/mediashare/internal/model"
	"github.com/hitoshi/mediashare/internal/ownership"
	"github.com/hitoshi/mediashare/internal/repository"
	"github.com/hitoshi/mediashare/internal/security"
)

// 削除待ちメディアの登録理由
const (
	ReasonCreateFailed     = "create_failed"
	ReasonUpdateFailed     = "update_failed"
	ReasonThumbnailReplace = "thumbnail_replaced"
	ReasonVideoDeleted     = "video_deleted"
)

// compensateTimeout は作成失敗時にアップロード済みメディアを即時削除する際のタイムアウト。
const compensateTimeout = 10 * time.Second

// OrphanQueue は削除待ちメディアの登録先。
type OrphanQueue interface {
	Enqueue(ctx context.Context, url, reason string) error
}

// Recorder はサービス層のメトリクス記録インターフェース。
type Recorder interface {
	RecordContentOperation(resource, operation, outcome string)
	RecordOrphanQueued(reason string)
}

// CreateInput は動画公開の入力。
type CreateInput struct {
	Title       string
	Description string
	VideoFile   *media.Ref
	Thumbnail   *media.Ref
}

// UpdateInput は動画更新の入力。サムネイルは毎回必須。
type UpdateInput struct {
	Title       string
	Description string
	Thumbnail   *media.Ref
}

// Service は動画コンテンツのユースケースを提供する。
type Service struct {
	videos    repository.VideoRepository
	users     repository.UserRepository
	guard     *ownership.Guard
	resolver  media.Resolver
	discarder media.Discarder
	orphans   OrphanQueue
	sanitizer security.ContentSanitizerService
	recorder  Recorder
	logger    *slog.Logger
}

// NewService は新しいServiceを生成する。
// 所有権の判定には videos.FindByID を使用する。recorderはnilでもよい。
func NewService(
	videos repository.VideoRepository,
	users repository.UserRepository,
	backend media.Backend,
	orphans OrphanQueue,
	sanitizer security.ContentSanitizerService,
	recorder Recorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		videos:    videos,
		users:     users,
		guard:     ownership.NewGuard(model.KindVideo, ownerLookup(videos)),
		resolver:  backend,
		discarder: backend,
		orphans:   orphans,
		sanitizer: sanitizer,
		recorder:  recorder,
		logger:    logger,
	}
}

// ownerLookup は動画リポジトリを所有者の検索に使うアダプタ。
func ownerLookup(videos repository.VideoRepository) ownership.LookupFunc {
	return func(ctx context.Context, id model.ID) (model.ID, bool, error) {
		v, err := videos.FindByID(ctx, id)
		if err != nil || v == nil {
			return model.NilID, false, err
		}
		return v.OwnerID, true, nil
	}
}

// Publish は動画とサムネイルを解決し、動画を作成する。
// どちらかの解決に失敗した場合はレコードを作成せず、解決済みのメディアは削除する。
func (s *Service) Publish(ctx context.Context, principal model.ID, in CreateInput) (video *model.Video, err error) {
	defer func() { s.record("create", err) }()

	title := s.sanitizer.SanitizeText(in.Title)
	description := s.sanitizer.SanitizeDescription(in.Description)
	if title == "" {
		return nil, model.NewValidationError("title", "required")
	}
	if description == "" {
		return nil, model.NewValidationError("description", "required")
	}
	if in.VideoFile == nil {
		return nil, model.NewMediaMissingError("videoFile")
	}
	if in.Thumbnail == nil {
		return nil, model.NewMediaMissingError("thumbnail")
	}

	resolved, err := media.ResolveAll(ctx, s.resolver, *in.VideoFile, *in.Thumbnail)
	if err != nil {
		s.compensate(ctx, resolved)
		s.logger.Warn("動画メディアの解決に失敗しました",
			slog.String("user_id", principal.String()),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamMediaError(err.Error())
	}

	// メディア解決中にキャンセルされた場合は保存しない
	if err := ctx.Err(); err != nil {
		s.compensate(ctx, resolved)
		return nil, fmt.Errorf("publish cancelled: %w", err)
	}

	video = &model.Video{
		ID:              model.NewID(),
		OwnerID:         principal,
		Title:           title,
		Description:     description,
		VideoURL:        resolved[0].URL,
		ThumbnailURL:    resolved[1].URL,
		DurationSeconds: resolved[0].DurationSeconds,
		Views:           []int64{},
		IsPublished:     true,
	}
	if err := s.videos.Create(ctx, video); err != nil {
		s.compensate(ctx, resolved)
		return nil, fmt.Errorf("failed to persist video: %w", err)
	}

	s.logger.Info("動画を公開しました",
		slog.String("video_id", video.ID.String()),
		slog.String("user_id", principal.String()),
	)
	return video, nil
}

// GetByID は公開中の動画を取得する。
// 不正なID、存在しない動画、非公開の動画はいずれも未検出エラーになる。
func (s *Service) GetByID(ctx context.Context, rawID string) (video *model.Video, err error) {
	defer func() { s.record("get", err) }()

	id, parseErr := model.ParseID(rawID)
	if parseErr != nil {
		return nil, model.NewContentNotFoundError(model.KindVideo, rawID)
	}

	video, err = s.videos.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	if video == nil || !video.IsPublished {
		return nil, model.NewContentNotFoundError(model.KindVideo, rawID)
	}
	return video, nil
}

// ListByOwner はユーザーの動画一覧を所有者プロジェクション付きで返す。
// ユーザーが存在しない場合と動画が1件も無い場合はどちらも未検出エラーになる。
// 非公開の動画は本人が閲覧する場合のみ含める。
func (s *Service) ListByOwner(ctx context.Context, principal model.ID, rawOwnerID string) (videos []model.VideoWithOwner, err error) {
	defer func() { s.record("list_by_owner", err) }()

	ownerID, parseErr := model.ParseID(rawOwnerID)
	if parseErr != nil {
		return nil, model.NewUserNotFoundError()
	}

	user, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find owner: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	videos, err = s.videos.ListByOwnerWithOwner(ctx, ownerID, principal == ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos by owner: %w", err)
	}
	if len(videos) == 0 {
		return nil, model.NewNoContentError(model.KindVideo)
	}
	return videos, nil
}

// List は公開中の動画を検索・ソート・ページングして返す。
// 該当が0件の場合も空のページを返す。
func (s *Service) List(ctx context.Context, params ListParams) (page *model.VideoPage, err error) {
	defer func() { s.record("list", err) }()

	query, err := params.Parse()
	if err != nil {
		return nil, err
	}

	videos, total, err := s.videos.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	return model.NewVideoPage(videos, total, query), nil
}

// Update は動画のタイトル・説明・サムネイルを更新する。
// 所有権の検証に失敗した場合（動画が存在しない場合を含む）は権限エラーになる。
// 新しいサムネイルは所有権の検証後に解決する。
func (s *Service) Update(ctx context.Context, principal model.ID, rawID string, in UpdateInput) (video *model.Video, err error) {
	defer func() { s.record("update", err) }()

	id, parseErr := model.ParseID(rawID)
	if parseErr != nil {
		return nil, model.NewContentNotFoundError(model.KindVideo, rawID)
	}

	title := s.sanitizer.SanitizeText(in.Title)
	description := s.sanitizer.SanitizeDescription(in.Description)
	if title == "" {
		return nil, model.NewValidationError("title", "required")
	}
	if description == "" {
		return nil, model.NewValidationError("description", "required")
	}
	if in.Thumbnail == nil {
		return nil, model.NewMediaMissingError("thumbnail")
	}

	proof, err := s.guard.Verify(ctx, id, principal)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, model.NewNotOwnerError(model.KindVideo)
		}
		return nil, err
	}

	thumb, err := s.resolver.Resolve(ctx, *in.Thumbnail)
	if err != nil {
		return nil, model.NewUpstreamMediaError(err.Error())
	}

	video, previousThumbnail, err := s.videos.UpdateByID(ctx, proof, model.VideoPatch{
		Title:        &title,
		Description:  &description,
		ThumbnailURL: &thumb.URL,
	})
	if err != nil {
		s.queueOrphans(ctx, ReasonUpdateFailed, thumb.URL)
		return nil, fmt.Errorf("failed to update video: %w", err)
	}
	if video == nil {
		s.queueOrphans(ctx, ReasonUpdateFailed, thumb.URL)
		return nil, model.NewUpdateFailedError(model.KindVideo)
	}

	if previousThumbnail != "" && previousThumbnail != thumb.URL {
		s.queueOrphans(ctx, ReasonThumbnailReplace, previousThumbnail)
	}
	return video, nil
}

// Delete は動画を削除する。動画ファイルとサムネイルは削除待ちとして登録する。
func (s *Service) Delete(ctx context.Context, principal model.ID, rawID string) (err error) {
	defer func() { s.record("delete", err) }()

	id, parseErr := model.ParseID(rawID)
	if parseErr != nil {
		return model.NewContentNotFoundError(model.KindVideo, rawID)
	}

	proof, err := s.guard.Verify(ctx, id, principal)
	if err != nil {
		return err
	}

	deleted, err := s.videos.DeleteByID(ctx, proof)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if deleted == nil {
		// 所有権の検証後に他のリクエストで削除された
		return model.NewContentNotFoundError(model.KindVideo, rawID)
	}

	s.queueOrphans(ctx, ReasonVideoDeleted, deleted.VideoURL, deleted.ThumbnailURL)
	s.logger.Info("動画を削除しました",
		slog.String("video_id", deleted.ID.String()),
		slog.String("user_id", principal.String()),
	)
	return nil
}

// TogglePublish は動画の公開状態を反転する。
func (s *Service) TogglePublish(ctx context.Context, principal model.ID, rawID string) (video *model.Video, err error) {
	defer func() { s.record("toggle_publish", err) }()

	id, parseErr := model.ParseID(rawID)
	if parseErr != nil {
		return nil, model.NewContentNotFoundError(model.KindVideo, rawID)
	}

	proof, err := s.guard.Verify(ctx, id, principal)
	if err != nil {
		return nil, err
	}

	video, err = s.videos.TogglePublished(ctx, proof)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle publish status: %w", err)
	}
	if video == nil {
		return nil, model.NewUpdateFailedError(model.KindVideo)
	}
	return video, nil
}

// compensate は作成に失敗した際に解決済みのメディアを削除する。
// 呼び出し元のコンテキストがキャンセル済みでも実行できるよう、キャンセルを切り離す。
// 削除できなかったメディアは削除待ちとして登録する。
func (s *Service) compensate(ctx context.Context, resolved []*media.Resolved) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	for _, r := range resolved {
		if r == nil {
			continue
		}
		if err := s.discarder.Discard(ctx, r.URL); err != nil {
			s.logger.Warn("アップロード済みメディアの削除に失敗しました",
				slog.String("url", r.URL),
				slog.String("error", err.Error()),
			)
			s.queueOrphans(ctx, ReasonCreateFailed, r.URL)
		}
	}
}

// queueOrphans はメディアを削除待ちとして登録する。
// 登録の失敗は操作自体の失敗にはせず、ログに残す。
func (s *Service) queueOrphans(ctx context.Context, reason string, urls ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := s.orphans.Enqueue(ctx, u, reason); err != nil {
			s.logger.Error("削除待ちメディアの登録に失敗しました",
				slog.String("url", u),
				slog.String("reason", reason),
				slog.String("error", err.Error()),
			)
			continue
		}
		if s.recorder != nil {
			s.recorder.RecordOrphanQueued(reason)
		}
	}
}

// record は操作結果をメトリクスに記録する。
func (s *Service) record(operation string, err error) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordContentOperation(string(model.KindVideo), operation, outcomeOf(err))
}

// outcomeOf はエラーをメトリクスのラベル値に変換する。
func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return model.ErrCodeInternal
}
