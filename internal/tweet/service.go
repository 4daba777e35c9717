// Package tweet は短文投稿の作成・取得・更新・削除を提供する。
package tweet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/mediashare/internal/model"
	"github.com/hitoshi/mediashare/internal/ownership"
	"github.com/hitoshi/mediashare/internal/repository"
	"github.com/hitoshi/mediashare/internal/security"
)

// Recorder はサービス層のメトリクス記録インターフェース。
type Recorder interface {
	RecordContentOperation(resource, operation, outcome string)
}

// Service は短文投稿のユースケースを提供する。
type Service struct {
	tweets    repository.TweetRepository
	users     repository.UserRepository
	guard     *ownership.Guard
	sanitizer security.ContentSanitizerService
	recorder  Recorder
	logger    *slog.Logger
}

// NewService は新しいServiceを生成する。recorderはnilでもよい。
func NewService(
	tweets repository.TweetRepository,
	users repository.UserRepository,
	sanitizer security.ContentSanitizerService,
	recorder Recorder,
	logger *slog.Logger,
) *Service {
	lookup := ownership.LookupFunc(func(ctx context.Context, id model.ID) (model.ID, bool, error) {
		t, err := tweets.FindByID(ctx, id)
		if err != nil || t == nil {
			return model.NilID, false, err
		}
		return t.OwnerID, true, nil
	})
	return &Service{
		tweets:    tweets,
		users:     users,
		guard:     ownership.NewGuard(model.KindTweet, lookup),
		sanitizer: sanitizer,
		recorder:  recorder,
		logger:    logger,
	}
}

// validateContent は本文をサニタイズし、必須チェックを行う。長さの上限は設けない。
func (s *Service) validateContent(raw string) (string, error) {
	content := s.sanitizer.SanitizeText(raw)
	if content == "" {
		return "", model.NewValidationError("content", "required")
	}
	return content, nil
}

// Create は投稿を作成する。
func (s *Service) Create(ctx context.Context, principal model.ID, rawContent string) (tweet *model.Tweet, err error) {
	defer func() { s.record("create", err) }()

	content, err := s.validateContent(rawContent)
	if err != nil {
		return nil, err
	}

	tweet = &model.Tweet{
		ID:      model.NewID(),
		OwnerID: principal,
		Content: content,
	}
	if err := s.tweets.Create(ctx, tweet); err != nil {
		return nil, fmt.Errorf("failed to persist tweet: %w", err)
	}

	s.logger.Info("投稿を作成しました",
		slog.String("tweet_id", tweet.ID.String()),
		slog.String("user_id", principal.String()),
	)
	return tweet, nil
}

// GetByID は投稿を取得する。
func (s *Service) GetByID(ctx context.Context, rawID string) (tweet *model.Tweet, err error) {
	defer func() { s.record("get", err) }()

	id, parseErr := model.ParseID(rawID)
	if parseErr != nil {
		return nil, model.NewContentNotFoundError(model.KindTweet, rawID)
	}

	tweet, err = s.tweets.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get tweet: %w", err)
	}
	if tweet == nil {
		return nil, model.NewContentNotFoundError(model.KindTweet, rawID)
	}
	return tweet, nil
}

// ListByOwner はユーザーの投稿一覧を所有者プロジェクション付きで返す。
// ユーザーが存在しない場合と投稿が1件も無い場合はどちらも未検出エラーになる。
func (s *Service) ListByOwner(ctx context.Context, rawOwnerID string) (tweets []model.TweetWithOwner, err error) {
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

	tweets, err = s.tweets.ListByOwnerWithOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tweets by owner: %w", err)
	}
	if len(tweets) == 0 {
		return nil, model.NewNoContentError(model.KindTweet)
	}
	return tweets, nil
}

// Update は投稿本文を更新する。
// 所有権の検証に失敗した場合（投稿が存在しない場合を含む）は権限エラーになる。
func (s *Service) Update(ctx context.Context, principal model.ID, rawID, rawContent string) (tweet *model.Tweet, err error) {
	defer func() { s.record("update", err) }()

	id, parseErr := model.ParseID(rawID)
	if parseErr != nil {
		return nil, model.NewContentNotFoundError(model.KindTweet, rawID)
	}

	content, err := s.validateContent(rawContent)
	if err != nil {
		return nil, err
	}

	proof, err := s.guard.Verify(ctx, id, principal)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, model.NewNotOwnerError(model.KindTweet)
		}
		return nil, err
	}

	tweet, err = s.tweets.UpdateByID(ctx, proof, model.TweetPatch{Content: &content})
	if err != nil {
		return nil, fmt.Errorf("failed to update tweet: %w", err)
	}
	if tweet == nil {
		return nil, model.NewUpdateFailedError(model.KindTweet)
	}
	return tweet, nil
}

// Delete は投稿を削除する。
func (s *Service) Delete(ctx context.Context, principal model.ID, rawID string) (err error) {
	defer func() { s.record("delete", err) }()

	id, parseErr := model.ParseID(rawID)
	if parseErr != nil {
		return model.NewContentNotFoundError(model.KindTweet, rawID)
	}

	proof, err := s.guard.Verify(ctx, id, principal)
	if err != nil {
		return err
	}

	deleted, err := s.tweets.DeleteByID(ctx, proof)
	if err != nil {
		return fmt.Errorf("failed to delete tweet: %w", err)
	}
	if deleted == nil {
		return model.NewContentNotFoundError(model.KindTweet, rawID)
	}

	s.logger.Info("投稿を削除しました",
		slog.String("tweet_id", deleted.ID.String()),
		slog.String("user_id", principal.String()),
	)
	return nil
}

func (s *Service) record(operation string, err error) {
	if s.recorder == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = model.ErrCodeInternal
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			outcome = apiErr.Code
		}
	}
	s.recorder.RecordContentOperation(string(model.KindTweet), operation, outcome)
}
