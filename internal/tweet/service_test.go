package tweet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/mediashare/internal/model"
	"github.com/hitoshi/mediashare/internal/ownership"
	"github.com/hitoshi/mediashare/internal/security"
)

// --- モック ---

type mockTweetRepo struct {
	createFn     func(ctx context.Context, tweet *model.Tweet) error
	findByIDFn   func(ctx context.Context, id model.ID) (*model.Tweet, error)
	updateByIDFn func(ctx context.Context, proof ownership.Proof, patch model.TweetPatch) (*model.Tweet, error)
	deleteByIDFn func(ctx context.Context, proof ownership.Proof) (*model.Tweet, error)
	listFn       func(ctx context.Context, ownerID model.ID) ([]model.TweetWithOwner, error)
}

func (m *mockTweetRepo) Create(ctx context.Context, tweet *model.Tweet) error {
	if m.createFn != nil {
		return m.createFn(ctx, tweet)
	}
	return nil
}
func (m *mockTweetRepo) FindByID(ctx context.Context, id model.ID) (*model.Tweet, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockTweetRepo) UpdateByID(ctx context.Context, proof ownership.Proof, patch model.TweetPatch) (*model.Tweet, error) {
	return m.updateByIDFn(ctx, proof, patch)
}
func (m *mockTweetRepo) DeleteByID(ctx context.Context, proof ownership.Proof) (*model.Tweet, error) {
	return m.deleteByIDFn(ctx, proof)
}
func (m *mockTweetRepo) ListByOwnerWithOwner(ctx context.Context, ownerID model.ID) ([]model.TweetWithOwner, error) {
	return m.listFn(ctx, ownerID)
}

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id model.ID) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id model.ID) (*model.User, error) {
	return m.findByIDFn(ctx, id)
}

// --- ヘルパー ---

func newTestService(tweets *mockTweetRepo, users *mockUserRepo) *Service {
	if users == nil {
		users = &mockUserRepo{findByIDFn: func(ctx context.Context, id model.ID) (*model.User, error) { return nil, nil }}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(tweets, users, security.NewContentSanitizer(), nil, logger)
}

func storedTweet(owner model.ID) *model.Tweet {
	return &model.Tweet{ID: model.NewID(), OwnerID: owner, Content: "hello", CreatedAt: time.Now()}
}

func findReturning(tweet *model.Tweet) func(ctx context.Context, id model.ID) (*model.Tweet, error) {
	return func(ctx context.Context, id model.ID) (*model.Tweet, error) {
		if tweet != nil && tweet.ID == id {
			return tweet, nil
		}
		return nil, nil
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError %s, got %v", code, err)
	}
	if apiErr.Code != code {
		t.Errorf("expected code %s, got %s", code, apiErr.Code)
	}
}

// --- テスト ---

// TestService_Create は作成した投稿の所有者が呼び出し元になることを検証する。
func TestService_Create(t *testing.T) {
	principal := model.NewID()
	var saved *model.Tweet
	svc := newTestService(&mockTweetRepo{
		createFn: func(ctx context.Context, tweet *model.Tweet) error {
			saved = tweet
			return nil
		},
	}, nil)

	got, err := svc.Create(context.Background(), principal, "  <b>hello</b> world & friends ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.OwnerID != principal {
		t.Errorf("expected owner %s, got %s", principal, got.OwnerID)
	}
	if got.Content != "hello world & friends" {
		t.Errorf("unexpected sanitized content: %q", got.Content)
	}
	if saved != got {
		t.Error("expected returned tweet to be the stored record")
	}
}

// TestService_Create_Validation は本文の必須チェックを検証する。
func TestService_Create_Validation(t *testing.T) {
	svc := newTestService(&mockTweetRepo{
		createFn: func(ctx context.Context, tweet *model.Tweet) error {
			t.Error("Create should not be called")
			return nil
		},
	}, nil)

	for _, content := range []string{"", "   ", "<script></script>"} {
		_, err := svc.Create(context.Background(), model.NewID(), content)
		assertCode(t, err, model.ErrCodeValidation)
	}
}

// TestService_Create_LongContent は長い本文もそのまま保存されることを検証する。
func TestService_Create_LongContent(t *testing.T) {
	svc := newTestService(&mockTweetRepo{}, nil)

	content := strings.Repeat("あ", 5000)
	got, err := svc.Create(context.Background(), model.NewID(), content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Content != content {
		t.Errorf("content length = %d, want %d", len([]rune(got.Content)), 5000)
	}
}

// TestService_Create_StorageError はストレージ障害がラップされて返ることを検証する。
func TestService_Create_StorageError(t *testing.T) {
	dbErr := errors.New("db down")
	svc := newTestService(&mockTweetRepo{
		createFn: func(ctx context.Context, tweet *model.Tweet) error { return dbErr },
	}, nil)

	_, err := svc.Create(context.Background(), model.NewID(), "hello")
	if !errors.Is(err, dbErr) {
		t.Errorf("expected wrapped storage error, got %v", err)
	}
}

// TestService_GetByID は投稿の取得と未検出を検証する。
func TestService_GetByID(t *testing.T) {
	tw := storedTweet(model.NewID())
	svc := newTestService(&mockTweetRepo{findByIDFn: findReturning(tw)}, nil)

	got, err := svc.GetByID(context.Background(), tw.ID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != tw.ID {
		t.Errorf("expected %s, got %s", tw.ID, got.ID)
	}

	_, err = svc.GetByID(context.Background(), model.NewID().String())
	assertCode(t, err, model.ErrCodeTweetNotFound)

	_, err = svc.GetByID(context.Background(), "12345")
	assertCode(t, err, model.ErrCodeTweetNotFound)
}

// TestService_ListByOwner はユーザー不在と0件を個別に検証する。
func TestService_ListByOwner(t *testing.T) {
	owner := model.NewID()
	users := &mockUserRepo{findByIDFn: func(ctx context.Context, id model.ID) (*model.User, error) {
		if id == owner {
			return &model.User{ID: owner}, nil
		}
		return nil, nil
	}}

	t.Run("owner does not exist", func(t *testing.T) {
		svc := newTestService(&mockTweetRepo{
			listFn: func(ctx context.Context, ownerID model.ID) ([]model.TweetWithOwner, error) {
				t.Error("list should not be called")
				return nil, nil
			},
		}, users)
		_, err := svc.ListByOwner(context.Background(), model.NewID().String())
		assertCode(t, err, model.ErrCodeUserNotFound)
	})

	t.Run("owner exists with zero tweets", func(t *testing.T) {
		svc := newTestService(&mockTweetRepo{
			listFn: func(ctx context.Context, ownerID model.ID) ([]model.TweetWithOwner, error) { return nil, nil },
		}, users)
		_, err := svc.ListByOwner(context.Background(), owner.String())
		assertCode(t, err, model.ErrCodeTweetNotFound)
	})

	t.Run("owner with tweets", func(t *testing.T) {
		svc := newTestService(&mockTweetRepo{
			listFn: func(ctx context.Context, ownerID model.ID) ([]model.TweetWithOwner, error) {
				return []model.TweetWithOwner{
					{Tweet: *storedTweet(ownerID), Owner: &model.OwnerProjection{Username: "alice"}},
					{Tweet: *storedTweet(ownerID)},
				}, nil
			},
		}, users)
		got, err := svc.ListByOwner(context.Background(), owner.String())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || got[0].Owner.Username != "alice" || got[1].Owner != nil {
			t.Errorf("unexpected tweets: %+v", got)
		}
	})
}

// TestService_Update は所有者による更新を検証する。
func TestService_Update(t *testing.T) {
	owner := model.NewID()
	tw := storedTweet(owner)
	svc := newTestService(&mockTweetRepo{
		findByIDFn: findReturning(tw),
		updateByIDFn: func(ctx context.Context, proof ownership.Proof, patch model.TweetPatch) (*model.Tweet, error) {
			if proof.ResourceID() != tw.ID || proof.OwnerID() != owner {
				t.Errorf("unexpected proof: %+v", proof)
			}
			updated := *tw
			updated.Content = *patch.Content
			return &updated, nil
		},
	}, nil)

	got, err := svc.Update(context.Background(), owner, tw.ID.String(), "edited")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Content != "edited" || got.OwnerID != owner {
		t.Errorf("unexpected tweet: %+v", got)
	}
}

// TestService_Update_Errors は更新のエラー分類を検証する。
func TestService_Update_Errors(t *testing.T) {
	owner := model.NewID()
	tw := storedTweet(owner)
	newSvc := func(updated *model.Tweet) *Service {
		return newTestService(&mockTweetRepo{
			findByIDFn: findReturning(tw),
			updateByIDFn: func(ctx context.Context, proof ownership.Proof, patch model.TweetPatch) (*model.Tweet, error) {
				return updated, nil
			},
		}, nil)
	}

	_, err := newSvc(tw).Update(context.Background(), model.NewID(), tw.ID.String(), "x")
	assertCode(t, err, model.ErrCodeNotOwner)

	_, err = newSvc(tw).Update(context.Background(), owner, model.NewID().String(), "x")
	assertCode(t, err, model.ErrCodeNotOwner)

	_, err = newSvc(tw).Update(context.Background(), owner, tw.ID.String(), "")
	assertCode(t, err, model.ErrCodeValidation)

	_, err = newSvc(nil).Update(context.Background(), owner, tw.ID.String(), "x")
	assertCode(t, err, model.ErrCodeUpdateFailed)
}

// TestService_Update_LookupError はストレージ障害が権限エラーに変換されないことを検証する。
func TestService_Update_LookupError(t *testing.T) {
	dbErr := errors.New("timeout")
	svc := newTestService(&mockTweetRepo{
		findByIDFn: func(ctx context.Context, id model.ID) (*model.Tweet, error) { return nil, dbErr },
	}, nil)

	_, err := svc.Update(context.Background(), model.NewID(), model.NewID().String(), "x")
	if !errors.Is(err, dbErr) {
		t.Errorf("expected wrapped storage error, got %v", err)
	}
}

// TestService_Delete は所有者以外の削除が拒否されることを検証する。
func TestService_Delete(t *testing.T) {
	owner := model.NewID()
	tw := storedTweet(owner)
	deleteCalls := 0
	svc := newTestService(&mockTweetRepo{
		findByIDFn: findReturning(tw),
		deleteByIDFn: func(ctx context.Context, proof ownership.Proof) (*model.Tweet, error) {
			deleteCalls++
			return tw, nil
		},
	}, nil)

	err := svc.Delete(context.Background(), model.NewID(), tw.ID.String())
	assertCode(t, err, model.ErrCodeNotOwner)
	if deleteCalls != 0 {
		t.Error("expected no delete for non-owner")
	}

	err = svc.Delete(context.Background(), owner, model.NewID().String())
	assertCode(t, err, model.ErrCodeTweetNotFound)

	if err := svc.Delete(context.Background(), owner, tw.ID.String()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleteCalls != 1 {
		t.Errorf("expected 1 delete call, got %d", deleteCalls)
	}
}

// TestService_Delete_Vanished は検証後に行が消えた場合を検証する。
func TestService_Delete_Vanished(t *testing.T) {
	owner := model.NewID()
	tw := storedTweet(owner)
	svc := newTestService(&mockTweetRepo{
		findByIDFn: findReturning(tw),
		deleteByIDFn: func(ctx context.Context, proof ownership.Proof) (*model.Tweet, error) {
			return nil, nil
		},
	}, nil)

	err := svc.Delete(context.Background(), owner, tw.ID.String())
	assertCode(t, err, model.ErrCodeTweetNotFound)
}
