package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mediashare/internal/middleware"
)

// healthCheckTimeout は/healthでのDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はヘルスチェックで疎通を確認する依存先。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// メトリクス（nilの場合は無効）
	StatusRecorder middleware.StatusRecorder
	MetricsHandler http.Handler

	// コンテンツ
	VideoService VideoServiceInterface
	TweetService TweetServiceInterface
	Upload       UploadConfig
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Metrics → Recovery → Logging → SecurityHeaders → CORS → Session → RateLimit(General) → CSRF
//
// /health、/metrics、CSRFトークン取得は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRFConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	videoHandler := NewVideoHandler(deps.VideoService, deps.Upload)
	tweetHandler := NewTweetHandler(deps.TweetService)

	// --- 認証不要のルート ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Get("/api/v1/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// --- 認証が必要なルート ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Route("/videos", func(r chi.Router) {
			r.Get("/", videoHandler.ListVideos)
			// 動画アップロードは専用のレート制限を追加
			r.With(deps.RateLimiter.UploadMiddleware()).Post("/", videoHandler.PublishVideo)
			r.Get("/user/{userId}", videoHandler.ListUserVideos)

			r.Route("/{videoId}", func(r chi.Router) {
				r.Get("/", videoHandler.GetVideo)
				r.Patch("/", videoHandler.UpdateVideo)
				r.Delete("/", videoHandler.DeleteVideo)
				r.Patch("/publish", videoHandler.TogglePublish)
			})
		})

		r.Route("/tweets", func(r chi.Router) {
			r.Post("/", tweetHandler.CreateTweet)
			r.Get("/user/{userId}", tweetHandler.ListUserTweets)

			r.Route("/{tweetId}", func(r chi.Router) {
				r.Get("/", tweetHandler.GetTweet)
				r.Patch("/", tweetHandler.UpdateTweet)
				r.Delete("/", tweetHandler.DeleteTweet)
			})
		})
	})

	return r
}

// healthHandler はDBへの疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
