package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/mediashare/internal/config"
	"github.com/hitoshi/mediashare/internal/database"
	"github.com/hitoshi/mediashare/internal/handler"
	"github.com/hitoshi/mediashare/internal/logger"
	"github.com/hitoshi/mediashare/internal/media"
	"github.com/hitoshi/mediashare/internal/metrics"
	"github.com/hitoshi/mediashare/internal/middleware"
	"github.com/hitoshi/mediashare/internal/repository"
	"github.com/hitoshi/mediashare/internal/security"
	"github.com/hitoshi/mediashare/internal/tweet"
	"github.com/hitoshi/mediashare/internal/video"
	"github.com/hitoshi/mediashare/internal/worker/cleanup"
	"github.com/hitoshi/mediashare/internal/worker/reaper"
)

const (
	dbPingTimeout   = 5 * time.Second
	shutdownTimeout = 30 * time.Second
	// uploadTimeout は動画アップロードを含むリクエストの読み書き上限。
	uploadTimeout   = 10 * time.Minute
	cleanupInterval = time.Hour
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer, cmd Command) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo, string(cmd))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel), string(cmd))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w, cmd)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("media_backend", cfg.Media.Backend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// newRegistry はプロセス・ランタイムのメトリクスを含むレジストリとCollectorを生成する。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newMediaBackend は設定に応じたメディアバックエンドを生成する。
// observerがnilでない場合は解決時間を計測する。
func newMediaBackend(ctx context.Context, cfg config.MediaConfig, observer media.Observer) (media.Backend, error) {
	var backend media.Backend
	switch cfg.Backend {
	case config.MediaBackendS3:
		s3, err := media.NewS3Resolver(ctx, media.S3Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			UsePathStyle:    cfg.S3UsePathStyle,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			Prefix:          cfg.S3Prefix,
		}, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 backend: %w", err)
		}
		backend = s3
	case config.MediaBackendHost:
		guard, err := security.NewSSRFGuardForEndpoint(cfg.HostURL)
		if err != nil {
			return nil, fmt.Errorf("invalid MEDIA_HOST_URL: %w", err)
		}
		backend = media.NewHostResolver(
			guard.NewSafeClient(cfg.Timeout),
			cfg.HostURL, cfg.HostAPIKey, guard, slog.Default(),
		)
	default:
		return nil, fmt.Errorf("unsupported media backend %q", cfg.Backend)
	}
	return media.WithObserver(backend, observer), nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	videoRepo := repository.NewPostgresVideoRepo(db)
	tweetRepo := repository.NewPostgresTweetRepo(db)
	orphanRepo := repository.NewPostgresOrphanedMediaRepo(db)

	// 3. メトリクスとメディアバックエンド
	reg, collector := newRegistry()
	backend, err := newMediaBackend(ctx, cfg.Media, collector)
	if err != nil {
		return err
	}

	// 4. ドメインサービスの初期化
	sanitizer := security.NewContentSanitizer()
	videoService := video.NewService(videoRepo, userRepo, backend, orphanRepo, sanitizer, collector, slog.Default())
	tweetService := tweet.NewService(tweetRepo, userRepo, sanitizer, collector, slog.Default())

	// 5. ルーターの構築（設定値はreq/min単位）
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitUpload),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger:         slog.Default(),
		StatusRecorder: collector,
		MetricsHandler: metrics.Handler(reg),
		VideoService:   videoService,
		TweetService:   tweetService,
		Upload: handler.UploadConfig{
			TempDir: cfg.UploadTempDir,
			MaxSize: cfg.UploadMaxSize,
		},
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       uploadTimeout,
		WriteTimeout:      uploadTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return serveUntilDone(ctx, server, "API server")
}

// serveUntilDone はサーバーを起動し、ctxがキャンセルされたらシャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s listen error: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down " + name + "...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 孤立メディア回収、クリーンアップジョブ、メトリクスエンドポイントを並行して実行する。
// ctxがキャンセルされると全て停止する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. 依存関係の初期化
	reg, collector := newRegistry()
	backend, err := newMediaBackend(ctx, cfg.Media, nil)
	if err != nil {
		return err
	}

	mediaReaper := reaper.NewReaper(
		repository.NewPostgresOrphanedMediaRepo(db),
		backend, collector, slog.Default(),
		reaper.Config{
			BatchSize:      cfg.Reaper.BatchSize,
			MaxConcurrency: cfg.Reaper.MaxConcurrent,
			MaxAttempts:    cfg.Reaper.MaxAttempts,
		},
	)
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default(), cfg.SessionRetentionDays)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("worker starting",
		slog.Duration("reaper_interval", cfg.Reaper.Interval),
		slog.Int("max_concurrent", cfg.Reaper.MaxConcurrent),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mediaReaper.Start(gctx, cfg.Reaper.Interval)
		return nil
	})
	g.Go(func() error {
		cleanupJob.Start(gctx, cleanupInterval)
		return nil
	})
	g.Go(func() error {
		return serveUntilDone(gctx, metricsServer, "worker metrics server")
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("schema_version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
