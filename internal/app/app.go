// Package app はアプリケーションの初期化・配線・起動を提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/config"
	"github.com/hitoshi/taskman/internal/database"
	"github.com/hitoshi/taskman/internal/handler"
	"github.com/hitoshi/taskman/internal/logger"
	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/task"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("backend", string(cfg.StorageBackend)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// contextCaller はリクエストコンテキストから認証済みユーザーIDを取り出す
// repository.CallerSourceの実装。セッションミドルウェアが注入した値を参照する。
type contextCaller struct{}

func (contextCaller) CurrentUserID(ctx context.Context) (string, error) {
	return middleware.UserIDFromContext(ctx)
}

// storage は選択されたバックエンドと付随するリソースをまとめる。
type storage struct {
	taskBackend repository.TaskBackend
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	db          *sql.DB // postgres選択時のみ非nil（ヘルスチェック用）
	close       func() error
}

// buildStorage は設定に応じた永続化バックエンドを構築するファクトリ。
// バックエンドの選択はここで1回だけ行い、以降は単一のインターフェースで扱う。
func buildStorage(cfg *config.Config) (*storage, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return &storage{
			taskBackend: repository.NewPostgresTaskRepo(db, contextCaller{}),
			userRepo:    repository.NewPostgresUserRepo(db),
			sessionRepo: repository.NewPostgresSessionRepo(db),
			db:          db,
			close:       db.Close,
		}, nil

	case config.BackendSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return &storage{
			taskBackend: repository.NewSQLiteTaskRepo(db),
			userRepo:    repository.NewMemoryUserRepo(),
			sessionRepo: repository.NewMemorySessionRepo(),
			close:       db.Close,
		}, nil

	case config.BackendMemory:
		return &storage{
			taskBackend: repository.NewMemoryTaskRepo(),
			userRepo:    repository.NewMemoryUserRepo(),
			sessionRepo: repository.NewMemorySessionRepo(),
			close:       func() error { return nil },
		}, nil
	}

	return nil, fmt.Errorf("unknown storage backend: %q", cfg.StorageBackend)
}

// runServe はAPIサーバーモードで起動する。
// バックエンドを構築し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. 永続化バックエンドの構築
	store, err := buildStorage(cfg)
	if err != nil {
		return err
	}
	defer store.close()

	slog.Info("storage backend ready", slog.String("backend", string(cfg.StorageBackend)))

	// 2. ドメインサービスの初期化
	authService := auth.NewService(
		store.userRepo, store.sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	taskRepo := task.NewRepository(store.taskBackend)
	taskService := task.NewService(taskRepo)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ルーターの構築
	rateLimiterCfg := middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitTaskCreate)
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// セッションCookieはSESSION_SECRETで署名する
	sessionCodec := middleware.NewSessionCodec(cfg.SessionSecret)

	deps := &handler.RouterDeps{
		SessionFinder:     store.sessionRepo,
		SessionCodec:      sessionCodec,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		TaskService: taskService,

		Metrics:        collector,
		SessionMetrics: collector,
		Gatherer:       registry,

		HealthDB: store.db,
	}

	router := handler.NewRouter(deps)

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// postgresバックエンド選択時のみ有効。SQLiteのスキーマは起動時に初期化される。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageBackend != config.BackendPostgres {
		return fmt.Errorf("migrate command requires the postgres backend (current: %s)", cfg.StorageBackend)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
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
