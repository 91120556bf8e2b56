package handler

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	SessionCodec      *middleware.SessionCodec
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// タスク
	TaskService TaskServiceInterface

	// 可観測性
	Metrics        MetricsRecorder
	SessionMetrics SessionMetricsRecorder
	Gatherer       prometheus.Gatherer

	// ヘルスチェック。ローカルバックエンド稼働時はnil可。
	HealthDB *sql.DB
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Session → RateLimit
//
// 認証ルート（/auth/*）、/healthz、/metricsはセッション検証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.SessionCodec, deps.SessionMetrics)
	taskHandler := NewTaskHandler(deps.TaskService, deps.Metrics)

	// --- 認証不要のルート ---

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.SignUp)
		r.Post("/signin", authHandler.SignIn)
		r.Post("/signout", authHandler.SignOut)
		r.Get("/me", authHandler.Me)
	})

	r.Get("/healthz", newHealthzHandler(deps.HealthDB))

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.SessionCodec))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.ListTasks)

			// POST /api/tasks - タスク作成（作成専用レート制限を追加）
			if deps.RateLimiter != nil {
				r.With(deps.RateLimiter.TaskCreateMiddleware()).Post("/", taskHandler.CreateTask)
			} else {
				r.Post("/", taskHandler.CreateTask)
			}

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/toggle", taskHandler.ToggleTask)
				r.Delete("/", taskHandler.DeleteTask)
			})
		})
	})

	return r
}

// newHealthzHandler はヘルスチェックのハンドラーを返す。
// DBが渡された場合は疎通確認も行う。
func newHealthzHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK

		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				status = "database unreachable"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
