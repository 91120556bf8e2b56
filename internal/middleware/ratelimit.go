package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）
	GeneralBurst    int           // API全般のバーストサイズ
	TaskCreateRate  rate.Limit    // タスク作成のレート（req/sec）
	TaskCreateBurst int           // タスク作成のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// PerMinuteRateLimiterConfig は毎分リクエスト数の指定からレート制限設定を組み立てる。
// バーストは1分分のリクエストをまとめて受け入れられる値にする。
// RATE_LIMIT_GENERAL / RATE_LIMIT_TASK_CREATE の値はここを通して反映される。
func PerMinuteRateLimiterConfig(generalPerMinute, taskCreatePerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMinute) / 60.0),
		GeneralBurst:    generalPerMinute,
		TaskCreateRate:  rate.Limit(float64(taskCreatePerMinute) / 60.0),
		TaskCreateBurst: taskCreatePerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、タスク作成 30 req/min/user。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return PerMinuteRateLimiterConfig(120, 30)
}

// userLimiter はユーザーごとのレートリミッターとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はユーザーごとのレート制限を管理する。
// API全般のレート制限とタスク作成のレート制限の2種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	generalMu       sync.RWMutex
	generalLimiters map[string]*userLimiter

	createMu       sync.RWMutex
	createLimiters map[string]*userLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		generalLimiters: make(map[string]*userLimiter),
		createLimiters:  make(map[string]*userLimiter),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// リクエストコンテキストにユーザーIDが含まれている必要がある（SessionMiddlewareの後に配置）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				writeUnauthorized(w)
				return
			}

			limiter := rl.getOrCreate(&rl.generalMu, rl.generalLimiters, userID, rl.config.GeneralRate, rl.config.GeneralBurst)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// TaskCreateMiddleware はタスク作成専用のレート制限ミドルウェアを返す。
func (rl *RateLimiter) TaskCreateMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				writeUnauthorized(w)
				return
			}

			limiter := rl.getOrCreate(&rl.createMu, rl.createLimiters, userID, rl.config.TaskCreateRate, rl.config.TaskCreateBurst)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.TaskCreateRate)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getOrCreate はユーザーのリミッターを取得し、なければ生成する。
func (rl *RateLimiter) getOrCreate(mu *sync.RWMutex, limiters map[string]*userLimiter, userID string, r rate.Limit, burst int) *rate.Limiter {
	mu.RLock()
	entry, ok := limiters[userID]
	mu.RUnlock()

	if ok {
		mu.Lock()
		entry.lastAccess = time.Now()
		mu.Unlock()
		return entry.limiter
	}

	mu.Lock()
	defer mu.Unlock()

	// RLock解放とLock取得の間に他のゴルーチンが生成している可能性がある
	if entry, ok := limiters[userID]; ok {
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	entry = &userLimiter{
		limiter:    rate.NewLimiter(r, burst),
		lastAccess: time.Now(),
	}
	limiters[userID] = entry
	return entry.limiter
}

// cleanupLoop は一定間隔でアクセスのないリミッターエントリを破棄する。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-rl.config.CleanupInterval)

			rl.generalMu.Lock()
			for id, entry := range rl.generalLimiters {
				if entry.lastAccess.Before(cutoff) {
					delete(rl.generalLimiters, id)
				}
			}
			rl.generalMu.Unlock()

			rl.createMu.Lock()
			for id, entry := range rl.createLimiters {
				if entry.lastAccess.Before(cutoff) {
					delete(rl.createLimiters, id)
				}
			}
			rl.createMu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// writeRateLimitResponse は429レスポンスとRetry-Afterヘッダーを書き込む。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfter := 1
	if r > 0 {
		retryAfter = int(math.Ceil(1.0 / float64(r)))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{
		"kind":    "server",
		"message": "too many requests",
	})
}
