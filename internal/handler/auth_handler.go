// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
)

const sessionCookieName = "session_id"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, email, password string) (*model.AppUser, *model.Session, error)
	SignIn(ctx context.Context, email, password string) (*model.AppUser, *model.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	CurrentUser(ctx context.Context, sessionID string) (*model.AppUser, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// SessionMetricsRecorder はセッションの増減を記録するメトリクスのインターフェース。
// metrics.Recorderの部分集合として定義する。
type SessionMetricsRecorder interface {
	RecordSignIn()
	RecordSignOut()
}

// noopSessionMetrics はメトリクス未設定時のフォールバック。
type noopSessionMetrics struct{}

func (noopSessionMetrics) RecordSignIn()  {}
func (noopSessionMetrics) RecordSignOut() {}

// AuthHandler はメール・パスワード認証のHTTPハンドラー。
// セッションCookieの値はcodecで署名して発行し、読み取り時に検証する。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	codec   *middleware.SessionCodec
	metrics SessionMetricsRecorder
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnil可。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, codec *middleware.SessionCodec, metrics SessionMetricsRecorder) *AuthHandler {
	if metrics == nil {
		metrics = noopSessionMetrics{}
	}
	return &AuthHandler{
		service: service,
		config:  config,
		codec:   codec,
		metrics: metrics,
	}
}

// sessionIDFromCookie はリクエストのセッションCookieを検証し、セッションIDを返す。
// Cookieがない場合と署名が不正な場合はfalseを返す。
func (h *AuthHandler) sessionIDFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	sessionID, err := h.codec.Decode(cookie.Value)
	if err != nil {
		return "", false
	}
	return sessionID, true
}

// credentialsRequest はサインアップ・サインインのリクエストボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のレスポンス。
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignUp は新規ユーザーを登録し、セッションCookieを発行する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, session, err := h.service.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("signup failed", slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.setSessionCookie(w, session.ID)
	h.metrics.RecordSignIn()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(userResponse{ID: user.ID, Email: user.Email})
}

// SignIn は認証情報を検証し、セッションCookieを発行する。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, session, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("signin failed", slog.String("error", err.Error()))
		http.Error(w, "invalid email or password", http.StatusUnauthorized)
		return
	}

	h.setSessionCookie(w, session.ID)
	h.metrics.RecordSignIn()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(userResponse{ID: user.ID, Email: user.Email})
}

// SignOut はセッションを破棄する。
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := h.sessionIDFromCookie(r); ok {
		if signOutErr := h.service.SignOut(r.Context(), sessionID); signOutErr != nil {
			slog.Error("failed to sign out", slog.String("error", signOutErr.Error()))
			// サインアウト失敗してもCookieはクリアする
		} else {
			h.metrics.RecordSignOut()
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDFromCookie(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.service.CurrentUser(r.Context(), sessionID)
	if err != nil {
		slog.Error("failed to get current user", slog.String("error", err.Error()))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(userResponse{ID: user.ID, Email: user.Email})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    h.codec.Encode(sessionID),
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
