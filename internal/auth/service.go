// Package auth はメールアドレスとパスワードによる認証とセッション管理を提供する。
// コアのタスク層から見ると外部コラボレータであり、リモートバックエンドは
// 「現在の認証済みユーザーID」の取得のみをこのパッケージに依存する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// StateChange はユーザー在場状態の変化を表す。
// サインインでUser付き、サインアウトでUser=nilのイベントが流れる。
type StateChange struct {
	User *model.AppUser
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig

	mu          sync.Mutex
	subscribers []chan StateChange
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// SignUp は新規ユーザーを登録し、セッションを発行する。
// メールアドレスが登録済みの場合はエラーを返す。
func (s *Service) SignUp(ctx context.Context, email, password string) (*model.AppUser, *model.Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, fmt.Errorf("invalid email address")
	}
	if len(password) < 8 {
		return nil, nil, fmt.Errorf("password must be at least 8 characters")
	}

	existing, _, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.AppUser{
		ID:        uuid.New().String(),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.userRepo.Create(ctx, user, string(hash)); err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	s.publish(StateChange{User: user})

	return user, session, nil
}

// SignIn はメールアドレスとパスワードを検証し、セッションを発行する。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.AppUser, *model.Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, hash, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil, fmt.Errorf("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, nil, fmt.Errorf("invalid email or password")
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))
	s.publish(StateChange{User: user})

	return user, session, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user signed out", slog.String("session_id", sessionID))
	s.publish(StateChange{User: nil})
	return nil
}

// CurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.AppUser, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// Subscribe はユーザー在場状態の変化を購読するチャネルを返す。
// 返されたチャネルはUnsubscribeで解除するまでイベントを受信する。
// 受信が追いつかない場合、そのイベントは当該購読者に対して破棄される。
func (s *Service) Subscribe() <-chan StateChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan StateChange, 8)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe は購読を解除し、チャネルを閉じる。
func (s *Service) Unsubscribe(ch <-chan StateChange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if (<-chan StateChange)(sub) == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// publish は全購読者に状態変化を通知する。
func (s *Service) publish(change StateChange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subscribers {
		select {
		case sub <- change:
		default:
		}
	}
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
