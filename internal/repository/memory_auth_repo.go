package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

// MemoryUserRepo はインメモリのユーザーリポジトリ。
// ローカルバックエンド（SQLite・インメモリ）稼働時の認証コラボレータ用。
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[string]memoryUser
	byEmail map[string]string
}

type memoryUser struct {
	user         model.AppUser
	passwordHash string
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:    make(map[string]memoryUser),
		byEmail: make(map[string]string),
	}
}

// Create はユーザーを作成する。
func (r *MemoryUserRepo) Create(ctx context.Context, user *model.AppUser, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[user.ID] = memoryUser{user: *user, passwordHash: passwordHash}
	r.byEmail[user.Email] = user.ID
	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(ctx context.Context, id string) (*model.AppUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	user := entry.user
	return &user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByEmail(ctx context.Context, email string) (*model.AppUser, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, "", nil
	}
	entry := r.byID[id]
	user := entry.user
	return &user, entry.passwordHash, nil
}

// MemorySessionRepo はインメモリのセッションリポジトリ。
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]model.Session),
	}
}

// Create はセッションを作成する。
func (r *MemorySessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = *session
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *MemorySessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok || session.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	return &session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *MemorySessionRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

// compile-time interface check
var (
	_ UserRepository    = (*MemoryUserRepo)(nil)
	_ SessionRepository = (*MemorySessionRepo)(nil)
)
