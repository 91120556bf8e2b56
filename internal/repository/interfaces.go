// Package repository はデータ永続化のインターフェースと各バックエンド実装を定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/taskman/internal/model"
)

// ErrNotFound は更新・削除の対象レコードが存在しないことを表す。
// 各バックエンドはこのセンチネルを共通で返し、上位層が失敗分類に変換する。
var ErrNotFound = errors.New("repository: record not found")

// ErrNotAuthenticated は認証セッションなしでリモートバックエンドを
// 呼び出したことを表す。ネットワークI/Oの前に返される。
var ErrNotAuthenticated = errors.New("repository: not authenticated")

// TaskBackend はタスク永続化バックエンドの能力インターフェース。
// PostgreSQL（リモート）、SQLite（ローカル）、インメモリの3実装が
// 同一の契約を満たし、起動時のファクトリで1つだけ選択される。
type TaskBackend interface {
	// List はバックエンドのスコープに属する全タスクを返す。
	// リモート実装は認証済み呼び出し元のタスクのみをサーバー側で絞り込む。
	// ローカル・インメモリ実装は構造上1ユーザー分のデータしか持たない。
	List(ctx context.Context) ([]model.Task, error)

	// Add はタスクIDをキーとして新規レコードを永続化する。
	// 同一IDのレコードが既に存在する場合は黙って置き換える（upsert）。
	Add(ctx context.Context, task model.Task) (model.Task, error)

	// Update はIDが一致するレコード全体を置き換える。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, task model.Task) (model.Task, error)

	// Delete はIDが一致するレコードを削除する。
	// 対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// UserRepository はユーザーデータの永続化インターフェース。
// 認証コラボレータ（internal/auth）のみが利用する。
type UserRepository interface {
	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.AppUser, passwordHash string) error
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.AppUser, error)
	// FindByEmail はメールアドレスでユーザーを検索する。
	// 見つからない場合はnil, "", nilを返す。パスワードハッシュも併せて返す。
	FindByEmail(ctx context.Context, email string) (*model.AppUser, string, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}
