// Package model はドメインモデルを定義する。
package model

import "time"

// AppUser はサービス利用ユーザーを表す。
// 認証コラボレータ（internal/auth）のみが生成し、コア側からは読み取り専用。
type AppUser struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
