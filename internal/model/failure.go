// Package model はドメインモデルを定義する。
package model

import "fmt"

// FailureKind は障害の分類を表す。
// コアはバックエンド固有の例外をそのまま伝播せず、この閉じた分類に変換する。
type FailureKind string

const (
	// FailureStorage はローカルストレージ起因の障害。
	FailureStorage FailureKind = "storage"
	// FailureValidation は入力検証エラー。
	FailureValidation FailureKind = "validation"
	// FailureNotFound は対象レコードが存在しない障害。
	FailureNotFound FailureKind = "not_found"
	// FailureServer はリモートサーバー起因の障害。
	FailureServer FailureKind = "server"
)

// Failure は1回の操作の終端的な失敗を表す。
// 呼び出し元は1回の呼び出しにつき成功値か失敗のどちらか一方のみを受け取る。
type Failure struct {
	Kind    FailureKind
	Message string
}

// Error はerrorインターフェースを実装する。
func (f *Failure) Error() string {
	if f.Message == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("[%s] %s", f.Kind, f.Message)
}

// NewStorageFailure はストレージ障害を生成する。
func NewStorageFailure(message string) *Failure {
	return &Failure{Kind: FailureStorage, Message: message}
}

// NewValidationFailure は検証エラーを生成する。
func NewValidationFailure(message string) *Failure {
	return &Failure{Kind: FailureValidation, Message: message}
}

// NewNotFoundFailure は対象未検出の障害を生成する。
func NewNotFoundFailure(message string) *Failure {
	return &Failure{Kind: FailureNotFound, Message: message}
}

// NewServerFailure はサーバー障害を生成する。
func NewServerFailure(message string) *Failure {
	return &Failure{Kind: FailureServer, Message: message}
}
