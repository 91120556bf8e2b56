package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

// recordTimeLayout はストレージレコードの作成日時エンコーディング。
// ローカル・リモート双方でISO-8601文字列として格納する。
const recordTimeLayout = time.RFC3339Nano

// taskRecord はストレージ層のタスクレコードを表す。
// ドメインのmodel.Taskとは独立した型であり、明示的な双方向変換で接続する。
// 永続化エンコーディングをドメイン形状から切り離すための分離。
type taskRecord struct {
	ID          string
	UserID      string
	Title       string
	Description sql.NullString
	IsCompleted flexBool
	CreatedAt   string
}

// newTaskRecord はドメインのTaskをストレージレコードに変換する。
func newTaskRecord(t model.Task) taskRecord {
	return taskRecord{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: sql.NullString{String: t.Description, Valid: t.Description != ""},
		IsCompleted: flexBool(t.IsCompleted),
		CreatedAt:   t.CreatedAt.UTC().Format(recordTimeLayout),
	}
}

// toTask はストレージレコードをドメインのTaskに変換する。
// 作成日時のパースに失敗した場合はエラーを返す。
func (r taskRecord) toTask() (model.Task, error) {
	createdAt, err := time.Parse(recordTimeLayout, r.CreatedAt)
	if err != nil {
		return model.Task{}, fmt.Errorf("malformed created_at %q: %w", r.CreatedAt, err)
	}
	return model.Task{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description.String,
		IsCompleted: bool(r.IsCompleted),
		CreatedAt:   createdAt,
	}, nil
}

// flexBool は完了フラグの防御的デコード用のbool型。
// リモートスキーマはネイティブboolean、ローカルスキーマは0/1整数で
// 格納するため、どちらの表現もスキャンできる必要がある。
type flexBool bool

// Scan はsql.Scannerを実装する。
// bool、整数の0/1、および"0"/"1"/"true"/"false"のテキスト表現を受け付ける。
func (b *flexBool) Scan(src any) error {
	switch v := src.(type) {
	case bool:
		*b = flexBool(v)
		return nil
	case int64:
		*b = v != 0
		return nil
	case []byte:
		return b.scanText(string(v))
	case string:
		return b.scanText(v)
	case nil:
		*b = false
		return nil
	}
	return fmt.Errorf("cannot scan %T into completion flag", src)
}

func (b *flexBool) scanText(s string) error {
	switch s {
	case "0", "f", "false":
		*b = false
	case "1", "t", "true":
		*b = true
	default:
		return fmt.Errorf("cannot scan %q into completion flag", s)
	}
	return nil
}

// asInt はローカルSQLスキーマ向けに0/1整数表現を返す。
func (b flexBool) asInt() int {
	if b {
		return 1
	}
	return 0
}
