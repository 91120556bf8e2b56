// Package model はドメインモデルを定義する。
package model

import "time"

// Task は1件のToDoタスクを表すイミュータブルな値オブジェクト。
// IDとUserIDはタスクの生存期間を通じて不変であり、
// Title・Description・IsCompletedのみがID指定の全レコード置換で更新される。
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	IsCompleted bool
	CreatedAt   time.Time
}

// WithCompleted は完了フラグのみを差し替えたコピーを返す。
// 元のTaskは変更しない。
func (t Task) WithCompleted(completed bool) Task {
	t.IsCompleted = completed
	return t
}

// TaskFilter はタスク一覧の絞り込み条件を表す。
type TaskFilter string

const (
	// TaskFilterAll は全件を表すフィルタ。
	TaskFilterAll TaskFilter = "all"
	// TaskFilterCompleted は完了済みタスクのみを表すフィルタ。
	TaskFilterCompleted TaskFilter = "completed"
	// TaskFilterPending は未完了タスクのみを表すフィルタ。
	TaskFilterPending TaskFilter = "pending"
)

// Valid はフィルタが定義済みの値かどうかを返す。
// 空文字列はTaskFilterAllと同義として扱うため有効。
func (f TaskFilter) Valid() bool {
	switch f {
	case TaskFilterAll, TaskFilterCompleted, TaskFilterPending, "":
		return true
	}
	return false
}

// Match はタスクがフィルタ条件に合致するかどうかを返す。
func (f TaskFilter) Match(t Task) bool {
	switch f {
	case TaskFilterCompleted:
		return t.IsCompleted
	case TaskFilterPending:
		return !t.IsCompleted
	}
	return true
}
