// Package state はUI層向けのタスク一覧の表示状態を保持する。
// ユースケースを呼び出し、保持リストとローディング・エラー状態を
// 更新するたびに購読者へ変更通知を発行する。
package state

import (
	"context"
	"sync"

	"github.com/hitoshi/taskman/internal/model"
)

// TaskUseCases は状態ホルダーが必要とするユースケースのインターフェース。
// task.Serviceの部分集合として定義する。
type TaskUseCases interface {
	List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	Add(ctx context.Context, userID, title, description string) (model.Task, error)
	ToggleStatus(ctx context.Context, t model.Task) (model.Task, error)
	Delete(ctx context.Context, id string) error
}

// Snapshot は状態ホルダーの観測可能な状態の不変コピー。
type Snapshot struct {
	Tasks        []model.Task
	Loading      bool
	ErrorMessage string
	Filter       model.TaskFilter
}

// TaskListState はタスク一覧の表示状態を保持する。
// 各操作はloading=trueへの遷移、ユースケース呼び出し、結果反映、
// loading=falseへの遷移を行い、遷移ごとに購読者へ通知する。
// 同一リストへの並行ミューテーションは呼び出し単位のlast-write-winsであり、
// UIが操作を1件ずつ発行する前提でのみ安全。
type TaskListState struct {
	uc TaskUseCases

	mu          sync.Mutex
	tasks       []model.Task
	loading     bool
	errMsg      string
	filter      model.TaskFilter
	subscribers []chan Snapshot
}

// NewTaskListState はTaskListStateを生成する。初期フィルタは全件。
func NewTaskListState(uc TaskUseCases) *TaskListState {
	return &TaskListState{
		uc:     uc,
		filter: model.TaskFilterAll,
	}
}

// Snapshot は現在の状態のコピーを返す。
func (s *TaskListState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe は状態遷移ごとのスナップショットを受信するチャネルを返す。
// 受信が追いつかない場合、そのスナップショットは破棄される。
func (s *TaskListState) Subscribe() <-chan Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 16)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// SetFilter はアクティブフィルタを同期的に変更し、即座に通知する。
// バックエンドへの問い合わせは行わない。
func (s *TaskListState) SetFilter(filter model.TaskFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filter = filter
	s.notifyLocked()
}

// Load は現在のフィルタでタスク一覧を読み込み、保持リストを全置換する。
func (s *TaskListState) Load(ctx context.Context) {
	filter := s.begin()

	tasks, err := s.uc.List(ctx, filter)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errMsg = err.Error()
	} else {
		s.tasks = tasks
	}
	s.finishLocked()
}

// Add は新規タスクを作成し、成功時は保持リストの末尾に追加する。
func (s *TaskListState) Add(ctx context.Context, userID, title, description string) {
	s.begin()

	added, err := s.uc.Add(ctx, userID, title, description)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errMsg = err.Error()
	} else {
		s.tasks = append(s.tasks, added)
	}
	s.finishLocked()
}

// Toggle はタスクの完了状態を反転し、成功時は保持リスト内の
// 同一IDの要素をin-placeで置き換える。
func (s *TaskListState) Toggle(ctx context.Context, t model.Task) {
	s.begin()

	updated, err := s.uc.ToggleStatus(ctx, t)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errMsg = err.Error()
	} else {
		for i := range s.tasks {
			if s.tasks[i].ID == updated.ID {
				s.tasks[i] = updated
				break
			}
		}
	}
	s.finishLocked()
}

// Delete は指定IDのタスクを削除し、成功時は保持リストから取り除く。
func (s *TaskListState) Delete(ctx context.Context, id string) {
	s.begin()

	err := s.uc.Delete(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errMsg = err.Error()
	} else {
		for i := range s.tasks {
			if s.tasks[i].ID == id {
				s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
				break
			}
		}
	}
	s.finishLocked()
}

// begin はローディング状態への遷移と直前エラーのクリアを行い、通知する。
// 現在のアクティブフィルタを返す。
func (s *TaskListState) begin() model.TaskFilter {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = true
	s.errMsg = ""
	s.notifyLocked()
	return s.filter
}

// finishLocked はローディング状態を解除して通知する。ロック保持中に呼ぶこと。
func (s *TaskListState) finishLocked() {
	s.loading = false
	s.notifyLocked()
}

func (s *TaskListState) snapshotLocked() Snapshot {
	tasks := make([]model.Task, len(s.tasks))
	copy(tasks, s.tasks)
	return Snapshot{
		Tasks:        tasks,
		Loading:      s.loading,
		ErrorMessage: s.errMsg,
		Filter:       s.filter,
	}
}

func (s *TaskListState) notifyLocked() {
	snap := s.snapshotLocked()
	for _, sub := range s.subscribers {
		select {
		case sub <- snap:
		default:
		}
	}
}
