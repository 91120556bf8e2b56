package repository

import (
	"context"
	"sync"

	"github.com/hitoshi/taskman/internal/model"
)

// MemoryTaskRepo はインメモリのタスクバックエンド。
// SQLストアが使えない環境でのフォールバックおよびテスト用。
// 1ユーザー分のデータのみを保持し、一覧は挿入順で返す。
type MemoryTaskRepo struct {
	mu    sync.RWMutex
	tasks map[string]model.Task
	order []string
}

// NewMemoryTaskRepo はMemoryTaskRepoを生成する。
func NewMemoryTaskRepo() *MemoryTaskRepo {
	return &MemoryTaskRepo{
		tasks: make(map[string]model.Task),
	}
}

// List は保持している全タスクを挿入順で返す。
func (r *MemoryTaskRepo) List(ctx context.Context) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.Task, 0, len(r.order))
	for _, id := range r.order {
		tasks = append(tasks, r.tasks[id])
	}
	return tasks, nil
}

// Add はタスクをupsertする。同一IDのレコードが存在する場合は置き換える。
// 置き換えの場合は元の挿入位置を維持する。
func (r *MemoryTaskRepo) Add(ctx context.Context, task model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[task.ID]; !exists {
		r.order = append(r.order, task.ID)
	}
	r.tasks[task.ID] = task
	return task, nil
}

// Update はIDが一致するレコード全体を置き換える。
// 対象が存在しない場合はErrNotFoundを返す。
func (r *MemoryTaskRepo) Update(ctx context.Context, task model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[task.ID]; !exists {
		return model.Task{}, ErrNotFound
	}
	r.tasks[task.ID] = task
	return task, nil
}

// Delete はIDが一致するレコードを削除する。
// 対象が存在しない場合はErrNotFoundを返す。
func (r *MemoryTaskRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[id]; !exists {
		return ErrNotFound
	}
	delete(r.tasks, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// compile-time interface check
var _ TaskBackend = (*MemoryTaskRepo)(nil)
