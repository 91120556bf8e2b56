package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// mockBackend はrepository.TaskBackendのモック実装
type mockBackend struct {
	listFunc   func(ctx context.Context) ([]model.Task, error)
	addFunc    func(ctx context.Context, task model.Task) (model.Task, error)
	updateFunc func(ctx context.Context, task model.Task) (model.Task, error)
	deleteFunc func(ctx context.Context, id string) error
}

func (m *mockBackend) List(ctx context.Context) ([]model.Task, error) {
	return m.listFunc(ctx)
}

func (m *mockBackend) Add(ctx context.Context, task model.Task) (model.Task, error) {
	return m.addFunc(ctx, task)
}

func (m *mockBackend) Update(ctx context.Context, task model.Task) (model.Task, error) {
	return m.updateFunc(ctx, task)
}

func (m *mockBackend) Delete(ctx context.Context, id string) error {
	return m.deleteFunc(ctx, id)
}

func fixedTasks() []model.Task {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return []model.Task{
		{ID: "a", Title: "oldest", IsCompleted: true, CreatedAt: base},
		{ID: "b", Title: "middle", IsCompleted: false, CreatedAt: base.Add(time.Hour)},
		{ID: "c", Title: "newest", IsCompleted: false, CreatedAt: base.Add(2 * time.Hour)},
	}
}

// バックエンドの返却順に依らず作成日時の降順に揃えられることを検証
func TestRepository_GetTasks_SortsByCreatedAtDescending(t *testing.T) {
	backend := &mockBackend{
		listFunc: func(ctx context.Context) ([]model.Task, error) {
			return fixedTasks(), nil
		},
	}
	repo := NewRepository(backend)

	tasks, err := repo.GetTasks(context.Background(), model.TaskFilterAll)
	if err != nil {
		t.Fatalf("GetTasks に失敗: %v", err)
	}

	wantOrder := []string{"c", "b", "a"}
	if len(tasks) != len(wantOrder) {
		t.Fatalf("タスク数が一致しない: got %d, want %d", len(tasks), len(wantOrder))
	}
	for i, want := range wantOrder {
		if tasks[i].ID != want {
			t.Errorf("tasks[%d].ID = %s, want %s", i, tasks[i].ID, want)
		}
	}
}

func TestRepository_GetTasks_Filter(t *testing.T) {
	backend := &mockBackend{
		listFunc: func(ctx context.Context) ([]model.Task, error) {
			return fixedTasks(), nil
		},
	}
	repo := NewRepository(backend)
	ctx := context.Background()

	tests := []struct {
		name    string
		filter  model.TaskFilter
		wantIDs []string
	}{
		{name: "completed", filter: model.TaskFilterCompleted, wantIDs: []string{"a"}},
		{name: "pending", filter: model.TaskFilterPending, wantIDs: []string{"c", "b"}},
		{name: "all", filter: model.TaskFilterAll, wantIDs: []string{"c", "b", "a"}},
		{name: "空フィルタは全件", filter: "", wantIDs: []string{"c", "b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := repo.GetTasks(ctx, tt.filter)
			if err != nil {
				t.Fatalf("GetTasks に失敗: %v", err)
			}
			if len(tasks) != len(tt.wantIDs) {
				t.Fatalf("タスク数が一致しない: got %d, want %d", len(tasks), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if tasks[i].ID != want {
					t.Errorf("tasks[%d].ID = %s, want %s", i, tasks[i].ID, want)
				}
			}
		})
	}
}

// 全件一致でもフィルタ適用でリストの内容が変化しないことを検証
func TestRepository_GetTasks_FilterDoesNotMutate(t *testing.T) {
	source := fixedTasks()
	backend := &mockBackend{
		listFunc: func(ctx context.Context) ([]model.Task, error) {
			copied := make([]model.Task, len(source))
			copy(copied, source)
			return copied, nil
		},
	}
	repo := NewRepository(backend)
	ctx := context.Background()

	pending, err := repo.GetTasks(ctx, model.TaskFilterPending)
	if err != nil {
		t.Fatalf("GetTasks に失敗: %v", err)
	}
	for _, task := range pending {
		if task.IsCompleted {
			t.Errorf("pendingフィルタの結果に完了済みタスクが含まれる: %+v", task)
		}
	}

	all, err := repo.GetTasks(ctx, model.TaskFilterAll)
	if err != nil {
		t.Fatalf("GetTasks に失敗: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("フィルタ適用後に元データが変化している: %d件", len(all))
	}
}

// バックエンドのエラーが失敗分類に変換されることを検証
func TestRepository_ErrorTranslation(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind model.FailureKind
		wantMsg  string
	}{
		{
			name:     "ErrNotFoundはnot_foundに変換",
			err:      repository.ErrNotFound,
			wantKind: model.FailureNotFound,
			wantMsg:  "task not found",
		},
		{
			name:     "ErrNotAuthenticatedはserverに変換",
			err:      repository.ErrNotAuthenticated,
			wantKind: model.FailureServer,
			wantMsg:  "not authenticated",
		},
		{
			name:     "未知のエラーはstorageに変換",
			err:      errors.New("disk full"),
			wantKind: model.FailureStorage,
			wantMsg:  "disk full",
		},
		{
			name:     "既存のFailureはそのまま通過",
			err:      model.NewValidationFailure("bad input"),
			wantKind: model.FailureValidation,
			wantMsg:  "bad input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &mockBackend{
				updateFunc: func(ctx context.Context, task model.Task) (model.Task, error) {
					return model.Task{}, tt.err
				},
			}
			repo := NewRepository(backend)

			_, err := repo.UpdateTask(context.Background(), model.Task{ID: "x"})
			if err == nil {
				t.Fatal("エラーが返らない")
			}

			var failure *model.Failure
			if !errors.As(err, &failure) {
				t.Fatalf("Failure以外のエラーが境界を通過した: %v", err)
			}
			if failure.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", failure.Kind, tt.wantKind)
			}
			if failure.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", failure.Message, tt.wantMsg)
			}
		})
	}
}

func TestRepository_DeleteTask_NotFound(t *testing.T) {
	backend := &mockBackend{
		deleteFunc: func(ctx context.Context, id string) error {
			return repository.ErrNotFound
		},
	}
	repo := NewRepository(backend)

	err := repo.DeleteTask(context.Background(), "does-not-exist")

	var failure *model.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Failureが返らない: %v", err)
	}
	if failure.Kind != model.FailureNotFound {
		t.Errorf("Kind = %s, want %s", failure.Kind, model.FailureNotFound)
	}
}

func TestRepository_AddTask_PassesThrough(t *testing.T) {
	var received model.Task
	backend := &mockBackend{
		addFunc: func(ctx context.Context, task model.Task) (model.Task, error) {
			received = task
			return task, nil
		},
	}
	repo := NewRepository(backend)

	input := model.Task{ID: "task-1", Title: "牛乳を買う", CreatedAt: time.Now().UTC()}
	added, err := repo.AddTask(context.Background(), input)
	if err != nil {
		t.Fatalf("AddTask に失敗: %v", err)
	}
	if received.ID != input.ID {
		t.Errorf("バックエンドに渡されたタスクが一致しない: %+v", received)
	}
	if added.ID != input.ID {
		t.Errorf("返却されたタスクが一致しない: %+v", added)
	}
}
