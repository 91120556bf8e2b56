package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
)

// mockTaskService はTaskServiceInterfaceのモック実装
type mockTaskService struct {
	listFunc   func(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	addFunc    func(ctx context.Context, userID, title, description string) (model.Task, error)
	toggleFunc func(ctx context.Context, t model.Task) (model.Task, error)
	deleteFunc func(ctx context.Context, id string) error
}

func (m *mockTaskService) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	return m.listFunc(ctx, filter)
}

func (m *mockTaskService) Add(ctx context.Context, userID, title, description string) (model.Task, error) {
	return m.addFunc(ctx, userID, title, description)
}

func (m *mockTaskService) ToggleStatus(ctx context.Context, t model.Task) (model.Task, error) {
	return m.toggleFunc(ctx, t)
}

func (m *mockTaskService) Delete(ctx context.Context, id string) error {
	return m.deleteFunc(ctx, id)
}

// newTaskRouter はURLパラメータ解決のためchiルーター経由でハンドラを組み立てる。
func newTaskRouter(h *TaskHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/tasks", h.ListTasks)
	r.Post("/api/tasks", h.CreateTask)
	r.Patch("/api/tasks/{id}/toggle", h.ToggleTask)
	r.Delete("/api/tasks/{id}", h.DeleteTask)
	return r
}

func TestTaskHandler_ListTasks(t *testing.T) {
	service := &mockTaskService{
		listFunc: func(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
			if filter != model.TaskFilterPending {
				t.Errorf("フィルタが渡されていない: %s", filter)
			}
			return []model.Task{
				{ID: "a", Title: "one", CreatedAt: time.Now().UTC()},
			}, nil
		},
	}
	router := newTaskRouter(NewTaskHandler(service, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks?filter=pending", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータスコード = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp taskListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if len(resp.Tasks) != 1 || resp.Tasks[0].ID != "a" {
		t.Errorf("レスポンスが一致しない: %+v", resp)
	}
}

// フィルタ未指定時は全件扱いになること
func TestTaskHandler_ListTasks_DefaultFilter(t *testing.T) {
	service := &mockTaskService{
		listFunc: func(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
			if filter != model.TaskFilterAll {
				t.Errorf("デフォルトフィルタがallでない: %s", filter)
			}
			return []model.Task{}, nil
		},
	}
	router := newTaskRouter(NewTaskHandler(service, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestTaskHandler_ListTasks_InvalidFilter(t *testing.T) {
	service := &mockTaskService{
		listFunc: func(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
			return nil, model.NewValidationFailure("invalid filter: done")
		},
	}
	router := newTaskRouter(NewTaskHandler(service, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks?filter=done", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestTaskHandler_CreateTask(t *testing.T) {
	service := &mockTaskService{
		addFunc: func(ctx context.Context, userID, title, description string) (model.Task, error) {
			if userID != "user-1" {
				t.Errorf("ユーザーIDが渡されていない: %s", userID)
			}
			return model.Task{
				ID:        "new-task",
				UserID:    userID,
				Title:     title,
				CreatedAt: time.Now().UTC(),
			}, nil
		},
	}
	router := newTaskRouter(NewTaskHandler(service, nil))

	body, _ := json.Marshal(createTaskRequest{Title: "牛乳を買う", Description: "低脂肪のもの"})
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(body))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("ステータスコード = %d, want %d", rec.Code, http.StatusCreated)
	}

	var resp taskResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp.ID != "new-task" || resp.Title != "牛乳を買う" {
		t.Errorf("レスポンスが一致しない: %+v", resp)
	}
}

func TestTaskHandler_CreateTask_EmptyTitle(t *testing.T) {
	service := &mockTaskService{
		addFunc: func(ctx context.Context, userID, title, description string) (model.Task, error) {
			return model.Task{}, model.NewValidationFailure("title must not be empty")
		},
	}
	router := newTaskRouter(NewTaskHandler(service, nil))

	body, _ := json.Marshal(createTaskRequest{Title: ""})
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(body))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var body2 middleware.ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body2); err != nil {
		t.Fatalf("エラーレスポンスのデコードに失敗: %v", err)
	}
	if body2.Kind != "validation" {
		t.Errorf("Kind = %s, want validation", body2.Kind)
	}
}

func TestTaskHandler_CreateTask_MissingUser(t *testing.T) {
	service := &mockTaskService{
		addFunc: func(ctx context.Context, userID, title, description string) (model.Task, error) {
			t.Error("未認証リクエストでサービスが呼ばれた")
			return model.Task{}, nil
		},
	}
	router := newTaskRouter(NewTaskHandler(service, nil))

	body, _ := json.Marshal(createTaskRequest{Title: "t"})
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestTaskHandler_ToggleTask(t *testing.T) {
	service := &mockTaskService{
		listFunc: func(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
			return []model.Task{
				{ID: "task-1", Title: "one", IsCompleted: false},
			}, nil
		},
		toggleFunc: func(ctx context.Context, task model.Task) (model.Task, error) {
			return task.WithCompleted(!task.IsCompleted), nil
		},
	}
	router := newTaskRouter(NewTaskHandler(service, nil))

	req := httptest.NewRequest(http.MethodPatch, "/api/tasks/task-1/toggle", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータスコード = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp taskResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if !resp.IsCompleted {
		t.Error("完了フラグが反転していない")
	}
}

func TestTaskHandler_ToggleTask_NotFound(t *testing.T) {
	service := &mockTaskService{
		listFunc: func(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
			return []model.Task{}, nil
		},
		toggleFunc: func(ctx context.Context, task model.Task) (model.Task, error) {
			t.Error("存在しないタスクでToggleStatusが呼ばれた")
			return task, nil
		},
	}
	router := newTaskRouter(NewTaskHandler(service, nil))

	req := httptest.NewRequest(http.MethodPatch, "/api/tasks/missing/toggle", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestTaskHandler_DeleteTask(t *testing.T) {
	var deletedID string
	service := &mockTaskService{
		deleteFunc: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	router := newTaskRouter(NewTaskHandler(service, nil))

	req := httptest.NewRequest(http.MethodDelete, "/api/tasks/task-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if deletedID != "task-1" {
		t.Errorf("削除対象IDが一致しない: %s", deletedID)
	}
}

func TestTaskHandler_DeleteTask_NotFound(t *testing.T) {
	service := &mockTaskService{
		deleteFunc: func(ctx context.Context, id string) error {
			return model.NewNotFoundFailure("task not found")
		},
	}
	router := newTaskRouter(NewTaskHandler(service, nil))

	req := httptest.NewRequest(http.MethodDelete, "/api/tasks/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// サーバー障害は502として返ること
func TestTaskHandler_ServerFailure(t *testing.T) {
	service := &mockTaskService{
		listFunc: func(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
			return nil, model.NewServerFailure("not authenticated")
		},
	}
	router := newTaskRouter(NewTaskHandler(service, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}
