package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
)

// TaskServiceInterface はタスクハンドラーが必要とするユースケースインターフェース。
type TaskServiceInterface interface {
	List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	Add(ctx context.Context, userID, title, description string) (model.Task, error)
	ToggleStatus(ctx context.Context, t model.Task) (model.Task, error)
	Delete(ctx context.Context, id string) error
}

// MetricsRecorder はタスクハンドラーが記録するメトリクスのインターフェース。
// metrics.Recorderの部分集合として定義する。
type MetricsRecorder interface {
	RecordTaskOperation(op string, err error)
	RecordOperationLatency(op string, duration time.Duration)
	RecordFailure(kind string)
}

// noopMetrics はメトリクス未設定時のフォールバック。
type noopMetrics struct{}

func (noopMetrics) RecordTaskOperation(op string, err error)                 {}
func (noopMetrics) RecordOperationLatency(op string, duration time.Duration) {}
func (noopMetrics) RecordFailure(kind string)                                {}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
	metrics MetricsRecorder
}

// NewTaskHandler はTaskHandlerを生成する。metricsはnil可。
func NewTaskHandler(service TaskServiceInterface, metrics MetricsRecorder) *TaskHandler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &TaskHandler{
		service: service,
		metrics: metrics,
	}
}

// --- リクエスト・レスポンス型 ---

// taskResponse はタスク1件のレスポンス。
type taskResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// taskListResponse はタスク一覧のレスポンス。
type taskListResponse struct {
	Tasks []taskResponse `json:"tasks"`
}

// createTaskRequest はタスク作成リクエストのボディ。
type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func toTaskResponse(t model.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		IsCompleted: t.IsCompleted,
		CreatedAt:   t.CreatedAt,
	}
}

// ListTasks はタスク一覧をフィルタ付きで返す。
// GET /api/tasks?filter=all|completed|pending
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	filter := model.TaskFilter(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = model.TaskFilterAll
	}

	tasks, err := h.service.List(r.Context(), filter)
	h.record("list", start, err)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	resp := taskListResponse{Tasks: make([]taskResponse, 0, len(tasks))}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, toTaskResponse(t))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CreateTask は新規タスクを作成する。
// POST /api/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	added, err := h.service.Add(r.Context(), userID, req.Title, req.Description)
	h.record("add", start, err)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toTaskResponse(added))
}

// ToggleTask はタスクの完了状態を反転する。
// PATCH /api/tasks/{id}/toggle
func (h *TaskHandler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id := chi.URLParam(r, "id")

	// 対象タスクを現在の一覧から特定する
	tasks, err := h.service.List(r.Context(), model.TaskFilterAll)
	if err != nil {
		h.record("toggle", start, err)
		h.writeFailure(w, err)
		return
	}

	var target *model.Task
	for i := range tasks {
		if tasks[i].ID == id {
			target = &tasks[i]
			break
		}
	}
	if target == nil {
		err := model.NewNotFoundFailure("task not found")
		h.record("toggle", start, err)
		h.writeFailure(w, err)
		return
	}

	updated, err := h.service.ToggleStatus(r.Context(), *target)
	h.record("toggle", start, err)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTaskResponse(updated))
}

// DeleteTask は指定IDのタスクを削除する。
// DELETE /api/tasks/{id}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id := chi.URLParam(r, "id")

	err := h.service.Delete(r.Context(), id)
	h.record("delete", start, err)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// record は操作の成否とレイテンシをメトリクスに記録する。
func (h *TaskHandler) record(op string, start time.Time, err error) {
	h.metrics.RecordTaskOperation(op, err)
	h.metrics.RecordOperationLatency(op, time.Since(start))
}

// writeFailure は失敗分類を統一エラーレスポンスとして書き込む。
// 失敗分類以外のエラーは来ない想定だが、来た場合は500として扱う。
func (h *TaskHandler) writeFailure(w http.ResponseWriter, err error) {
	var failure *model.Failure
	if !errors.As(err, &failure) {
		slog.Error("unexpected non-failure error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	h.metrics.RecordFailure(string(failure.Kind))
	middleware.WriteFailureResponse(w, failure)
}
