package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/model"
)

// Service はタスクのユースケースを提供するステートレスなオーケストレータ。
// 各操作は成功値か失敗分類のどちらか一方のみを返す。
type Service struct {
	repo *Repository
}

// NewService はServiceを生成する。
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// List はフィルタ付きのタスク一覧を返す。
func (s *Service) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	if !filter.Valid() {
		return nil, model.NewValidationFailure("invalid filter: " + string(filter))
	}
	return s.repo.GetTasks(ctx, filter)
}

// Add は新規タスクを作成する。
// IDと作成日時はこの層で生成し、完了フラグはfalseで初期化する。
func (s *Service) Add(ctx context.Context, userID, title, description string) (model.Task, error) {
	if title == "" {
		return model.Task{}, model.NewValidationFailure("title must not be empty")
	}

	t := model.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		Description: description,
		IsCompleted: false,
		CreatedAt:   time.Now().UTC(),
	}

	added, err := s.repo.AddTask(ctx, t)
	if err != nil {
		return model.Task{}, err
	}

	slog.Info("task added",
		slog.String("task_id", added.ID),
		slog.String("user_id", added.UserID),
	)
	return added, nil
}

// ToggleStatus は完了フラグを反転した全レコード置換を行う。
// タイトル・説明はこの経路では変更できない。
func (s *Service) ToggleStatus(ctx context.Context, t model.Task) (model.Task, error) {
	toggled := t.WithCompleted(!t.IsCompleted)
	return s.repo.UpdateTask(ctx, toggled)
}

// Delete は指定IDのタスクを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		return err
	}
	slog.Info("task deleted", slog.String("task_id", id))
	return nil
}
