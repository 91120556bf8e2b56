// Package task はタスクのリポジトリとユースケースを提供する。
package task

import (
	"context"
	"errors"
	"sort"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// Repository は選択された1つの永続化バックエンドを包み、
// バックエンド固有のエラーを失敗分類（model.Failure）に変換する。
// バックエンドのエラーがこの境界を素のまま通過することはない。
type Repository struct {
	backend repository.TaskBackend
}

// NewRepository はRepositoryを生成する。
func NewRepository(backend repository.TaskBackend) *Repository {
	return &Repository{backend: backend}
}

// GetTasks はバックエンドから全件取得し、フィルタをメモリ上で適用して返す。
// リモートバックエンドはサーバー側で絞り込み可能だが、フィルタリングは
// 常にクライアント側で行う（単純さ優先のトレードオフ）。
// 結果はバックエンドに依らず作成日時の降順に揃える。
func (r *Repository) GetTasks(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	tasks, err := r.backend.List(ctx)
	if err != nil {
		return nil, translate(err)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	if filter == model.TaskFilterAll || filter == "" {
		return tasks, nil
	}

	filtered := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if filter.Match(t) {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// AddTask はタスクをバックエンドに永続化する。
func (r *Repository) AddTask(ctx context.Context, t model.Task) (model.Task, error) {
	added, err := r.backend.Add(ctx, t)
	if err != nil {
		return model.Task{}, translate(err)
	}
	return added, nil
}

// UpdateTask はIDが一致するレコード全体を置き換える。
func (r *Repository) UpdateTask(ctx context.Context, t model.Task) (model.Task, error) {
	updated, err := r.backend.Update(ctx, t)
	if err != nil {
		return model.Task{}, translate(err)
	}
	return updated, nil
}

// DeleteTask はIDが一致するレコードを削除する。
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	if err := r.backend.Delete(ctx, id); err != nil {
		return translate(err)
	}
	return nil
}

// translate はバックエンドのエラーを失敗分類に変換する。
// 未知のエラーも合成メッセージ付きのストレージ障害として包み、素のまま返さない。
func translate(err error) *model.Failure {
	var failure *model.Failure
	switch {
	case errors.As(err, &failure):
		return failure
	case errors.Is(err, repository.ErrNotFound):
		return model.NewNotFoundFailure("task not found")
	case errors.Is(err, repository.ErrNotAuthenticated):
		return model.NewServerFailure("not authenticated")
	case err != nil:
		return model.NewStorageFailure(err.Error())
	}
	return model.NewStorageFailure("unexpected error")
}
