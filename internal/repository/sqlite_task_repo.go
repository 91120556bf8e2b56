package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hitoshi/taskman/internal/model"
)

// SQLiteTaskRepo はSQLiteを使用するローカルタスクバックエンド。
// 端末上の1ユーザー分のデータのみを保持するため、クエリに所有者条件はない。
// 完了フラグは0/1整数、作成日時はISO-8601文字列で格納する。
// DBハンドルは構築時に注入され、ライフサイクルはアプリ側が所有する。
type SQLiteTaskRepo struct {
	db *sql.DB
}

// NewSQLiteTaskRepo はSQLiteTaskRepoを生成する。
func NewSQLiteTaskRepo(db *sql.DB) *SQLiteTaskRepo {
	return &SQLiteTaskRepo{db: db}
}

// List は保持している全タスクを挿入順で返す。
func (r *SQLiteTaskRepo) List(ctx context.Context) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, description, is_completed, created_at
		 FROM tasks
		 ORDER BY rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		var rec taskRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Title,
			&rec.Description, &rec.IsCompleted, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		task, err := rec.toTask()
		if err != nil {
			return nil, fmt.Errorf("failed to decode task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// Add はタスクをupsertする。同一IDのレコードが存在する場合は内容を更新する。
// INSERT OR REPLACEと異なり行のrowidを保持するため、挿入順が崩れない。
func (r *SQLiteTaskRepo) Add(ctx context.Context, task model.Task) (model.Task, error) {
	rec := newTaskRecord(task)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, description, is_completed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     user_id = excluded.user_id,
		     title = excluded.title,
		     description = excluded.description,
		     is_completed = excluded.is_completed,
		     created_at = excluded.created_at`,
		rec.ID, rec.UserID, rec.Title, rec.Description,
		rec.IsCompleted.asInt(), rec.CreatedAt,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("failed to add task: %w", err)
	}

	return task, nil
}

// Update はIDが一致するレコード全体を置き換える。
// 影響行数が0の場合はErrNotFoundを返す。
func (r *SQLiteTaskRepo) Update(ctx context.Context, task model.Task) (model.Task, error) {
	rec := newTaskRecord(task)

	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks
		 SET user_id = ?, title = ?, description = ?, is_completed = ?
		 WHERE id = ?`,
		rec.UserID, rec.Title, rec.Description, rec.IsCompleted.asInt(), rec.ID,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("failed to update task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return model.Task{}, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return model.Task{}, ErrNotFound
	}

	return task, nil
}

// Delete はIDが一致するレコードを削除する。
// 影響行数が0の場合はErrNotFoundを返す。
func (r *SQLiteTaskRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// compile-time interface check
var _ TaskBackend = (*SQLiteTaskRepo)(nil)
