package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/taskman/internal/model"
)

// CallerSource は現在の認証済みユーザーIDの取得インターフェース。
// リモートバックエンドはすべての呼び出しでこれを参照し、
// 取得できない場合はDBアクセスを行わずにErrNotAuthenticatedを返す。
type CallerSource interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// PostgresTaskRepo はPostgreSQLを使用するリモートタスクバックエンド。
// 各操作はトランザクション内でapp.current_user_idを設定してから実行し、
// tasksテーブルの行レベルセキュリティポリシーを有効に機能させる。
// クエリ自体もuser_idでスコープし、ポリシーと二重に分離を保証する。
type PostgresTaskRepo struct {
	db     *sql.DB
	caller CallerSource
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB, caller CallerSource) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db, caller: caller}
}

// inUserTx はapp.current_user_idを設定したトランザクション内でfnを実行する。
// set_configのis_local=trueによりGUCはトランザクション終了時に破棄されるため、
// コネクションプール上の他のリクエストに漏れない。
func (r *PostgresTaskRepo) inUserTx(ctx context.Context, userID string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT set_config('app.current_user_id', $1, true)`, userID,
	); err != nil {
		return fmt.Errorf("failed to set row security context: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// List は呼び出し元ユーザーの全タスクをcreated_at降順で返す。
func (r *PostgresTaskRepo) List(ctx context.Context) ([]model.Task, error) {
	userID, err := r.caller.CurrentUserID(ctx)
	if err != nil {
		return nil, ErrNotAuthenticated
	}

	var tasks []model.Task
	err = r.inUserTx(ctx, userID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, user_id, title, description, is_completed, created_at
			 FROM tasks
			 WHERE user_id = $1
			 ORDER BY created_at DESC`,
			userID,
		)
		if err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}
		defer rows.Close()

		tasks = make([]model.Task, 0)
		for rows.Next() {
			var rec taskRecord
			if err := rows.Scan(
				&rec.ID, &rec.UserID, &rec.Title,
				&rec.Description, &rec.IsCompleted, &rec.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to scan task: %w", err)
			}
			task, err := rec.toTask()
			if err != nil {
				return fmt.Errorf("failed to decode task: %w", err)
			}
			tasks = append(tasks, task)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

// Add はタスクをupsertする。同一IDのレコードが存在する場合は置き換える。
// 所有者は常に呼び出し元ユーザーであり、created_atは置き換え時も更新しない。
// 他ユーザーが所有する行とIDが衝突した場合はエラーを返す。
func (r *PostgresTaskRepo) Add(ctx context.Context, task model.Task) (model.Task, error) {
	userID, err := r.caller.CurrentUserID(ctx)
	if err != nil {
		return model.Task{}, ErrNotAuthenticated
	}

	rec := newTaskRecord(task)

	err = r.inUserTx(ctx, userID, func(tx *sql.Tx) error {
		var insertedID string
		err := tx.QueryRowContext(ctx,
			`INSERT INTO tasks (id, user_id, title, description, is_completed, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET
			     title = EXCLUDED.title,
			     description = EXCLUDED.description,
			     is_completed = EXCLUDED.is_completed
			 WHERE tasks.user_id = EXCLUDED.user_id
			 RETURNING id`,
			rec.ID, userID, rec.Title, rec.Description,
			bool(rec.IsCompleted), rec.CreatedAt,
		).Scan(&insertedID)

		// WHERE句で置き換えが抑止された場合、RETURNINGは行を返さない
		if err == sql.ErrNoRows {
			return fmt.Errorf("task %s already exists with another owner", rec.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to add task: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	task.UserID = userID
	return task, nil
}

// Update はIDと所有者の複合キーでレコード全体を置き換える。
// 行が一致しない場合（存在しない、または他ユーザーの行）はErrNotFoundを返す。
func (r *PostgresTaskRepo) Update(ctx context.Context, task model.Task) (model.Task, error) {
	userID, err := r.caller.CurrentUserID(ctx)
	if err != nil {
		return model.Task{}, ErrNotAuthenticated
	}

	rec := newTaskRecord(task)

	var result model.Task
	err = r.inUserTx(ctx, userID, func(tx *sql.Tx) error {
		var updated taskRecord
		err := tx.QueryRowContext(ctx,
			`UPDATE tasks
			 SET title = $3, description = $4, is_completed = $5
			 WHERE id = $1 AND user_id = $2
			 RETURNING id, user_id, title, description, is_completed, created_at`,
			rec.ID, userID, rec.Title, rec.Description, bool(rec.IsCompleted),
		).Scan(
			&updated.ID, &updated.UserID, &updated.Title,
			&updated.Description, &updated.IsCompleted, &updated.CreatedAt,
		)

		// 権限外の行と存在しない行はワイヤ上で区別できないため、どちらも未検出として扱う。
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}

		result, err = updated.toTask()
		if err != nil {
			return fmt.Errorf("failed to decode updated task: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	return result, nil
}

// Delete はIDと所有者の複合キーでレコードを削除する。
// 影響行数が0の場合はErrNotFoundを返す。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id string) error {
	userID, err := r.caller.CurrentUserID(ctx)
	if err != nil {
		return ErrNotAuthenticated
	}

	return r.inUserTx(ctx, userID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
			id, userID,
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
	})
}

// compile-time interface check
var _ TaskBackend = (*PostgresTaskRepo)(nil)
