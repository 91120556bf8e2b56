package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteSchemaVersion はローカルストアの固定スキーマバージョン。
const sqliteSchemaVersion = 1

// sqliteSchema はローカルSQLストアのスキーマ。
// 完了フラグは0/1整数、作成日時はISO-8601文字列で格納する。
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    user_id TEXT,
    title TEXT NOT NULL,
    description TEXT,
    is_completed INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);
`

// OpenSQLite はローカルのSQLiteストアを開き、スキーマを初期化して返す。
// 返されたハンドルのライフサイクルは呼び出し側が所有し、
// 利用終了時に明示的にCloseすること。
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// initSQLiteSchema はスキーマを作成し、バージョンを記録する。
// 既存バージョンが現行より古い場合はupgradeSQLiteSchemaを呼ぶ。
func initSQLiteSchema(db *sql.DB) error {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}

	var version int
	err := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, sqliteSchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version < sqliteSchemaVersion {
		return upgradeSQLiteSchema(db, version)
	}

	return nil
}

// upgradeSQLiteSchema は旧バージョンからのアップグレードフック。
// スキーマは単一の固定バージョンのため現時点では何もしない。
func upgradeSQLiteSchema(db *sql.DB, from int) error {
	return nil
}
