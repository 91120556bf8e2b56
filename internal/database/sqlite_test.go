package database

import (
	"testing"
)

// OpenSQLiteがインメモリDBに対してスキーマを初期化できることを検証
func TestOpenSQLite_InitializesSchema(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	defer db.Close()

	// tasksテーブルが存在すること
	var name string
	err = db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'tasks'`,
	).Scan(&name)
	if err != nil {
		t.Fatalf("tasks table not found: %v", err)
	}

	// スキーマバージョンが記録されていること
	var version int
	err = db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err != nil {
		t.Fatalf("schema version not recorded: %v", err)
	}
	if version != sqliteSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, sqliteSchemaVersion)
	}
}

// スキーマ初期化が冪等であることを検証
func TestInitSQLiteSchema_Idempotent(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	defer db.Close()

	// 2回目の初期化がエラーにならないこと
	if err := initSQLiteSchema(db); err != nil {
		t.Fatalf("second initialization failed: %v", err)
	}

	// バージョン行が重複していないこと
	var count int
	if err := db.QueryRow(`SELECT count(*) FROM schema_version`).Scan(&count); err != nil {
		t.Fatalf("failed to count schema_version rows: %v", err)
	}
	if count != 1 {
		t.Errorf("schema_version rows = %d, want 1", count)
	}
}

// is_completedのデフォルトが0（未完了）であることを検証
func TestSQLiteSchema_CompletionFlagDefault(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(
		`INSERT INTO tasks (id, user_id, title, created_at) VALUES (?, ?, ?, ?)`,
		"t1", "u1", "milk", "2025-01-02T03:04:05Z",
	)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	var completed int
	if err := db.QueryRow(`SELECT is_completed FROM tasks WHERE id = 't1'`).Scan(&completed); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if completed != 0 {
		t.Errorf("is_completed default = %d, want 0", completed)
	}
}
