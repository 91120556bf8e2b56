package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open はリモートバックエンド用のPostgreSQL接続プールを開く。
// databaseURLはDATABASE_URLで指定された接続URL。
// sql.Openは遅延接続のため、疎通確認は呼び出し側でdb.Ping()を行うこと。
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// タスク操作は1リクエスト1トランザクションの短命な接続利用のため、
	// プールは小さく保つ
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
