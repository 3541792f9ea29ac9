// Package store 负责系统库的打开与表结构初始化。
// 系统库承载平台自身的状态：账户、授权、外部连接登记和动作审计。
// 模式文档不在这里：它由充当模式存储的连接器持久化。
package store

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"
)

// Open 打开系统库。WAL 模式, 外键约束开启, 写锁等待 10 秒。
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=ON&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开系统库失败: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接系统库失败: %w", err)
	}
	return db, nil
}

// EnsureTables 检查并创建所有平台级的系统管理表，可重复执行。
func EnsureTables(db *sql.DB) error {
	if err := initUserTable(db); err != nil {
		return fmt.Errorf("初始化用户表失败: %w", err)
	}
	if err := initPermissionTable(db); err != nil {
		return fmt.Errorf("初始化权限表失败: %w", err)
	}
	if err := initConnectionTable(db); err != nil {
		return fmt.Errorf("初始化连接表失败: %w", err)
	}
	if err := initActionLogTable(db); err != nil {
		return fmt.Errorf("初始化动作日志表失败: %w", err)
	}

	log.Println("✅ 数据库: 所有系统表结构初始化/检查完成。")
	return nil
}

// initUserTable 创建用户表
func initUserTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS _user(
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        role TEXT NOT NULL,
        rate_limit_per_second REAL, -- for user-specific rate limiting
        burst_size INTEGER
    );`
	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("创建 '_user' 表失败: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_user_email ON _user (email);`)
	return err
}

// initPermissionTable 创建权限授予表。
// 同一目标上对同一邮箱只允许一条授予记录。
func initPermissionTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS permission (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        target_type TEXT NOT NULL,
        target_id TEXT NOT NULL,
        email TEXT NOT NULL,
        level TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        UNIQUE (target_type, target_id, email)
    );`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("创建 'permission' 表失败: %w", err)
	}
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_permission_target ON permission (target_type, target_id);`)
	return err
}

// initConnectionTable 创建外部数据库连接登记表
func initConnectionTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS connection (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        driver TEXT NOT NULL,
        dsn TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );`
	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("创建 'connection' 表失败: %w", err)
	}
	return nil
}

// initActionLogTable 创建动作执行审计表
func initActionLogTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS action_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        action_id TEXT NOT NULL,
        app_id TEXT NOT NULL,
        table_id TEXT NOT NULL,
        user_email TEXT,
        status TEXT NOT NULL, -- 'COMPLETED', 'FAILED'
        error TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("创建 'action_log' 表失败: %w", err)
	}
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_action_log_action ON action_log(action_id);`)
	return err
}
