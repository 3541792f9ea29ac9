// Package sqlite file: internal/adapter/connector/sqlite/schema_store.go
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/schemafx/schemafx/internal/core/domain"
)

// registryTable 存放应用模式的 JSON 文档。
// 带内部前缀, 不会出现在 ListTables 的结果里。
const registryTable = innerPrefix + "schema_registry"

// ensureRegistry 初始化模式注册表。连接器打开时执行一次。
func (c *Connector) ensureRegistry(ctx context.Context) error {
	createSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %q (
		app_id     TEXT PRIMARY KEY,
		document   TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`, registryTable)
	if _, err := c.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("初始化模式注册表失败: %w", err)
	}
	return nil
}

// GetSchema 读取应用的模式文档。应用不存在时返回 (nil, nil)。
func (c *Connector) GetSchema(ctx context.Context, appID string) (*domain.Schema, error) {
	var document string
	query := fmt.Sprintf("SELECT document FROM %q WHERE app_id = ?", registryTable)
	err := c.db.QueryRowContext(ctx, query, appID).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取应用 %q 的模式文档失败: %w", appID, err)
	}

	var schema domain.Schema
	if err := json.Unmarshal([]byte(document), &schema); err != nil {
		return nil, fmt.Errorf("应用 %q 的模式文档损坏: %w", appID, err)
	}
	return &schema, nil
}

// SaveSchema 以 UPSERT 写入模式文档。
func (c *Connector) SaveSchema(ctx context.Context, schema *domain.Schema) error {
	if schema == nil || schema.ID == "" {
		return fmt.Errorf("模式文档缺少应用ID，无法持久化")
	}
	document, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("序列化应用 %q 的模式文档失败: %w", schema.ID, err)
	}

	query := fmt.Sprintf(`
	INSERT INTO %q (app_id, document, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(app_id) DO UPDATE SET
		document   = excluded.document,
		updated_at = CURRENT_TIMESTAMP;`, registryTable)
	if _, err := c.db.ExecContext(ctx, query, schema.ID, string(document)); err != nil {
		return fmt.Errorf("持久化应用 %q 的模式文档失败: %w", schema.ID, err)
	}
	return nil
}

// DeleteSchema 删除应用的模式文档。文档不存在时视为已删除。
func (c *Connector) DeleteSchema(ctx context.Context, appID string) error {
	query := fmt.Sprintf("DELETE FROM %q WHERE app_id = ?", registryTable)
	if _, err := c.db.ExecContext(ctx, query, appID); err != nil {
		return fmt.Errorf("删除应用 %q 的模式文档失败: %w", appID, err)
	}
	return nil
}
