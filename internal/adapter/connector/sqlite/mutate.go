// Package sqlite file: internal/adapter/connector/sqlite/mutate.go
package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/schemafx/schemafx/internal/core/domain"
)

// AddRow 向物理表插入一行。
func (c *Connector) AddRow(ctx context.Context, table *domain.Table, row domain.Row) error {
	if len(row) == 0 {
		return fmt.Errorf("插入数据不能为空")
	}
	query, args := buildInsertSQL(physicalTable(table), row)
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("插入行失败: %w", err)
	}
	return nil
}

// UpdateRow 按 key 字段值更新匹配行。
func (c *Connector) UpdateRow(ctx context.Context, table *domain.Table, key domain.Row, row domain.Row) error {
	if len(row) == 0 {
		return fmt.Errorf("更新数据不能为空")
	}
	query, args, err := buildUpdateSQL(physicalTable(table), row, key)
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("更新行失败: %w", err)
	}
	return nil
}

// DeleteRow 按 key 字段值删除匹配行。
func (c *Connector) DeleteRow(ctx context.Context, table *domain.Table, key domain.Row) error {
	query, args, err := buildDeleteSQL(physicalTable(table), key)
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("删除行失败: %w", err)
	}
	return nil
}

// buildInsertSQL 构造参数化的 INSERT 语句。
// 列名排序以保证生成的 SQL 确定性。
func buildInsertSQL(tableName string, row domain.Row) (string, []any) {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		quoted[i] = fmt.Sprintf("%q", col)
		placeholders[i] = "?"
		args[i] = bindValue(row[col])
	}

	query := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		tableName, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	return query, args
}

// buildUpdateSQL 构造参数化的 UPDATE 语句, 拒绝无条件更新。
func buildUpdateSQL(tableName string, row domain.Row, key domain.Row) (string, []any, error) {
	if len(key) == 0 {
		return "", nil, fmt.Errorf("出于安全考虑，不允许无条件的UPDATE操作")
	}

	setCols := make([]string, 0, len(row))
	for col := range row {
		setCols = append(setCols, col)
	}
	sort.Strings(setCols)

	setParts := make([]string, len(setCols))
	args := make([]any, 0, len(row)+len(key))
	for i, col := range setCols {
		setParts[i] = fmt.Sprintf("%q = ?", col)
		args = append(args, bindValue(row[col]))
	}

	whereClause, whereArgs := buildKeyWhere(key)
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %q SET %s WHERE %s", tableName, strings.Join(setParts, ", "), whereClause)
	return query, args, nil
}

// buildDeleteSQL 构造参数化的 DELETE 语句, 拒绝无条件删除。
func buildDeleteSQL(tableName string, key domain.Row) (string, []any, error) {
	if len(key) == 0 {
		return "", nil, fmt.Errorf("出于安全考虑，不允许无条件的DELETE操作")
	}
	whereClause, whereArgs := buildKeyWhere(key)
	query := fmt.Sprintf("DELETE FROM %q WHERE %s", tableName, whereClause)
	return query, whereArgs, nil
}

// buildKeyWhere 把 key 字段值拼成 AND 连接的等值条件。
func buildKeyWhere(key domain.Row) (string, []any) {
	cols := make([]string, 0, len(key))
	for col := range key {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	parts := make([]string, len(cols))
	whereArgs := make([]any, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%q = ?", col)
		whereArgs[i] = bindValue(key[col])
	}
	return strings.Join(parts, " AND "), whereArgs
}

// bindValue 把行值折算成适合绑定的形态。
// time.Time 统一存成 UTC RFC3339 文本, 读回时由流扫描还原。
func bindValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339)
	}
	return v
}
