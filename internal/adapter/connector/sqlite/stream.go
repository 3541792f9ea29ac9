// Package sqlite file: internal/adapter/connector/sqlite/stream.go
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/schemafx/schemafx/internal/core/domain"
)

// GetDataStream 把物理表的全部行扫进推送流。
// 通道由后台 goroutine 负责关闭, 上下文取消时提前收尾。
func (c *Connector) GetDataStream(ctx context.Context, table *domain.Table) (<-chan domain.Row, error) {
	phys := physicalTable(table)
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %q", phys))
	if err != nil {
		return nil, fmt.Errorf("查询表 %q 失败: %w", phys, err)
	}

	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("读取表 %q 的列信息失败: %w", phys, err)
	}

	out := make(chan domain.Row)
	go func() {
		defer close(out)
		defer rows.Close()

		for rows.Next() {
			scanDest := make([]any, len(cols))
			scanDestPtrs := make([]any, len(cols))
			for i := range scanDest {
				scanDestPtrs[i] = &scanDest[i]
			}
			if errScan := rows.Scan(scanDestPtrs...); errScan != nil {
				slog.Warn("扫描行数据失败，跳过此行", "connector", c.id, "table", phys, "error", errScan)
				continue
			}

			row := make(domain.Row, len(cols))
			for i, colName := range cols {
				row[colName] = normalizeValue(table.FieldByID(colName), scanDest[i])
			}

			select {
			case out <- row:
			case <-ctx.Done():
				return
			}
		}
		if errRows := rows.Err(); errRows != nil {
			slog.Error("迭代行数据时发生错误", "connector", c.id, "table", phys, "error", errRows)
		}
	}()
	return out, nil
}

// normalizeValue 把 SQLite 的存储形态折算成字段类型约定的行值:
// BLOB 一律转字符串, 布尔字段的 0/1 整数转 bool, 日期字段的文本转 time.Time。
func normalizeValue(field *domain.Field, value any) any {
	if b, ok := value.([]byte); ok {
		value = string(b)
	}
	if field == nil || value == nil {
		return value
	}

	switch field.Kind {
	case domain.FieldBoolean:
		switch v := value.(type) {
		case bool:
			return v
		case int64:
			return v != 0
		case float64:
			return v != 0
		}
	case domain.FieldDate:
		if s, ok := value.(string); ok {
			for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
				if t, err := time.Parse(layout, s); err == nil {
					return t.UTC()
				}
			}
		}
	}
	return value
}
