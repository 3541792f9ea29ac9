// Package memory 实现进程内的内存连接器。
// 行数据按表键常驻内存, 以 Inline 数据源交给查询引擎, 支持完整的行变更三件套。
// 主要服务于演示应用和各层的集成测试。
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
)

// Connector 是内存连接器实例。
type Connector struct {
	id   string
	name string

	mu     sync.RWMutex
	tables map[string][]domain.Row
}

// 编译期检查: 基础契约加全部可选的行变更能力
var (
	_ port.Connector    = (*Connector)(nil)
	_ port.DataProvider = (*Connector)(nil)
	_ port.RowWriter    = (*Connector)(nil)
	_ port.RowUpdater   = (*Connector)(nil)
	_ port.RowDeleter   = (*Connector)(nil)
)

// New 创建内存连接器。
func New(id, name string) *Connector {
	if name == "" {
		name = "内存连接器"
	}
	return &Connector{
		id:     id,
		name:   name,
		tables: make(map[string][]domain.Row),
	}
}

func (c *Connector) ID() string   { return c.id }
func (c *Connector) Name() string { return c.name }

// tableKey 取表在连接器命名空间里的键, 路径缺省时退回表 ID。
func tableKey(table *domain.Table) string {
	if table.Path != "" {
		return table.Path
	}
	return table.ID
}

// ListTables 枚举当前持有行数据的全部表键, path 参数对内存连接器无意义。
func (c *Connector) ListTables(_ context.Context, _ string) ([]port.TableDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	descs := make([]port.TableDescriptor, 0, len(c.tables))
	for key := range c.tables {
		descs = append(descs, port.TableDescriptor{Path: key, Name: key})
	}
	return descs, nil
}

// GetTable 内存连接器没有独立的结构发现能力, 恒定返回 (nil, nil)。
func (c *Connector) GetTable(_ context.Context, _ string) (*domain.Table, error) {
	return nil, nil
}

// GetCapabilities 声明全部操作符可下推, 不支持流式读取。
func (c *Connector) GetCapabilities(_ context.Context, table *domain.Table) (port.Capabilities, error) {
	caps := port.Capabilities{SupportsStreaming: false}
	if table == nil {
		return caps, nil
	}
	all := []domain.FilterOperator{
		domain.OpEq, domain.OpNeq, domain.OpGt, domain.OpGte,
		domain.OpLt, domain.OpLte, domain.OpContains,
	}
	caps.FilterOperators = make(map[string][]domain.FilterOperator, len(table.Fields))
	for _, f := range table.Fields {
		caps.FilterOperators[f.ID] = all
	}
	return caps, nil
}

// GetData 把表的全部行以 Inline 数据源交出, 行做浅拷贝避免引擎侧写穿。
func (c *Connector) GetData(_ context.Context, table *domain.Table) (*domain.DataSourceDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stored := c.tables[tableKey(table)]
	rows := make([]domain.Row, len(stored))
	for i, r := range stored {
		rows[i] = cloneRow(r)
	}
	return &domain.DataSourceDefinition{Kind: domain.SourceInline, Rows: rows}, nil
}

// AddRow 追加一行。
func (c *Connector) AddRow(_ context.Context, table *domain.Table, row domain.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := tableKey(table)
	c.tables[key] = append(c.tables[key], cloneRow(row))
	return nil
}

// UpdateRow 按 key 字段值定位并整行覆盖, 未命中任何行时不报错。
func (c *Connector) UpdateRow(_ context.Context, table *domain.Table, key domain.Row, row domain.Row) error {
	if len(key) == 0 {
		return fmt.Errorf("更新行需要至少一个 key 字段值")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := c.tables[tableKey(table)]
	for i, r := range stored {
		if rowMatches(r, key) {
			stored[i] = cloneRow(row)
		}
	}
	return nil
}

// DeleteRow 按 key 字段值删除所有命中的行。
func (c *Connector) DeleteRow(_ context.Context, table *domain.Table, key domain.Row) error {
	if len(key) == 0 {
		return fmt.Errorf("删除行需要至少一个 key 字段值")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tk := tableKey(table)
	stored := c.tables[tk]
	kept := stored[:0]
	for _, r := range stored {
		if !rowMatches(r, key) {
			kept = append(kept, r)
		}
	}
	c.tables[tk] = kept
	return nil
}

// Seed 直接替换表的全部行, 测试和演示数据装载用。
func (c *Connector) Seed(table *domain.Table, rows []domain.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make([]domain.Row, len(rows))
	for i, r := range rows {
		copied[i] = cloneRow(r)
	}
	c.tables[tableKey(table)] = copied
}

// rowMatches 判断行在全部 key 字段上与给定值一致。
// 数值统一折算成 float64 再比较, 避免 int/float64 装箱差异带来的漏配。
func rowMatches(row domain.Row, key domain.Row) bool {
	for field, want := range key {
		got, ok := row[field]
		if !ok {
			return false
		}
		if !valueEqual(got, want) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func cloneRow(in domain.Row) domain.Row {
	out := make(domain.Row, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
