// Package sqlite 实现承载在单个 SQLite 数据库上的连接器。
// 表的 Path 对应库内的物理表名, 结构发现走 sqlite_master 和 PRAGMA table_info,
// 行数据以推送流交给查询引擎, 行变更翻译成参数化的 INSERT/UPDATE/DELETE。
// 连接器实例还可以充当平台的模式存储, 模式文档落在带内部前缀的登记表里。
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
)

// innerPrefix 标记连接器自用的内部表, 结构发现时一律跳过。
const innerPrefix = "_schemafx_internal_"

// Connector 是 SQLite 连接器实例, 对应一个数据库文件。
type Connector struct {
	id   string
	name string
	path string
	db   *sql.DB
}

var (
	_ port.Connector    = (*Connector)(nil)
	_ port.DataStreamer = (*Connector)(nil)
	_ port.RowWriter    = (*Connector)(nil)
	_ port.RowUpdater   = (*Connector)(nil)
	_ port.RowDeleter   = (*Connector)(nil)
	_ port.SchemaStore  = (*Connector)(nil)
)

// New 打开数据库文件并创建连接器。
func New(ctx context.Context, id, name, path string) (*Connector, error) {
	if path == "" {
		return nil, fmt.Errorf("SQLite 连接器需要一个数据库文件路径")
	}
	if name == "" {
		name = "SQLite 连接器"
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=ON", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open '%s' 失败: %w", path, err)
	}
	if errPing := db.PingContext(ctx); errPing != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping 数据库 '%s' 失败: %w", path, errPing)
	}

	c := &Connector{id: id, name: name, path: path, db: db}
	if err := c.ensureRegistry(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Connector) ID() string   { return c.id }
func (c *Connector) Name() string { return c.name }

// Close 关闭数据库连接。
func (c *Connector) Close() error {
	return c.db.Close()
}

// physicalTable 取表在库内的物理表名, Path 缺省时退回表 ID。
func physicalTable(table *domain.Table) string {
	if table.Path != "" {
		return table.Path
	}
	return table.ID
}

// ListTables 枚举库内全部用户表。SQLite 命名空间是平的, path 参数被忽略。
func (c *Connector) ListTables(ctx context.Context, _ string) ([]port.TableDescriptor, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' AND name NOT LIKE ? ORDER BY name`,
		innerPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("枚举用户表失败: %w", err)
	}
	defer rows.Close()

	var descs []port.TableDescriptor
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("扫描表名失败: %w", err)
		}
		descs = append(descs, port.TableDescriptor{Path: name, Name: name})
	}
	return descs, rows.Err()
}

// GetTable 按物理表名探测结构, 声明类型映射到字段类型, 主键列标记为 key。
// 表不存在时返回 (nil, nil)。
func (c *Connector) GetTable(ctx context.Context, path string) (*domain.Table, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, path))
	if err != nil {
		return nil, fmt.Errorf("PRAGMA table_info for table %q 失败: %w", path, err)
	}
	defer rows.Close()

	table := &domain.Table{ID: path, Name: path, Path: path}
	for rows.Next() {
		var (
			cid       int
			colName   string
			colType   string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notnull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("扫描表 %q 的列信息失败: %w", path, err)
		}
		table.Fields = append(table.Fields, domain.Field{
			ID:       colName,
			Name:     colName,
			Kind:     kindFromDeclaredType(colType),
			Required: notnull == 1,
			Key:      pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(table.Fields) == 0 {
		return nil, nil
	}
	return table, nil
}

// kindFromDeclaredType 把 SQLite 的声明类型折算到字段类型集合。
func kindFromDeclaredType(declared string) domain.FieldKind {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "BOOL"):
		return domain.FieldBoolean
	case strings.Contains(t, "INT"), strings.Contains(t, "REAL"),
		strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"), strings.Contains(t, "NUMERIC"):
		return domain.FieldNumber
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return domain.FieldDate
	default:
		return domain.FieldText
	}
}

// GetCapabilities 声明支持流式读取, 过滤下推交给查询引擎统一处理。
func (c *Connector) GetCapabilities(_ context.Context, _ *domain.Table) (port.Capabilities, error) {
	return port.Capabilities{SupportsStreaming: true}, nil
}
