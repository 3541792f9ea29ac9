// Package data file: internal/service/data/data_service.go
//
// data 是平台的核心服务：把 (应用, 表) 解析到具体连接器，
// 对外暴露查询与动作执行两条数据通路。
package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
	"github.com/schemafx/schemafx/internal/fieldcrypt"
	"github.com/schemafx/schemafx/internal/validate"
)

// 编译期断言，确保 Service 实现了 port.DataService 接口
var _ port.DataService = (*Service)(nil)

// SchemaProvider 是模式配置服务在本包内的最小依赖面。
type SchemaProvider interface {
	GetSchema(ctx context.Context, appID string) (*domain.Schema, error)
	MutateSchema(ctx context.Context, appID string, edit port.SchemaMutation) (*domain.Schema, error)
	Validator(ctx context.Context, appID, tableID string) (*validate.Validator, error)
}

// Options 控制服务的可调参数。
type Options struct {
	// MaxActionDepth 是 Process 动作的递归深度上限，<=0 时取默认值 16。
	MaxActionDepth int

	// AuditDB 指向系统库，非 nil 时每次动作执行都会追加一条审计记录。
	AuditDB *sql.DB
}

const defaultMaxActionDepth = 16

// Service 是数据服务的唯一实现。
// 连接器注册表在构造时固定，运行期只读，因此跨请求并发访问无需加锁。
type Service struct {
	schemas    SchemaProvider
	engine     port.QueryEngine
	codec      *fieldcrypt.Codec
	connectors map[string]port.Connector

	maxDepth int
	audit    *sql.DB
}

// NewService 构造数据服务。连接器 ID 重复会立刻失败，而不是留到首次使用。
func NewService(schemas SchemaProvider, engine port.QueryEngine, codec *fieldcrypt.Codec, connectors []port.Connector, opts Options) (*Service, error) {
	if schemas == nil {
		return nil, fmt.Errorf("数据服务初始化失败: schemas 实例不能为 nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("数据服务初始化失败: engine 实例不能为 nil")
	}
	if codec == nil {
		codec = fieldcrypt.New("")
	}

	registry := make(map[string]port.Connector, len(connectors))
	for _, conn := range connectors {
		if conn == nil {
			continue
		}
		id := conn.ID()
		if id == "" {
			return nil, fmt.Errorf("连接器 %q 缺少 ID，无法注册", conn.Name())
		}
		if _, exists := registry[id]; exists {
			return nil, fmt.Errorf("连接器 %q: %w", id, port.ErrDuplicateConnector)
		}
		registry[id] = conn
	}

	maxDepth := opts.MaxActionDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxActionDepth
	}

	return &Service{
		schemas:    schemas,
		engine:     engine,
		codec:      codec,
		connectors: registry,
		maxDepth:   maxDepth,
		audit:      opts.AuditDB,
	}, nil
}

// Connector 按注册 ID 取出连接器，主要供传输层的发现类接口使用。
func (s *Service) Connector(id string) (port.Connector, error) {
	conn, ok := s.connectors[id]
	if !ok {
		return nil, fmt.Errorf("连接器 %q: %w", id, port.ErrConnectorNotFound)
	}
	return conn, nil
}

// ConnectorIDs 返回全部已注册的连接器 ID。
func (s *Service) ConnectorIDs() []string {
	ids := make([]string, 0, len(s.connectors))
	for id := range s.connectors {
		ids = append(ids, id)
	}
	return ids
}

// GetSchema 返回应用的完整模式。
func (s *Service) GetSchema(ctx context.Context, appID string) (*domain.Schema, error) {
	return s.schemas.GetSchema(ctx, appID)
}

// MutateSchema 应用一次模式编辑。
func (s *Service) MutateSchema(ctx context.Context, appID string, edit port.SchemaMutation) (*domain.Schema, error) {
	return s.schemas.MutateSchema(ctx, appID, edit)
}

// QueryData 解析表并把声明式查询交给查询引擎执行。
// spec 为 nil 时等价于无条件全量查询，解密由引擎在出口处完成。
func (s *Service) QueryData(ctx context.Context, appID, tableID string, spec *domain.QuerySpec) ([]domain.Row, error) {
	_, table, conn, err := s.resolveTable(ctx, appID, tableID)
	if err != nil {
		return nil, err
	}
	return s.engine.Query(ctx, table, conn, spec)
}

// resolveTable 把 (应用, 表) 解析成表定义和它声明的连接器实例。
func (s *Service) resolveTable(ctx context.Context, appID, tableID string) (*domain.Schema, *domain.Table, port.Connector, error) {
	schema, err := s.schemas.GetSchema(ctx, appID)
	if err != nil {
		return nil, nil, nil, err
	}

	table := schema.TableByID(tableID)
	if table == nil {
		return nil, nil, nil, fmt.Errorf("表 %q: %w", tableID, port.ErrTableNotFound)
	}

	conn, ok := s.connectors[table.ConnectorID]
	if !ok {
		return nil, nil, nil, fmt.Errorf("连接器 %q: %w", table.ConnectorID, port.ErrConnectorNotFound)
	}
	return schema, table, conn, nil
}
