// Package port file: internal/core/port/connector.go
package port

import (
	"context"

	"github.com/schemafx/schemafx/internal/core/domain"
)

// TableDescriptor 是命名空间发现时返回的表摘要。
type TableDescriptor struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Capabilities 声明连接器的能力：按字段可下推的操作符，以及是否支持真流式读取。
type Capabilities struct {
	FilterOperators   map[string][]domain.FilterOperator `json:"filterOperators,omitempty"`
	SupportsStreaming bool                               `json:"supportsStreaming"`
}

// Connector 是所有连接器必须实现的基础契约。
// 可选能力通过下面的扩展接口声明，调用方用类型断言探测。
// 读取能力缺失时查询按空结果处理；变更或凭证能力缺失属于契约错误
// (ErrConnectorContract)，在首次调用时报出，不做静默降级。
type Connector interface {
	// ID 返回连接器的注册标识，服务构造时要求全局唯一
	ID() string

	// Name 返回人类可读名称
	Name() string

	// ListTables 枚举指定路径下的表
	ListTables(ctx context.Context, path string) ([]TableDescriptor, error)

	// GetTable 按路径探测表结构，不存在时返回 (nil, nil)
	GetTable(ctx context.Context, path string) (*domain.Table, error)

	// GetCapabilities 返回能力声明，table 为 nil 时返回连接器级别的默认声明
	GetCapabilities(ctx context.Context, table *domain.Table) (Capabilities, error)
}

// DataProvider 提供批量形态的数据来源描述。
type DataProvider interface {
	GetData(ctx context.Context, table *domain.Table) (*domain.DataSourceDefinition, error)
}

// DataStreamer 提供推送流形态的数据来源，通道由实现方负责关闭。
type DataStreamer interface {
	GetDataStream(ctx context.Context, table *domain.Table) (<-chan domain.Row, error)
}

// RowWriter 支持新增行。
type RowWriter interface {
	AddRow(ctx context.Context, table *domain.Table, row domain.Row) error
}

// RowUpdater 支持按 key 字段值更新行。
type RowUpdater interface {
	UpdateRow(ctx context.Context, table *domain.Table, key domain.Row, row domain.Row) error
}

// RowDeleter 支持按 key 字段值删除行。
type RowDeleter interface {
	DeleteRow(ctx context.Context, table *domain.Table, key domain.Row) error
}

// SchemaStore 由充当模式存储的连接器实现。
// GetSchema 在应用不存在时返回 (nil, nil)，由上层服务映射为 ErrSchemaNotFound。
type SchemaStore interface {
	GetSchema(ctx context.Context, appID string) (*domain.Schema, error)
	SaveSchema(ctx context.Context, schema *domain.Schema) error
	DeleteSchema(ctx context.Context, appID string) error
}

// Authorizer 由需要外部凭证交换的连接器实现。
type Authorizer interface {
	GetAuthURL(ctx context.Context) (string, error)
	Authorize(ctx context.Context, credential string) error
	RevokeAuth(ctx context.Context) error
	TestAuth(ctx context.Context) error
}
