// Package port file: internal/core/port/service.go
package port

import (
	"context"

	"github.com/schemafx/schemafx/internal/core/domain"
)

// SchemaMutationKind 是模式编辑操作的封闭集合。
type SchemaMutationKind string

const (
	MutationPutSchema    SchemaMutationKind = "putSchema"
	MutationDeleteSchema SchemaMutationKind = "deleteSchema"
	MutationPutTable     SchemaMutationKind = "putTable"
	MutationDeleteTable  SchemaMutationKind = "deleteTable"
	MutationPutView      SchemaMutationKind = "putView"
	MutationDeleteView   SchemaMutationKind = "deleteView"
)

// SchemaMutation 描述一次模式编辑，按 Kind 取对应载荷字段。
type SchemaMutation struct {
	Kind    SchemaMutationKind `json:"kind"`
	Schema  *domain.Schema     `json:"schema,omitempty"`
	Table   *domain.Table      `json:"table,omitempty"`
	View    *domain.View       `json:"view,omitempty"`
	TableID string             `json:"tableId,omitempty"`
	ViewID  string             `json:"viewId,omitempty"`
}

// DataService 是传输层消费的统一边界。
type DataService interface {
	// GetSchema 返回应用的完整模式
	GetSchema(ctx context.Context, appID string) (*domain.Schema, error)

	// MutateSchema 应用一次模式编辑并返回编辑后的模式，删除整个模式时返回 nil
	MutateSchema(ctx context.Context, appID string, edit SchemaMutation) (*domain.Schema, error)

	// QueryData 执行声明式查询，spec 为 nil 时等价于无条件全量查询
	QueryData(ctx context.Context, appID, tableID string, spec *domain.QuerySpec) ([]domain.Row, error)

	// ExecuteAction 按 ID 执行表上声明的动作
	ExecuteAction(ctx context.Context, appID, tableID, actionID string, rows []domain.Row) error
}

// QueryEngine 是查询翻译引擎的边界，便于服务层在测试中替换实现。
type QueryEngine interface {
	Query(ctx context.Context, table *domain.Table, conn Connector, spec *domain.QuerySpec) ([]domain.Row, error)
}

// PermissionService 定义了权限读写和缓存失效的能力。
type PermissionService interface {
	HasPermission(ctx context.Context, target domain.Target, email string, level domain.PermissionLevel) (bool, error)
	ListByTarget(ctx context.Context, target domain.Target) ([]domain.Permission, error)
	Grant(ctx context.Context, perm domain.Permission) (int64, error)
	Move(ctx context.Context, id int64, newTarget domain.Target) error
	Revoke(ctx context.Context, id int64) error
}

// ConnectionResolver 按 ID 解析已登记的外部连接，查询引擎靠它执行 Connection 数据源。
type ConnectionResolver interface {
	GetConnection(ctx context.Context, id string) (*domain.Connection, error)
}
