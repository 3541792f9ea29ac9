// Package domain file: internal/core/domain/query.go
package domain

// FilterOperator 是声明式过滤条件支持的操作符集合。
type FilterOperator string

const (
	OpEq       FilterOperator = "eq"
	OpNeq      FilterOperator = "neq"
	OpGt       FilterOperator = "gt"
	OpGte      FilterOperator = "gte"
	OpLt       FilterOperator = "lt"
	OpLte      FilterOperator = "lte"
	OpContains FilterOperator = "contains"
)

// Filter 是单个过滤条件：字段、操作符、比较值。
type Filter struct {
	Field    string         `json:"field"`
	Operator FilterOperator `json:"operator"`
	Value    any            `json:"value"`
}

// OrderBy 指定排序列和方向，Direction 取 asc 或 desc，缺省按 asc 处理。
type OrderBy struct {
	Column    string `json:"column"`
	Direction string `json:"direction,omitempty"`
}

// QuerySpec 是声明式查询：过滤、排序、分页。
// 全部字段可缺省，缺省时等价于无条件的全量查询。
type QuerySpec struct {
	Filters []Filter `json:"filters,omitempty"`
	OrderBy *OrderBy `json:"orderBy,omitempty"`
	Limit   int      `json:"limit,omitempty"`
	Offset  int      `json:"offset,omitempty"`
}
