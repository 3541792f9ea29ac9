// Package domain file: internal/core/domain/schema.go
package domain

import (
	"fmt"
	"time"
)

// FieldKind 是字段类型的封闭集合，校验器和查询引擎都按它分派。
type FieldKind string

const (
	FieldText      FieldKind = "text"
	FieldNumber    FieldKind = "number"
	FieldDate      FieldKind = "date"
	FieldEmail     FieldKind = "email"
	FieldDropdown  FieldKind = "dropdown"
	FieldBoolean   FieldKind = "boolean"
	FieldReference FieldKind = "reference"
	FieldJSON      FieldKind = "json"
	FieldList      FieldKind = "list"
)

// ActionKind 是动作类型的封闭集合。
type ActionKind string

const (
	ActionAdd     ActionKind = "add"
	ActionUpdate  ActionKind = "update"
	ActionDelete  ActionKind = "delete"
	ActionProcess ActionKind = "process"
)

// Row 是一行数据：字段 ID 到值的开放映射。
// 除编译后的校验器在边界处强制的规则外，不做任何结构约束。
type Row map[string]any

// Schema 描述一个应用：有序的表列表加视图列表。
type Schema struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Tables []Table `json:"tables"`
	Views  []View  `json:"views,omitempty"`
}

// Table 描述一张逻辑表：归属的连接器、在连接器命名空间内的路径、
// 字段树和可调用的动作列表。
type Table struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ConnectorID string   `json:"connectorId"`
	Path        string   `json:"path,omitempty"`
	Fields      []Field  `json:"fields"`
	Actions     []Action `json:"actions,omitempty"`
}

// Field 描述一个字段。JSON 类型通过 Children 持有子字段列表，
// List 类型通过 Element 持有描述元素形状的单个子字段，二者构成递归树。
type Field struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Kind        FieldKind         `json:"kind"`
	Required    bool              `json:"required,omitempty"`
	Key         bool              `json:"key,omitempty"`
	Encrypted   bool              `json:"encrypted,omitempty"`
	Constraints *FieldConstraints `json:"constraints,omitempty"`
	Children    []Field           `json:"children,omitempty"`
	Element     *Field            `json:"element,omitempty"`
}

// FieldConstraints 是按类型生效的约束集合。
// 使用指针类型是为了区分"未设置"和"设置为零值"。
type FieldConstraints struct {
	MinLength *int       `json:"minLength,omitempty"`
	MaxLength *int       `json:"maxLength,omitempty"`
	Min       *float64   `json:"min,omitempty"`
	Max       *float64   `json:"max,omitempty"`
	After     *time.Time `json:"after,omitempty"`
	Before    *time.Time `json:"before,omitempty"`
	Options   []string   `json:"options,omitempty"`
}

// Action 描述一个可按 ID 调用的变更动作。
// Process 类型通过 SubActions 持有按序调用的子动作 ID 列表。
type Action struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Kind       ActionKind `json:"kind"`
	SubActions []string   `json:"subActions,omitempty"`
}

// View 是一种展示方案，必须绑定到本应用内已存在的表。
type View struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	TableID   string      `json:"tableId"`
	Kind      string      `json:"kind"`
	IsDefault bool        `json:"isDefault,omitempty"`
	Binding   ViewBinding `json:"binding,omitempty"`
}

// ViewBinding 包含了所有可能的视图类型的绑定配置。
type ViewBinding struct {
	Card  *CardBinding  `json:"card,omitempty"`
	Table *TableBinding `json:"table,omitempty"`
}

// CardBinding 定义了卡片视图的字段如何与数据绑定。
type CardBinding struct {
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Tag         string `json:"tag,omitempty"`
}

// TableBinding 定义了表格视图的列配置。
type TableBinding struct {
	Columns []TableColumnBinding `json:"columns"`
}

// TableColumnBinding 定义了表格视图中单列的配置。
type TableColumnBinding struct {
	Field       string `json:"field"`
	DisplayName string `json:"displayName"`
	Format      string `json:"format,omitempty"`
}

// TableByID 返回指定 ID 的表，未找到时返回 nil。
func (s *Schema) TableByID(id string) *Table {
	for i := range s.Tables {
		if s.Tables[i].ID == id {
			return &s.Tables[i]
		}
	}
	return nil
}

// Validate 检查模式自身的结构不变量：
// 表 ID 在应用内唯一；视图必须引用已存在的表；
// 声明了 update/delete 动作的表至少要有一个 key 字段。
func (s *Schema) Validate() error {
	seen := make(map[string]struct{}, len(s.Tables))
	for i := range s.Tables {
		t := &s.Tables[i]
		if _, ok := seen[t.ID]; ok {
			return fmt.Errorf("表 ID 重复: %q", t.ID)
		}
		seen[t.ID] = struct{}{}
		if err := t.validate(); err != nil {
			return fmt.Errorf("表 %q: %w", t.ID, err)
		}
	}
	for i := range s.Views {
		v := &s.Views[i]
		if _, ok := seen[v.TableID]; !ok {
			return fmt.Errorf("视图 %q 引用了不存在的表 %q", v.ID, v.TableID)
		}
	}
	return nil
}

func (t *Table) validate() error {
	needsKey := false
	for i := range t.Actions {
		switch t.Actions[i].Kind {
		case ActionUpdate, ActionDelete:
			needsKey = true
		}
	}
	if needsKey && len(t.KeyFields()) == 0 {
		return fmt.Errorf("声明了 update/delete 动作但没有任何 key 字段")
	}
	return nil
}

// FieldByID 返回指定 ID 的顶层字段，未找到时返回 nil。
func (t *Table) FieldByID(id string) *Field {
	for i := range t.Fields {
		if t.Fields[i].ID == id {
			return &t.Fields[i]
		}
	}
	return nil
}

// ActionByID 返回指定 ID 的动作，未找到时返回 nil。
func (t *Table) ActionByID(id string) *Action {
	for i := range t.Actions {
		if t.Actions[i].ID == id {
			return &t.Actions[i]
		}
	}
	return nil
}

// KeyFields 返回所有标记为 key 的顶层字段。
func (t *Table) KeyFields() []Field {
	var keys []Field
	for i := range t.Fields {
		if t.Fields[i].Key {
			keys = append(keys, t.Fields[i])
		}
	}
	return keys
}
