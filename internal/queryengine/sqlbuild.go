// Package queryengine file: internal/queryengine/sqlbuild.go
package queryengine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/schemafx/schemafx/internal/core/domain"
)

// quoteIdent 对标识符做防御性引用：包裹双引号并把内部的双引号翻倍。
// 标识符虽然来自受信任的模式元数据，但含引号的病态标识符也不能构成注入。
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// columnTypeFor 把字段类型映射为临时关系的列类型。
// 加密字段一律 VARCHAR，密文是不透明文本。JSON 和 List 以序列化文本落列，
// 结果解码时再还原成原生对象（见 decode.go）。
func columnTypeFor(f *domain.Field) string {
	if f.Encrypted {
		return "VARCHAR"
	}
	switch f.Kind {
	case domain.FieldNumber:
		return "DOUBLE"
	case domain.FieldBoolean:
		return "BOOLEAN"
	case domain.FieldDate:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// buildCreateTableSQL 为一次查询构建唯一命名的临时关系，每个字段一列。
func buildCreateTableSQL(rel string, fields []domain.Field) (string, error) {
	if len(fields) == 0 {
		return "", errors.New("表没有任何字段，无法构建临时关系")
	}
	cols := make([]string, 0, len(fields))
	for i := range fields {
		cols = append(cols, quoteIdent(fields[i].ID)+" "+columnTypeFor(&fields[i]))
	}
	return fmt.Sprintf("CREATE TEMP TABLE %s (%s)", quoteIdent(rel), strings.Join(cols, ", ")), nil
}

// buildInsertSQL 构建多行参数化 INSERT，rowCount 是本批次行数。
func buildInsertSQL(rel string, fields []domain.Field, rowCount int) (string, error) {
	if rowCount < 1 {
		return "", errors.New("INSERT 批次行数必须大于 0")
	}
	cols := make([]string, 0, len(fields))
	for i := range fields {
		cols = append(cols, quoteIdent(fields[i].ID))
	}
	single := "(" + strings.TrimRight(strings.Repeat("?, ", len(fields)), ", ") + ")"
	values := make([]string, rowCount)
	for i := range values {
		values[i] = single
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		quoteIdent(rel), strings.Join(cols, ", "), strings.Join(values, ", ")), nil
}

// buildSelectSQL 把声明式查询编译成一条参数化 SELECT 加位置参数列表。
// 值永远走占位符，绝不拼接进语句文本。零过滤、零分页等价于无条件全量查询。
func buildSelectSQL(rel string, table *domain.Table, spec *domain.QuerySpec) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(quoteIdent(rel))

	args := make([]any, 0)
	if spec == nil {
		return sb.String(), args, nil
	}

	if len(spec.Filters) > 0 {
		whereClause, whereArgs, err := buildWhereClause(table, spec.Filters)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" ")
		sb.WriteString(whereClause)
		args = append(args, whereArgs...)
	}

	if spec.OrderBy != nil && spec.OrderBy.Column != "" {
		if table.FieldByID(spec.OrderBy.Column) == nil {
			return "", nil, fmt.Errorf("排序列 %q 不在表字段中", spec.OrderBy.Column)
		}
		direction := "ASC"
		if strings.EqualFold(spec.OrderBy.Direction, "desc") {
			direction = "DESC"
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(quoteIdent(spec.OrderBy.Column))
		sb.WriteString(" ")
		sb.WriteString(direction)
	}

	if spec.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, spec.Limit)
	}
	if spec.Offset > 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, spec.Offset)
	}
	return sb.String(), args, nil
}

// buildWhereClause 把过滤条件编译为 WHERE 子句，条件之间恒为 AND。
func buildWhereClause(table *domain.Table, filters []domain.Filter) (string, []any, error) {
	conditions := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))

	for _, filter := range filters {
		field := table.FieldByID(filter.Field)
		if field == nil {
			return "", nil, fmt.Errorf("过滤字段 %q 不在表字段中", filter.Field)
		}
		col := quoteIdent(filter.Field)
		switch filter.Operator {
		case domain.OpEq:
			conditions = append(conditions, col+" = ?")
		case domain.OpNeq:
			conditions = append(conditions, col+" != ?")
		case domain.OpGt:
			conditions = append(conditions, col+" > ?")
		case domain.OpGte:
			conditions = append(conditions, col+" >= ?")
		case domain.OpLt:
			conditions = append(conditions, col+" < ?")
		case domain.OpLte:
			conditions = append(conditions, col+" <= ?")
		case domain.OpContains:
			conditions = append(conditions, "CAST("+col+" AS VARCHAR) LIKE ?")
			args = append(args, fmt.Sprintf("%%%v%%", filter.Value))
			continue
		default:
			return "", nil, fmt.Errorf("不支持的过滤操作符: %q", filter.Operator)
		}
		args = append(args, filterArg(field, filter.Value))
	}
	return "WHERE " + strings.Join(conditions, " AND "), args, nil
}

// filterArg 按列类型转换比较值，保证参数类型与列类型一致。
func filterArg(f *domain.Field, value any) any {
	if f.Encrypted {
		return value
	}
	switch f.Kind {
	case domain.FieldNumber:
		if n, ok := toFloat(value); ok {
			return n
		}
	case domain.FieldDate:
		if t, ok := toTime(value); ok {
			return t
		}
	}
	return value
}
