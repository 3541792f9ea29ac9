// Package validate 把字段元数据编译成行级校验器。
// file: internal/validate/validate.go
//
// 编译是结构化且递归的：JSON 字段把子字段列表编译成嵌套对象校验器，
// List 字段把元素字段编译成逐元素校验器。校验采用封闭对象语义，
// 输入行中未声明的字段一律拒绝，防止未校验的列被悄悄写入连接器。
package validate

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"time"
	"unicode/utf8"

	"github.com/schemafx/schemafx/internal/core/domain"
)

// Violation 是单条校验违规：字段路径、人类可读消息、机器可读代码。
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Violations 是一次校验产生的全部违规，实现 error 接口向上传播。
type Violations []Violation

func (vs Violations) Error() string {
	if len(vs) == 0 {
		return "校验失败"
	}
	if len(vs) == 1 {
		return fmt.Sprintf("字段 %s 校验失败: %s", vs[0].Field, vs[0].Message)
	}
	return fmt.Sprintf("校验失败，共 %d 处违规，首个在字段 %s: %s", len(vs), vs[0].Field, vs[0].Message)
}

// 违规代码的封闭集合。
const (
	CodeRequired     = "required"
	CodeUnknownField = "unknown_field"
	CodeType         = "type"
	CodeMinLength    = "min_length"
	CodeMaxLength    = "max_length"
	CodeMin          = "min"
	CodeMax          = "max"
	CodeFormat       = "format"
	CodeOption       = "option"
	CodeDateBound    = "date_bound"
)

// checker 校验单个值并返回归一化结果，路径用于违规定位。
type checker func(path string, value any) (any, Violations)

// Validator 是编译产物：校验一行并返回归一化行或违规列表。
type Validator struct {
	fields []domain.Field
	checks map[string]checker
}

// Compile 把一张表的顶层字段列表编译成校验器。
func Compile(fields []domain.Field) *Validator {
	v := &Validator{
		fields: fields,
		checks: make(map[string]checker, len(fields)),
	}
	for i := range fields {
		v.checks[fields[i].ID] = compileField(&fields[i])
	}
	return v
}

// Validate 校验一行。成功时返回只含已声明字段的归一化行，
// 失败时返回 nil 和聚合后的 Violations。
func (v *Validator) Validate(row domain.Row) (domain.Row, error) {
	out := make(domain.Row, len(row))
	var all Violations

	for i := range v.fields {
		f := &v.fields[i]
		val, present := row[f.ID]
		if !present || val == nil {
			if f.Required {
				all = append(all, Violation{Field: f.ID, Message: "必填字段缺失", Code: CodeRequired})
				continue
			}
			if present {
				out[f.ID] = nil
			}
			continue
		}
		normalized, vs := v.checks[f.ID](f.ID, val)
		if len(vs) > 0 {
			all = append(all, vs...)
			continue
		}
		out[f.ID] = normalized
	}

	for key := range row {
		if _, ok := v.checks[key]; !ok {
			all = append(all, Violation{Field: key, Message: "未在模式中声明的字段", Code: CodeUnknownField})
		}
	}

	if len(all) > 0 {
		return nil, all
	}
	return out, nil
}

func compileField(f *domain.Field) checker {
	switch f.Kind {
	case domain.FieldText:
		return compileText(f.Constraints)
	case domain.FieldNumber:
		return compileNumber(f.Constraints)
	case domain.FieldDate:
		return compileDate(f.Constraints)
	case domain.FieldEmail:
		return checkEmail
	case domain.FieldDropdown:
		return compileDropdown(f.Constraints)
	case domain.FieldBoolean:
		return checkBoolean
	case domain.FieldReference:
		return checkReference
	case domain.FieldJSON:
		return compileObject(f.Children)
	case domain.FieldList:
		return compileList(f.Element)
	}
	// 未知类型不做校验，原样通过
	return func(_ string, value any) (any, Violations) { return value, nil }
}

func compileText(c *domain.FieldConstraints) checker {
	return func(path string, value any) (any, Violations) {
		s, ok := value.(string)
		if !ok {
			return nil, Violations{{Field: path, Message: "期望字符串", Code: CodeType}}
		}
		n := utf8.RuneCountInString(s)
		if c != nil {
			if c.MinLength != nil && n < *c.MinLength {
				return nil, Violations{{Field: path, Message: fmt.Sprintf("长度不足，最少 %d 个字符", *c.MinLength), Code: CodeMinLength}}
			}
			if c.MaxLength != nil && n > *c.MaxLength {
				return nil, Violations{{Field: path, Message: fmt.Sprintf("长度超限，最多 %d 个字符", *c.MaxLength), Code: CodeMaxLength}}
			}
		}
		return s, nil
	}
}

func compileNumber(c *domain.FieldConstraints) checker {
	return func(path string, value any) (any, Violations) {
		f, ok := toFloat(value)
		if !ok {
			return nil, Violations{{Field: path, Message: "期望数字", Code: CodeType}}
		}
		if c != nil {
			if c.Min != nil && f < *c.Min {
				return nil, Violations{{Field: path, Message: fmt.Sprintf("小于下限 %v", *c.Min), Code: CodeMin}}
			}
			if c.Max != nil && f > *c.Max {
				return nil, Violations{{Field: path, Message: fmt.Sprintf("大于上限 %v", *c.Max), Code: CodeMax}}
			}
		}
		return f, nil
	}
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
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
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func compileDate(c *domain.FieldConstraints) checker {
	return func(path string, value any) (any, Violations) {
		t, ok := toTime(value)
		if !ok {
			return nil, Violations{{Field: path, Message: "期望时间、RFC 3339 字符串或毫秒时间戳", Code: CodeType}}
		}
		if c != nil {
			if c.After != nil && t.Before(*c.After) {
				return nil, Violations{{Field: path, Message: fmt.Sprintf("早于允许的最早时间 %s", c.After.Format(time.RFC3339)), Code: CodeDateBound}}
			}
			if c.Before != nil && t.After(*c.Before) {
				return nil, Violations{{Field: path, Message: fmt.Sprintf("晚于允许的最晚时间 %s", c.Before.Format(time.RFC3339)), Code: CodeDateBound}}
			}
		}
		return t, nil
	}
}

func toTime(value any) (time.Time, bool) {
	switch t := value.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		if f, ok := toFloat(value); ok {
			return time.UnixMilli(int64(f)).UTC(), true
		}
	}
	return time.Time{}, false
}

func checkEmail(path string, value any) (any, Violations) {
	s, ok := value.(string)
	if !ok {
		return nil, Violations{{Field: path, Message: "期望字符串", Code: CodeType}}
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return nil, Violations{{Field: path, Message: "不是合法的邮箱地址", Code: CodeFormat}}
	}
	return s, nil
}

func compileDropdown(c *domain.FieldConstraints) checker {
	return func(path string, value any) (any, Violations) {
		s, ok := value.(string)
		if !ok {
			return nil, Violations{{Field: path, Message: "期望字符串", Code: CodeType}}
		}
		if c != nil {
			for _, opt := range c.Options {
				if s == opt {
					return s, nil
				}
			}
		}
		return nil, Violations{{Field: path, Message: fmt.Sprintf("%q 不在可选项中", s), Code: CodeOption}}
	}
}

func checkBoolean(path string, value any) (any, Violations) {
	b, ok := value.(bool)
	if !ok {
		return nil, Violations{{Field: path, Message: "期望布尔值", Code: CodeType}}
	}
	return b, nil
}

func checkReference(path string, value any) (any, Violations) {
	switch value.(type) {
	case string:
		return value, nil
	}
	if f, ok := toFloat(value); ok {
		return f, nil
	}
	return nil, Violations{{Field: path, Message: "引用值期望字符串或数字 ID", Code: CodeType}}
}

// compileObject 把子字段列表编译成封闭的嵌套对象校验器。
// 没有声明子字段的 JSON 字段接受任意值。
func compileObject(children []domain.Field) checker {
	if len(children) == 0 {
		return func(_ string, value any) (any, Violations) { return value, nil }
	}
	checks := make(map[string]checker, len(children))
	for i := range children {
		checks[children[i].ID] = compileField(&children[i])
	}
	return func(path string, value any) (any, Violations) {
		obj, ok := asObject(value)
		if !ok {
			return nil, Violations{{Field: path, Message: "期望对象", Code: CodeType}}
		}
		out := make(map[string]any, len(obj))
		var all Violations
		for i := range children {
			f := &children[i]
			childPath := path + "." + f.ID
			val, present := obj[f.ID]
			if !present || val == nil {
				if f.Required {
					all = append(all, Violation{Field: childPath, Message: "必填字段缺失", Code: CodeRequired})
					continue
				}
				if present {
					out[f.ID] = nil
				}
				continue
			}
			normalized, vs := checks[f.ID](childPath, val)
			if len(vs) > 0 {
				all = append(all, vs...)
				continue
			}
			out[f.ID] = normalized
		}
		for key := range obj {
			if _, ok := checks[key]; !ok {
				all = append(all, Violation{Field: path + "." + key, Message: "未在模式中声明的字段", Code: CodeUnknownField})
			}
		}
		if len(all) > 0 {
			return nil, all
		}
		return out, nil
	}
}

func asObject(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case domain.Row:
		return m, true
	}
	return nil, false
}

// compileList 把元素字段编译成逐元素校验器。
// 没有声明元素字段的 List 字段接受任意元素的切片。
func compileList(element *domain.Field) checker {
	if element == nil {
		return func(path string, value any) (any, Violations) {
			if _, ok := value.([]any); !ok {
				return nil, Violations{{Field: path, Message: "期望列表", Code: CodeType}}
			}
			return value, nil
		}
	}
	elemCheck := compileField(element)
	return func(path string, value any) (any, Violations) {
		list, ok := value.([]any)
		if !ok {
			return nil, Violations{{Field: path, Message: "期望列表", Code: CodeType}}
		}
		out := make([]any, 0, len(list))
		var all Violations
		for i, elem := range list {
			elemPath := fmt.Sprintf("%s[%d]", path, i)
			if elem == nil {
				out = append(out, nil)
				continue
			}
			normalized, vs := elemCheck(elemPath, elem)
			if len(vs) > 0 {
				all = append(all, vs...)
				continue
			}
			out = append(out, normalized)
		}
		if len(all) > 0 {
			return nil, all
		}
		return out, nil
	}
}
