// Package queryengine file: internal/queryengine/decode.go
package queryengine

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/schemafx/schemafx/internal/core/domain"
)

// maxSafeInteger 是能被 float64 无损表示的最大整数 (2^53-1)。
// 超出它的整数按字符串返回，避免静默丢失精度。
const maxSafeInteger = 1<<53 - 1

// decodeResult 把查询结果按列映射回字段 ID，并按字段类型还原值。
// NULL 列不写入行，保持"缺失"与"显式空值"的区分。
func decodeResult(rows *sql.Rows, table *domain.Table) ([]domain.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Row, 0)
	for rows.Next() {
		scanDest := make([]any, len(cols))
		scanDestPtrs := make([]any, len(cols))
		for i := range scanDest {
			scanDestPtrs[i] = &scanDest[i]
		}
		if err := rows.Scan(scanDestPtrs...); err != nil {
			return nil, fmt.Errorf("扫描结果行失败: %w", err)
		}

		row := make(domain.Row, len(cols))
		for i, colName := range cols {
			if scanDest[i] == nil {
				continue
			}
			field := table.FieldByID(colName)
			if field == nil {
				continue
			}
			row[colName] = decodeValue(field, scanDest[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func decodeValue(f *domain.Field, value any) any {
	if f.Encrypted {
		// 密文原样返回，解密由编解码器统一处理
		if b, ok := value.([]byte); ok {
			return string(b)
		}
		return value
	}
	switch f.Kind {
	case domain.FieldNumber:
		return decodeNumber(value)
	case domain.FieldDate:
		return decodeTimestamp(value)
	case domain.FieldBoolean:
		return value
	case domain.FieldJSON, domain.FieldList:
		return decodeJSONText(value)
	default:
		if b, ok := value.([]byte); ok {
			return string(b)
		}
		return value
	}
}

// decodeNumber 处理大整数下调：落在安全整数范围内转 float64，
// 超出范围转字符串。
func decodeNumber(value any) any {
	switch n := value.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return decodeInt64(int64(n))
	case int32:
		return float64(n)
	case int64:
		return decodeInt64(n)
	case uint64:
		if n <= maxSafeInteger {
			return float64(n)
		}
		return strconv.FormatUint(n, 10)
	case *big.Int:
		if n.IsInt64() {
			if v, ok := decodeInt64(n.Int64()).(float64); ok {
				return v
			}
		}
		return n.String()
	case []byte:
		if f, err := strconv.ParseFloat(string(n), 64); err == nil {
			return f
		}
		return string(n)
	}
	return value
}

func decodeInt64(n int64) any {
	if n >= -maxSafeInteger && n <= maxSafeInteger {
		return float64(n)
	}
	return strconv.FormatInt(n, 10)
}

// decodeTimestamp 把时间列还原成 time.Time，包括 64 位微秒时间戳编码。
func decodeTimestamp(value any) any {
	switch t := value.(type) {
	case time.Time:
		return t.UTC()
	case int64:
		return time.UnixMicro(t).UTC()
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.UTC()
		}
		return t
	case []byte:
		return decodeTimestamp(string(t))
	}
	return value
}

// decodeJSONText 把序列化文本还原成原生对象，
// 解析失败的存量字符串原样返回而不是报错。
func decodeJSONText(value any) any {
	var text string
	switch v := value.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		// 已是原生形态
		return value
	}
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return text
	}
	return parsed
}
