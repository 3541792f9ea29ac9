// Package queryengine file: internal/queryengine/ingest.go
package queryengine

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
)

// materialize 把连接器的数据取成内存行。连接器既不提供批量数据也不提供流
// 时返回 nil，调用方按空结果处理。
func (e *Engine) materialize(ctx context.Context, table *domain.Table, conn port.Connector) ([]domain.Row, error) {
	if provider, ok := conn.(port.DataProvider); ok {
		def, err := provider.GetData(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("连接器 %q 获取数据源失败: %w", conn.ID(), err)
		}
		if def != nil {
			return e.rowsFromDefinition(ctx, def)
		}
	}
	if streamer, ok := conn.(port.DataStreamer); ok {
		stream, err := streamer.GetDataStream(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("连接器 %q 打开数据流失败: %w", conn.ID(), err)
		}
		return drainStream(ctx, stream)
	}
	slog.Debug("连接器未实现任何数据读取能力，按空结果处理",
		"connector", conn.ID(), "table", table.ID)
	return nil, nil
}

// rowsFromDefinition 对数据源描述做穷尽分派，未知类型是硬错误。
func (e *Engine) rowsFromDefinition(ctx context.Context, def *domain.DataSourceDefinition) ([]domain.Row, error) {
	switch def.Kind {
	case domain.SourceInline:
		return def.Rows, nil
	case domain.SourceFile:
		return e.rowsFromFiles(ctx, def.FilePaths)
	case domain.SourceURL:
		return e.rowsFromURL(ctx, def.URL)
	case domain.SourceStream:
		return drainStream(ctx, def.Stream)
	case domain.SourceConnection:
		return e.rowsFromConnection(ctx, def)
	default:
		return nil, fmt.Errorf("未知的数据源类型: %q", def.Kind)
	}
}

// rowsFromFiles 并发读取多个文件，结果按文件顺序合并。
func (e *Engine) rowsFromFiles(ctx context.Context, paths []string) ([]domain.Row, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	results := make([][]domain.Row, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, runtime.NumCPU())

	for i, path := range paths {
		idx, currentPath := i, path
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}
			f, err := os.Open(currentPath)
			if err != nil {
				return fmt.Errorf("打开数据文件 %q 失败: %w", currentPath, err)
			}
			defer f.Close()
			rows, err := decodeRowsFromReader(f)
			if err != nil {
				return fmt.Errorf("解析数据文件 %q 失败: %w", currentPath, err)
			}
			results[idx] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []domain.Row
	for _, part := range results {
		merged = append(merged, part...)
	}
	return merged, nil
}

// rowsFromURL 通过与协议匹配的下载器拉取远端数据。
func (e *Engine) rowsFromURL(ctx context.Context, rawURL string) ([]domain.Row, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("数据源 URL %q 非法: %w", rawURL, err)
	}
	for _, d := range e.downloaders {
		if !d.SupportsScheme(parsed.Scheme) {
			continue
		}
		body, err := d.Download(parsed)
		if err != nil {
			return nil, fmt.Errorf("下载 %q 失败: %w", rawURL, err)
		}
		defer body.Close()
		rows, err := decodeRowsFromReader(body)
		if err != nil {
			return nil, fmt.Errorf("解析 %q 返回的数据失败: %w", rawURL, err)
		}
		return rows, nil
	}
	return nil, fmt.Errorf("没有支持协议 %q 的下载器", parsed.Scheme)
}

// drainStream 把推送流读到关闭为止，上下文取消时放弃。
func drainStream(ctx context.Context, stream <-chan domain.Row) ([]domain.Row, error) {
	if stream == nil {
		return nil, nil
	}
	var rows []domain.Row
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case row, ok := <-stream:
			if !ok {
				return rows, nil
			}
			rows = append(rows, row)
		}
	}
}

// rowsFromConnection 对登记过的外部数据库执行下发的查询语句。
func (e *Engine) rowsFromConnection(ctx context.Context, def *domain.DataSourceDefinition) ([]domain.Row, error) {
	if e.connections == nil {
		return nil, errors.New("未配置连接解析器，无法使用 connection 数据源")
	}
	if def.Query == "" {
		return nil, errors.New("connection 数据源缺少查询语句")
	}
	conn, err := e.connections.GetConnection(ctx, def.ConnectionID)
	if err != nil {
		return nil, fmt.Errorf("解析连接 %q 失败: %w", def.ConnectionID, err)
	}

	db, err := sql.Open(conn.Driver, conn.DSN)
	if err != nil {
		return nil, fmt.Errorf("打开连接 %q (%s) 失败: %w", conn.ID, conn.Driver, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, def.Query, def.Args...)
	if err != nil {
		return nil, fmt.Errorf("在连接 %q 上执行查询失败: %w", conn.ID, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []domain.Row
	for rows.Next() {
		scanDest := make([]any, len(cols))
		scanDestPtrs := make([]any, len(cols))
		for i := range scanDest {
			scanDestPtrs[i] = &scanDest[i]
		}
		if err := rows.Scan(scanDestPtrs...); err != nil {
			return nil, fmt.Errorf("扫描连接 %q 的行数据失败: %w", conn.ID, err)
		}
		row := make(domain.Row, len(cols))
		for i, colName := range cols {
			if bytes, ok := scanDest[i].([]byte); ok {
				row[colName] = string(bytes)
			} else {
				row[colName] = scanDest[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// decodeRowsFromReader 识别 JSON 数组和 NDJSON 两种形态。
func decodeRowsFromReader(r io.Reader) ([]domain.Row, error) {
	br := bufio.NewReader(r)
	var first byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}
		if !unicode.IsSpace(rune(b)) {
			first = b
			if err := br.UnreadByte(); err != nil {
				return nil, err
			}
			break
		}
	}

	if first == '[' {
		var rows []domain.Row
		if err := json.NewDecoder(br).Decode(&rows); err != nil {
			return nil, fmt.Errorf("JSON 数组解析失败: %w", err)
		}
		return rows, nil
	}

	var rows []domain.Row
	dec := json.NewDecoder(br)
	for {
		var row domain.Row
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("NDJSON 解析失败: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// convertForColumn 把来源行里的值转换成与列类型匹配的插入参数。
// 转不过去的值按 NULL 落列，避免单个脏值毁掉整批摄取。
func convertForColumn(f *domain.Field, value any) any {
	if value == nil {
		return nil
	}
	if f.Encrypted {
		if s, ok := value.(string); ok {
			return s
		}
		return jsonText(value)
	}
	switch f.Kind {
	case domain.FieldNumber:
		if n, ok := toFloat(value); ok {
			return n
		}
		if s, ok := value.(string); ok {
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				return n
			}
		}
		return nil
	case domain.FieldBoolean:
		if b, ok := value.(bool); ok {
			return b
		}
		return nil
	case domain.FieldDate:
		if t, ok := toTime(value); ok {
			return t
		}
		return nil
	case domain.FieldJSON, domain.FieldList:
		// 字符串视为已经序列化好的存储形态，原样落列
		if s, ok := value.(string); ok {
			return s
		}
		return jsonText(value)
	default:
		switch v := value.(type) {
		case string:
			return v
		case []byte:
			return string(v)
		default:
			return fmt.Sprintf("%v", v)
		}
	}
}

func jsonText(value any) any {
	b, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return string(b)
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
