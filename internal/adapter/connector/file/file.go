// Package file 实现目录承载的文件连接器。
// 每张表对应根目录下的一个 JSON 数组或 NDJSON 文件, 以 File 数据源交给查询引擎。
// 行变更整体重写文件 (tmp+rename 原子替换), 外部改动经 fsnotify 防抖后
// 通知上层失效模式缓存。
package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
)

// debounceDuration 是文件事件的防抖窗口。
const debounceDuration = 2 * time.Second

// Connector 是文件连接器实例, 所有表文件都落在 root 之下。
type Connector struct {
	id   string
	name string
	root string

	// mu 串行化所有整文件重写, 避免并发变更互相覆盖
	mu sync.Mutex

	watcher       *fsnotify.Watcher
	onChange      func(path string)
	eventTimersMu sync.Mutex
	eventTimers   map[string]*time.Timer
}

var (
	_ port.Connector    = (*Connector)(nil)
	_ port.DataProvider = (*Connector)(nil)
	_ port.RowWriter    = (*Connector)(nil)
	_ port.RowUpdater   = (*Connector)(nil)
	_ port.RowDeleter   = (*Connector)(nil)
)

// New 创建文件连接器, 根目录不存在时自动创建。
func New(id, name, rootDir string) (*Connector, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("文件连接器需要一个根目录")
	}
	root := filepath.Clean(rootDir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("创建文件连接器根目录 '%s' 失败: %w", root, err)
	}
	if name == "" {
		name = "文件连接器"
	}
	return &Connector{
		id:          id,
		name:        name,
		root:        root,
		eventTimers: make(map[string]*time.Timer),
	}, nil
}

func (c *Connector) ID() string   { return c.id }
func (c *Connector) Name() string { return c.name }

// tablePath 把表映射到根目录下的文件路径, 并拦截越界路径。
// 表的 Path 缺省时退回 "<表ID>.json"。
func (c *Connector) tablePath(table *domain.Table) (string, error) {
	rel := table.Path
	if rel == "" {
		rel = table.ID + ".json"
	}
	ext := strings.ToLower(filepath.Ext(rel))
	if ext != ".json" && ext != ".ndjson" {
		rel += ".json"
	}
	full := filepath.Clean(filepath.Join(c.root, filepath.FromSlash(rel)))
	if relCheck, err := filepath.Rel(c.root, full); err != nil || strings.HasPrefix(relCheck, "..") {
		return "", fmt.Errorf("非法的表路径 (越出连接器根目录): %q", table.Path)
	}
	return full, nil
}

// ListTables 枚举指定子目录下的全部表文件。
func (c *Connector) ListTables(_ context.Context, path string) ([]port.TableDescriptor, error) {
	dir := filepath.Join(c.root, filepath.FromSlash(path))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取目录 '%s' 失败: %w", dir, err)
	}

	var descs []port.TableDescriptor
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".json" && ext != ".ndjson" {
			continue
		}
		rel := filepath.ToSlash(filepath.Join(path, e.Name()))
		descs = append(descs, port.TableDescriptor{
			Path: rel,
			Name: strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
		})
	}
	return descs, nil
}

// GetTable 文件连接器不提供结构发现, 恒定返回 (nil, nil)。
func (c *Connector) GetTable(_ context.Context, _ string) (*domain.Table, error) {
	return nil, nil
}

// GetCapabilities 全部过滤都交给查询引擎, 不支持流式读取。
func (c *Connector) GetCapabilities(_ context.Context, _ *domain.Table) (port.Capabilities, error) {
	return port.Capabilities{SupportsStreaming: false}, nil
}

// GetData 交出表文件的 File 数据源。文件尚未创建时交出空数据源, 表现为空表。
func (c *Connector) GetData(_ context.Context, table *domain.Table) (*domain.DataSourceDefinition, error) {
	path, err := c.tablePath(table)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &domain.DataSourceDefinition{Kind: domain.SourceFile}, nil
	}
	return &domain.DataSourceDefinition{Kind: domain.SourceFile, FilePaths: []string{path}}, nil
}

// AddRow 追加一行并整体重写表文件。
func (c *Connector) AddRow(ctx context.Context, table *domain.Table, row domain.Row) error {
	return c.rewrite(ctx, table, func(rows []domain.Row) []domain.Row {
		return append(rows, row)
	})
}

// UpdateRow 按 key 字段值定位并整行覆盖。
func (c *Connector) UpdateRow(ctx context.Context, table *domain.Table, key domain.Row, row domain.Row) error {
	if len(key) == 0 {
		return fmt.Errorf("更新行需要至少一个 key 字段值")
	}
	return c.rewrite(ctx, table, func(rows []domain.Row) []domain.Row {
		for i, r := range rows {
			if rowMatches(r, key) {
				rows[i] = row
			}
		}
		return rows
	})
}

// DeleteRow 按 key 字段值删除命中的行。
func (c *Connector) DeleteRow(ctx context.Context, table *domain.Table, key domain.Row) error {
	if len(key) == 0 {
		return fmt.Errorf("删除行需要至少一个 key 字段值")
	}
	return c.rewrite(ctx, table, func(rows []domain.Row) []domain.Row {
		kept := rows[:0]
		for _, r := range rows {
			if !rowMatches(r, key) {
				kept = append(kept, r)
			}
		}
		return kept
	})
}

// rewrite 读出表文件全部行, 应用变换, 再原子地写回。
func (c *Connector) rewrite(_ context.Context, table *domain.Table, transform func([]domain.Row) []domain.Row) error {
	path, err := c.tablePath(table)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := readRows(path)
	if err != nil {
		return err
	}
	return writeRows(path, transform(rows))
}

// readRows 读取 JSON 数组或 NDJSON 文件, 文件不存在视为空表。
func readRows(path string) ([]domain.Row, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取表文件 '%s' 失败: %w", path, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var rows []domain.Row
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("解析表文件 '%s' (JSON 数组) 失败: %w", path, err)
		}
		return rows, nil
	}

	var rows []domain.Row
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var row domain.Row
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			return nil, fmt.Errorf("解析表文件 '%s' 第 %d 行失败: %w", path, line, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("扫描表文件 '%s' 失败: %w", path, err)
	}
	return rows, nil
}

// writeRows 按文件扩展名保持原格式写回, 先写临时文件再重命名。
func writeRows(path string, rows []domain.Row) error {
	if rows == nil {
		rows = []domain.Row{}
	}

	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".ndjson") {
		var buf bytes.Buffer
		for _, row := range rows {
			line, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("序列化行失败: %w", err)
			}
			buf.Write(line)
			buf.WriteByte('\n')
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("序列化表数据失败: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建表文件目录失败: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("写入临时表文件 '%s' 失败: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("替换表文件 '%s' 失败: %w", path, err)
	}
	return nil
}

// rowMatches 判断行在全部 key 字段上与给定值一致, 数值统一折算成 float64 比较。
// memory 连接器里同名助手的一个本地副本。
func rowMatches(row domain.Row, key domain.Row) bool {
	for field, want := range key {
		got, ok := row[field]
		if !ok {
			return false
		}
		if gf, gok := toFloat(got); gok {
			wf, wok := toFloat(want)
			if !wok || gf != wf {
				return false
			}
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
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
