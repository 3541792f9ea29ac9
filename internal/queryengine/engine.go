// Package queryengine 把声明式查询翻译成内嵌分析引擎上的 SQL 并执行。
// file: internal/queryengine/engine.go
//
// 每次查询的流程固定：把连接器数据物化成行，灌进一张唯一命名的临时关系，
// 把过滤/排序/分页编译成一条参数化 SELECT，执行后按字段类型解码结果，
// 最后对加密字段做解密。临时关系在查询结束后无条件删除。
// 并发查询各自持有独立命名的关系，天然互不干扰。
package queryengine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
	"github.com/schemafx/schemafx/internal/downloader"
	"github.com/schemafx/schemafx/internal/fieldcrypt"
)

// insertBatchSize 控制单条 INSERT 的行数，平衡占位符数量和语句次数。
const insertBatchSize = 200

// Options 是引擎的构造参数。
type Options struct {
	// DSN 为空时使用内存库
	DSN string
	// Codec 为 nil 时按未启用加密处理
	Codec *fieldcrypt.Codec
	// Connections 解析 connection 数据源，可为 nil
	Connections port.ConnectionResolver
	// Downloaders 处理 url 数据源，按协议逐个匹配
	Downloaders []downloader.Downloader
}

// Engine 持有内嵌 DuckDB 实例，生命周期与服务一致。
type Engine struct {
	db          *sql.DB
	codec       *fieldcrypt.Codec
	connections port.ConnectionResolver
	downloaders []downloader.Downloader
}

var _ port.QueryEngine = (*Engine)(nil)

// New 打开内嵌 DuckDB 并完成连通性检查。
func New(opts Options) (*Engine, error) {
	dsn := opts.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: ping: %w", err)
	}
	codec := opts.Codec
	if codec == nil {
		codec = fieldcrypt.New("")
	}
	downloaders := opts.Downloaders
	if len(downloaders) == 0 {
		downloaders = downloader.Defaults()
	}
	return &Engine{
		db:          db,
		codec:       codec,
		connections: opts.Connections,
		downloaders: downloaders,
	}, nil
}

// Close 关闭内嵌引擎。
func (e *Engine) Close() error { return e.db.Close() }

// Query 执行一次声明式查询，spec 为 nil 时等价于无条件全量查询。
func (e *Engine) Query(ctx context.Context, table *domain.Table, conn port.Connector, spec *domain.QuerySpec) ([]domain.Row, error) {
	sourceRows, err := e.materialize(ctx, table, conn)
	if err != nil {
		return nil, err
	}
	if len(sourceRows) == 0 {
		return []domain.Row{}, nil
	}

	// 临时关系跟随会话，整个查询要固定在同一条连接上
	session, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("duckdb: 获取会话失败: %w", err)
	}
	defer session.Close()

	rel := "src_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	createSQL, err := buildCreateTableSQL(rel, table.Fields)
	if err != nil {
		return nil, err
	}
	if _, err := session.ExecContext(ctx, createSQL); err != nil {
		return nil, fmt.Errorf("duckdb: 创建临时关系失败: %w", err)
	}
	defer func() {
		dropCtx := context.WithoutCancel(ctx)
		if _, err := session.ExecContext(dropCtx, "DROP TABLE IF EXISTS "+quoteIdent(rel)); err != nil {
			slog.Warn("删除临时关系失败", "relation", rel, "error", err)
		}
	}()

	if err := e.insertRows(ctx, session, rel, table, sourceRows); err != nil {
		return nil, err
	}

	selectSQL, args, err := buildSelectSQL(rel, table, spec)
	if err != nil {
		return nil, err
	}
	rows, err := session.QueryContext(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("duckdb: query: %w", err)
	}
	defer rows.Close()

	decoded, err := decodeResult(rows, table)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Row, 0, len(decoded))
	for _, row := range decoded {
		plain, err := e.codec.Decode(row, table)
		if err != nil {
			return nil, err
		}
		out = append(out, plain)
	}
	return out, nil
}

func (e *Engine) insertRows(ctx context.Context, session *sql.Conn, rel string, table *domain.Table, rows []domain.Row) error {
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		batch := rows[start:end]

		insertSQL, err := buildInsertSQL(rel, table.Fields, len(batch))
		if err != nil {
			return err
		}
		args := make([]any, 0, len(batch)*len(table.Fields))
		for _, row := range batch {
			for i := range table.Fields {
				f := &table.Fields[i]
				value, present := row[f.ID]
				if !present {
					args = append(args, nil)
					continue
				}
				args = append(args, convertForColumn(f, value))
			}
		}
		if _, err := session.ExecContext(ctx, insertSQL, args...); err != nil {
			return fmt.Errorf("duckdb: 摄取批次失败: %w", err)
		}
	}
	return nil
}
