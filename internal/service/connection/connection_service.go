// Package connection 维护外部数据库连接的登记表。
// 查询引擎通过 port.ConnectionResolver 按 ID 解析连接，读路径走短 TTL 缓存。
package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
)

// Registry 实现 port.ConnectionResolver，并提供管理端的增删改查。
type Registry struct {
	db    *sql.DB
	cache *gocache.Cache
}

var _ port.ConnectionResolver = (*Registry)(nil)

// NewRegistry 创建连接登记服务。ttl 控制按 ID 解析的缓存存活时间。
func NewRegistry(db *sql.DB, ttl time.Duration) (*Registry, error) {
	if db == nil {
		return nil, errors.New("连接登记服务需要一个有效的数据库连接")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Registry{
		db:    db,
		cache: gocache.New(ttl, 2*ttl),
	}, nil
}

// GetConnection 按 ID 解析连接，未登记时返回 port.ErrConnectionNotFound。
func (r *Registry) GetConnection(ctx context.Context, id string) (*domain.Connection, error) {
	if cached, found := r.cache.Get(id); found {
		if conn, ok := cached.(*domain.Connection); ok {
			return conn, nil
		}
	}

	conn := &domain.Connection{}
	var createdAt string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, driver, dsn, created_at FROM connection WHERE id = ?", id).
		Scan(&conn.ID, &conn.Name, &conn.Driver, &conn.DSN, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询连接记录失败: %w", err)
	}
	if ts, perr := time.Parse(time.RFC3339, createdAt); perr == nil {
		conn.CreatedAt = ts
	}

	r.cache.Set(id, conn, gocache.DefaultExpiration)
	return conn, nil
}

// List 返回全部已登记的连接，按名称排序。列表不走缓存。
func (r *Registry) List(ctx context.Context) ([]domain.Connection, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, driver, dsn, created_at FROM connection ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("查询连接列表失败: %w", err)
	}
	defer rows.Close()

	conns := make([]domain.Connection, 0)
	for rows.Next() {
		var c domain.Connection
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Driver, &c.DSN, &createdAt); err != nil {
			return nil, fmt.Errorf("扫描连接记录失败: %w", err)
		}
		if ts, perr := time.Parse(time.RFC3339, createdAt); perr == nil {
			c.CreatedAt = ts
		}
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代连接记录时出错: %w", err)
	}
	return conns, nil
}

// Register 登记一条新连接并返回其 ID。ID 为空时自动生成。
func (r *Registry) Register(ctx context.Context, conn domain.Connection) (string, error) {
	if conn.Name == "" || conn.Driver == "" || conn.DSN == "" {
		return "", errors.New("连接的名称、驱动和 DSN 不能为空")
	}
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO connection (id, name, driver, dsn, created_at) VALUES (?, ?, ?, ?, ?)",
		conn.ID, conn.Name, conn.Driver, conn.DSN, conn.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("登记连接失败: %w", err)
	}
	return conn.ID, nil
}

// Update 更新连接信息并使缓存失效。
func (r *Registry) Update(ctx context.Context, conn domain.Connection) error {
	if conn.ID == "" {
		return errors.New("更新连接必须提供 ID")
	}
	result, err := r.db.ExecContext(ctx,
		"UPDATE connection SET name = ?, driver = ?, dsn = ? WHERE id = ?",
		conn.Name, conn.Driver, conn.DSN, conn.ID)
	if err != nil {
		return fmt.Errorf("更新连接失败: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return port.ErrConnectionNotFound
	}
	r.cache.Delete(conn.ID)
	return nil
}

// Remove 删除连接并使缓存失效。
func (r *Registry) Remove(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM connection WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("删除连接失败: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return port.ErrConnectionNotFound
	}
	r.cache.Delete(id)
	return nil
}
