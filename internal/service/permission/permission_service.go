// Package permission 维护授权记录的读写和按目标聚合的权限缓存。
//
// 授权以 (目标类型, 目标ID, 邮箱) 为粒度存储，读路径全部走缓存：
// 同一目标的所有授权在一次查询后整体进缓存，写操作按目标键精确失效。
// Move 跨越两个目标，必须同时失效旧目标和新目标的缓存。
package permission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
)

// Service 实现 port.PermissionService。
type Service struct {
	db    *sql.DB
	cache *gocache.Cache
}

// 编译期检查
var _ port.PermissionService = (*Service)(nil)

// NewService 创建权限服务。ttl 控制按目标聚合的缓存存活时间。
func NewService(db *sql.DB, ttl time.Duration) (*Service, error) {
	if db == nil {
		return nil, errors.New("权限服务需要一个有效的数据库连接")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		db:    db,
		cache: gocache.New(ttl, 2*ttl),
	}, nil
}

// cacheKey 把权限目标折叠成缓存键。
func cacheKey(target domain.Target) string {
	return string(target.Type) + ":" + target.ID
}

// ListByTarget 返回目标上的全部授权记录，结果整体缓存。
func (s *Service) ListByTarget(ctx context.Context, target domain.Target) ([]domain.Permission, error) {
	key := cacheKey(target)
	if cached, found := s.cache.Get(key); found {
		if perms, ok := cached.([]domain.Permission); ok {
			return perms, nil
		}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, target_type, target_id, email, level FROM permission WHERE target_type = ? AND target_id = ?",
		string(target.Type), target.ID)
	if err != nil {
		return nil, fmt.Errorf("查询授权记录失败: %w", err)
	}
	defer rows.Close()

	perms := make([]domain.Permission, 0)
	for rows.Next() {
		var p domain.Permission
		var targetType, level string
		if err := rows.Scan(&p.ID, &targetType, &p.TargetID, &p.Email, &level); err != nil {
			return nil, fmt.Errorf("扫描授权记录失败: %w", err)
		}
		p.TargetType = domain.TargetType(targetType)
		p.Level = domain.PermissionLevel(level)
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代授权记录时出错: %w", err)
	}

	s.cache.Set(key, perms, gocache.DefaultExpiration)
	return perms, nil
}

// HasPermission 判断邮箱在目标上是否具备所需级别。
// 级别是覆盖式的：admin 覆盖 write，write 覆盖 read。
func (s *Service) HasPermission(ctx context.Context, target domain.Target, email string, level domain.PermissionLevel) (bool, error) {
	if email == "" {
		return false, nil
	}
	perms, err := s.ListByTarget(ctx, target)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p.Email == email && p.Level.Covers(level) {
			return true, nil
		}
	}
	return false, nil
}

// Grant 授予或更新一条授权并返回其 id。
// 同一 (目标, 邮箱) 已有授权时按 UPSERT 语义覆盖级别。
func (s *Service) Grant(ctx context.Context, perm domain.Permission) (int64, error) {
	if perm.TargetType != domain.TargetApp && perm.TargetType != domain.TargetConnection {
		return 0, fmt.Errorf("未知的权限目标类型: %s", perm.TargetType)
	}
	if !perm.Level.Covers(domain.LevelRead) {
		return 0, fmt.Errorf("未知的权限级别: %s", perm.Level)
	}
	if perm.Email == "" || perm.TargetID == "" {
		return 0, errors.New("授权的目标和邮箱不能为空")
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO permission (target_type, target_id, email, level)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(target_type, target_id, email) DO UPDATE SET level = excluded.level`,
		string(perm.TargetType), perm.TargetID, perm.Email, string(perm.Level))
	if err != nil {
		return 0, fmt.Errorf("写入授权记录失败: %w", err)
	}

	// UPSERT 的更新分支不会刷新 last_insert_rowid, 统一回查拿 id。
	var id int64
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM permission WHERE target_type = ? AND target_id = ? AND email = ?",
		string(perm.TargetType), perm.TargetID, perm.Email).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("回查授权记录失败: %w", err)
	}

	s.cache.Delete(cacheKey(domain.Target{Type: perm.TargetType, ID: perm.TargetID}))
	return id, nil
}

// Move 把一条授权迁移到新目标，旧目标和新目标的缓存都会失效。
func (s *Service) Move(ctx context.Context, id int64, newTarget domain.Target) error {
	if newTarget.Type != domain.TargetApp && newTarget.Type != domain.TargetConnection {
		return fmt.Errorf("未知的权限目标类型: %s", newTarget.Type)
	}

	old, err := s.lookupTarget(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE permission SET target_type = ?, target_id = ? WHERE id = ?",
		string(newTarget.Type), newTarget.ID, id)
	if err != nil {
		return fmt.Errorf("迁移授权记录失败: %w", err)
	}

	s.cache.Delete(cacheKey(old))
	s.cache.Delete(cacheKey(newTarget))
	return nil
}

// Revoke 撤销一条授权。
func (s *Service) Revoke(ctx context.Context, id int64) error {
	old, err := s.lookupTarget(ctx, id)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM permission WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("删除授权记录失败: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return port.ErrPermissionNotFound
	}

	s.cache.Delete(cacheKey(old))
	return nil
}

// InvalidateAll 清空权限缓存，管理端批量修改后使用。
func (s *Service) InvalidateAll() {
	s.cache.Flush()
}

// lookupTarget 按 id 定位授权记录当前所属的目标。
func (s *Service) lookupTarget(ctx context.Context, id int64) (domain.Target, error) {
	var targetType, targetID string
	err := s.db.QueryRowContext(ctx,
		"SELECT target_type, target_id FROM permission WHERE id = ?", id).Scan(&targetType, &targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Target{}, port.ErrPermissionNotFound
	}
	if err != nil {
		return domain.Target{}, fmt.Errorf("查询授权记录失败: %w", err)
	}
	return domain.Target{Type: domain.TargetType(targetType), ID: targetID}, nil
}
