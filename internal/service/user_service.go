// 用户管理：账户的增删改查与个性化速率限制。
// 所有函数直接操作系统库的 _user 表，密码一律以 bcrypt 散列落库。
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/schemafx/schemafx/internal/core/domain"
)

// ListUsers 返回全部账户，按 id 升序。
func ListUsers(ctx context.Context, db *sql.DB) ([]domain.User, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, email, role FROM _user ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("数据库查询失败: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Role); err != nil {
			return nil, fmt.Errorf("数据库扫描失败: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代数据库结果时出错: %w", err)
	}
	return users, nil
}

// CreateUser 创建一个新账户并返回其 id。邮箱重复时返回错误。
func CreateUser(ctx context.Context, db *sql.DB, email, pass, role string) (int64, error) {
	if email == "" || pass == "" {
		return 0, errors.New("邮箱和密码不能为空")
	}
	if role != "admin" && role != "viewer" {
		return 0, fmt.Errorf("未知的角色: %s", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("密码散列失败: %w", err)
	}
	res, err := db.ExecContext(ctx,
		"INSERT INTO _user(email, password_hash, role) VALUES(?, ?, ?)", email, string(hash), role)
	if err != nil {
		return 0, fmt.Errorf("创建用户失败: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("读取新用户 id 失败: %w", err)
	}
	return id, nil
}

// UpdateUserRole 修改账户角色。
func UpdateUserRole(ctx context.Context, db *sql.DB, userID int64, role string) error {
	if role != "admin" && role != "viewer" {
		return fmt.Errorf("未知的角色: %s", role)
	}
	res, err := db.ExecContext(ctx, "UPDATE _user SET role = ? WHERE id = ?", role, userID)
	if err != nil {
		return fmt.Errorf("数据库更新失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("用户ID %d 不存在", userID)
	}
	return nil
}

// DeleteUser 删除账户。最后一个 admin 不允许删除，避免把自己锁在门外。
func DeleteUser(ctx context.Context, db *sql.DB, userID int64) error {
	var role string
	err := db.QueryRowContext(ctx, "SELECT role FROM _user WHERE id = ?", userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("用户ID %d 不存在", userID)
	}
	if err != nil {
		return fmt.Errorf("数据库查询失败: %w", err)
	}
	if role == "admin" {
		var admins int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM _user WHERE role = 'admin'").Scan(&admins); err != nil {
			return fmt.Errorf("数据库查询失败: %w", err)
		}
		if admins <= 1 {
			return errors.New("不能删除最后一个管理员账户")
		}
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM _user WHERE id = ?", userID); err != nil {
		return fmt.Errorf("删除用户失败: %w", err)
	}
	return nil
}

// GetUserLimitSettings 获取特定用户的速率限制配置。
// 用户不存在或未设置个性化限速时返回 (nil, nil)，由调用方回退到全局默认值。
func GetUserLimitSettings(ctx context.Context, db *sql.DB, userID int64) (*domain.UserLimitSetting, error) {
	var rateLimit sql.NullFloat64
	var burstSize sql.NullInt64
	query := "SELECT rate_limit_per_second, burst_size FROM _user WHERE id = ?"
	err := db.QueryRowContext(ctx, query, userID).Scan(&rateLimit, &burstSize)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("数据库查询失败: %w", err)
	}
	if !rateLimit.Valid || !burstSize.Valid {
		return nil, nil
	}
	return &domain.UserLimitSetting{
		RateLimitPerSecond: rateLimit.Float64,
		BurstSize:          int(burstSize.Int64),
	}, nil
}

// UpdateUserLimitSettings 更新特定用户的速率限制配置。
func UpdateUserLimitSettings(ctx context.Context, db *sql.DB, userID int64, settings domain.UserLimitSetting) error {
	query := "UPDATE _user SET rate_limit_per_second = ?, burst_size = ? WHERE id = ?"
	result, err := db.ExecContext(ctx, query, settings.RateLimitPerSecond, settings.BurstSize, userID)
	if err != nil {
		return fmt.Errorf("数据库更新失败: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("用户ID %d 不存在", userID)
	}
	return nil
}
