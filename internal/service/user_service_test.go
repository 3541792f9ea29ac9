package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemafx/schemafx/internal/core/domain"
)

func TestUserAdmin(t *testing.T) {
	db := newAuthTestDB(t)
	ctx := context.Background()

	adminID, err := CreateUser(ctx, db, "root@example.com", "pw-root", "admin")
	require.NoError(t, err)
	viewerID, err := CreateUser(ctx, db, "viewer@example.com", "pw-view", "viewer")
	require.NoError(t, err)

	_, err = CreateUser(ctx, db, "root@example.com", "again", "viewer")
	assert.Error(t, err, "重复邮箱应当被唯一索引拒绝")

	_, err = CreateUser(ctx, db, "x@example.com", "pw", "superuser")
	assert.ErrorContains(t, err, "未知的角色")

	users, err := ListUsers(ctx, db)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "root@example.com", users[0].Email)
	assert.Equal(t, "admin", users[0].Role)

	require.NoError(t, UpdateUserRole(ctx, db, viewerID, "admin"))
	_, role, ok := GetUserByID(db, viewerID)
	require.True(t, ok)
	assert.Equal(t, "admin", role)

	// 两个 admin 时可以删掉一个
	require.NoError(t, DeleteUser(ctx, db, viewerID))
	// 只剩最后一个 admin 时拒绝删除
	err = DeleteUser(ctx, db, adminID)
	assert.ErrorContains(t, err, "最后一个管理员")

	err = DeleteUser(ctx, db, adminID+500)
	assert.ErrorContains(t, err, "不存在")
}

func TestUserLimitSettings(t *testing.T) {
	db := newAuthTestDB(t)
	ctx := context.Background()

	id, err := CreateUser(ctx, db, "limited@example.com", "pw", "viewer")
	require.NoError(t, err)

	// 未设置时返回 nil, 调用方回退全局默认
	got, err := GetUserLimitSettings(ctx, db, id)
	require.NoError(t, err)
	assert.Nil(t, got)

	want := domain.UserLimitSetting{RateLimitPerSecond: 2.5, BurstSize: 8}
	require.NoError(t, UpdateUserLimitSettings(ctx, db, id, want))

	got, err = GetUserLimitSettings(ctx, db, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	// 不存在的用户
	got, err = GetUserLimitSettings(ctx, db, id+99)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = UpdateUserLimitSettings(ctx, db, id+99, want)
	assert.ErrorContains(t, err, "不存在")
}
