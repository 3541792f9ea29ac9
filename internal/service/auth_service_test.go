package service

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemafx/schemafx/internal/store"
)

// newAuthTestDB 创建一个带完整系统表的临时数据库。
// modernc 的 ":memory:" 在连接池下每个连接各自为政，必须用文件库。
func newAuthTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "system.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.EnsureTables(db))
	return db
}

func TestUserLifecycle(t *testing.T) {
	db := newAuthTestDB(t)

	assert.Equal(t, 0, UserCount(db), "初始用户数应为 0")

	require.NoError(t, CreateAdmin(db, "admin@example.com", "s3cret"))
	assert.Equal(t, 1, UserCount(db))

	id, role, ok := CheckUser(db, "admin@example.com", "s3cret")
	require.True(t, ok, "正确密码应当通过校验")
	assert.Equal(t, "admin", role)
	assert.Greater(t, id, int64(0))

	_, _, ok = CheckUser(db, "admin@example.com", "wrong")
	assert.False(t, ok, "错误密码不应通过校验")

	_, _, ok = CheckUser(db, "nobody@example.com", "s3cret")
	assert.False(t, ok, "不存在的用户不应通过校验")

	email, role, ok := GetUserByID(db, id)
	require.True(t, ok)
	assert.Equal(t, "admin@example.com", email)
	assert.Equal(t, "admin", role)

	_, _, ok = GetUserByID(db, id+100)
	assert.False(t, ok)
}

func TestTokenRoundTrip(t *testing.T) {
	SetSigningKey("unit-test-signing-key")
	SetTokenTTL(time.Hour)

	token, err := GenToken(42, "user@example.com", "viewer")
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.ID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "viewer", claims.Role)
	assert.Equal(t, "SchemaFX", claims.Issuer)
}

func TestParseToken_Invalid(t *testing.T) {
	SetSigningKey("unit-test-signing-key")
	SetTokenTTL(time.Hour)

	token, err := GenToken(1, "a@b.c", "admin")
	require.NoError(t, err)

	// 篡改签名
	_, err = ParseToken(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// 换密钥后旧 Token 失效
	SetSigningKey("another-key")
	_, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_Expired(t *testing.T) {
	SetSigningKey("unit-test-signing-key")
	SetTokenTTL(-time.Minute)
	token, err := GenToken(7, "old@example.com", "viewer")
	require.NoError(t, err)
	SetTokenTTL(time.Hour)

	_, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticatorMiddleware(t *testing.T) {
	db := newAuthTestDB(t)
	require.NoError(t, CreateAdmin(db, "admin@example.com", "s3cret"))
	id, _, ok := CheckUser(db, "admin@example.com", "s3cret")
	require.True(t, ok)

	SetSigningKey("unit-test-signing-key")
	SetTokenTTL(time.Hour)

	var got *Claim
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClaimFrom(r)
		w.WriteHeader(http.StatusOK)
	})
	handler := NewAuthenticator(db).Middleware(next)

	t.Run("有效Token注入Claim", func(t *testing.T) {
		got = nil
		token, err := GenToken(id, "admin@example.com", "admin")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/schemas/demo", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.NotNil(t, got, "有效 Token 应注入 Claim")
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "admin", got.Role)
	})

	t.Run("匿名请求直接放行", func(t *testing.T) {
		got = nil
		req := httptest.NewRequest(http.MethodGet, "/api/v1/schemas/demo", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, got, "匿名请求不应携带 Claim")
	})

	t.Run("已删除用户的Token被拒绝", func(t *testing.T) {
		got = nil
		token, err := GenToken(id+999, "ghost@example.com", "admin")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/schemas/demo", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, "中间件只负责注入, 不负责拦截")
		assert.Nil(t, got)
	})
}
