package schema_config

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
)

// memStore 是测试用的内存模式存储, 记录读写次数以便断言缓存行为。
type memStore struct {
	mu      sync.Mutex
	schemas map[string]*domain.Schema
	gets    int
}

func newMemStore() *memStore {
	return &memStore{schemas: make(map[string]*domain.Schema)}
}

func (m *memStore) GetSchema(_ context.Context, appID string) (*domain.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	return m.schemas[appID], nil
}

func (m *memStore) SaveSchema(_ context.Context, schema *domain.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[schema.ID] = schema
	return nil
}

func (m *memStore) DeleteSchema(_ context.Context, appID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schemas, appID)
	return nil
}

func (m *memStore) getCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

var _ port.SchemaStore = (*memStore)(nil)

func demoSchema() *domain.Schema {
	return &domain.Schema{
		ID:   "crm",
		Name: "客户管理",
		Tables: []domain.Table{
			{
				ID: "contacts", Name: "联系人", ConnectorID: "memory",
				Fields: []domain.Field{
					{ID: "id", Name: "编号", Kind: domain.FieldNumber, Key: true},
					{ID: "name", Name: "姓名", Kind: domain.FieldText, Required: true},
				},
			},
		},
		Views: []domain.View{
			{ID: "v-all", Name: "全部", TableID: "contacts", Kind: "table", IsDefault: true},
		},
	}
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	svc, err := NewService(store, 16, time.Minute)
	require.NoError(t, err)
	return svc, store
}

func TestGetSchema_CachesReads(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSchema(ctx, demoSchema()))

	first, err := svc.GetSchema(ctx, "crm")
	require.NoError(t, err)
	assert.Equal(t, "客户管理", first.Name)

	_, err = svc.GetSchema(ctx, "crm")
	require.NoError(t, err)
	assert.Equal(t, 1, store.getCount(), "第二次读取应命中缓存")
}

func TestGetSchema_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetSchema(context.Background(), "ghost")
	assert.ErrorIs(t, err, port.ErrSchemaNotFound)
}

func TestMutateSchema_PutSchema(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	schema := demoSchema()
	schema.ID = "随便写的" // 路径上的 appID 优先
	got, err := svc.MutateSchema(ctx, "crm", port.SchemaMutation{Kind: port.MutationPutSchema, Schema: schema})
	require.NoError(t, err)
	assert.Equal(t, "crm", got.ID)
	assert.NotNil(t, store.schemas["crm"])

	// 表 ID 重复的模式应被结构校验拒绝
	bad := demoSchema()
	bad.Tables = append(bad.Tables, bad.Tables[0])
	_, err = svc.MutateSchema(ctx, "crm", port.SchemaMutation{Kind: port.MutationPutSchema, Schema: bad})
	assert.ErrorContains(t, err, "模式校验失败")
}

func TestMutateSchema_DeleteSchema(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSchema(ctx, demoSchema()))

	got, err := svc.MutateSchema(ctx, "crm", port.SchemaMutation{Kind: port.MutationDeleteSchema})
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = svc.GetSchema(ctx, "crm")
	assert.ErrorIs(t, err, port.ErrSchemaNotFound)
}

func TestMutateSchema_PutTable(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSchema(ctx, demoSchema()))

	// 新表追加在末尾
	orders := &domain.Table{
		ID: "orders", Name: "订单", ConnectorID: "memory",
		Fields: []domain.Field{{ID: "sn", Name: "单号", Kind: domain.FieldText, Key: true}},
	}
	got, err := svc.MutateSchema(ctx, "crm", port.SchemaMutation{Kind: port.MutationPutTable, Table: orders})
	require.NoError(t, err)
	require.Len(t, got.Tables, 2)
	assert.Equal(t, "orders", got.Tables[1].ID)

	// 既有表原位替换
	renamed := *orders
	renamed.Name = "订单v2"
	got, err = svc.MutateSchema(ctx, "crm", port.SchemaMutation{Kind: port.MutationPutTable, Table: &renamed})
	require.NoError(t, err)
	require.Len(t, got.Tables, 2)
	assert.Equal(t, "订单v2", got.Tables[1].Name)
}

func TestMutateSchema_DeleteTableCascadesViews(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSchema(ctx, demoSchema()))

	got, err := svc.MutateSchema(ctx, "crm", port.SchemaMutation{Kind: port.MutationDeleteTable, TableID: "contacts"})
	require.NoError(t, err)
	assert.Empty(t, got.Tables)
	assert.Empty(t, got.Views, "绑定在被删表上的视图应一并删除")

	_, err = svc.MutateSchema(ctx, "crm", port.SchemaMutation{Kind: port.MutationDeleteTable, TableID: "ghost"})
	assert.ErrorIs(t, err, port.ErrTableNotFound)
}

func TestMutateSchema_PutView(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSchema(ctx, demoSchema()))

	// 引用不存在的表被拒绝
	_, err := svc.MutateSchema(ctx, "crm", port.SchemaMutation{
		Kind: port.MutationPutView,
		View: &domain.View{ID: "v-bad", Name: "坏视图", TableID: "ghost", Kind: "card"},
	})
	assert.ErrorIs(t, err, port.ErrTableNotFound)

	// 新默认视图会接管同表旧默认视图的标记
	got, err := svc.MutateSchema(ctx, "crm", port.SchemaMutation{
		Kind: port.MutationPutView,
		View: &domain.View{ID: "v-cards", Name: "卡片", TableID: "contacts", Kind: "card", IsDefault: true},
	})
	require.NoError(t, err)
	require.Len(t, got.Views, 2)
	for _, v := range got.Views {
		switch v.ID {
		case "v-all":
			assert.False(t, v.IsDefault, "旧默认视图应被取消默认标记")
		case "v-cards":
			assert.True(t, v.IsDefault)
		}
	}
}

func TestMutateSchema_DeleteViewIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSchema(ctx, demoSchema()))

	got, err := svc.MutateSchema(ctx, "crm", port.SchemaMutation{Kind: port.MutationDeleteView, ViewID: "v-all"})
	require.NoError(t, err)
	assert.Empty(t, got.Views)

	// 再删一次不报错
	got, err = svc.MutateSchema(ctx, "crm", port.SchemaMutation{Kind: port.MutationDeleteView, ViewID: "v-all"})
	require.NoError(t, err)
	assert.Empty(t, got.Views)
}

func TestValidator_CacheAndInvalidation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSchema(ctx, demoSchema()))

	v1, err := svc.Validator(ctx, "crm", "contacts")
	require.NoError(t, err)
	v2, err := svc.Validator(ctx, "crm", "contacts")
	require.NoError(t, err)
	assert.Same(t, v1, v2, "第二次获取应命中校验器缓存")

	// 按旧字段, name 是合法字段
	_, err = v1.Validate(domain.Row{"id": float64(1), "name": "张三"})
	require.NoError(t, err)

	// 改掉表字段后校验器必须重建
	changed := &domain.Table{
		ID: "contacts", Name: "联系人", ConnectorID: "memory",
		Fields: []domain.Field{
			{ID: "id", Name: "编号", Kind: domain.FieldNumber, Key: true},
			{ID: "email", Name: "邮箱", Kind: domain.FieldEmail},
		},
	}
	_, err = svc.MutateSchema(ctx, "crm", port.SchemaMutation{Kind: port.MutationPutTable, Table: changed})
	require.NoError(t, err)

	v3, err := svc.Validator(ctx, "crm", "contacts")
	require.NoError(t, err)
	assert.NotSame(t, v1, v3, "表变更后应重新编译校验器")

	_, err = v3.Validate(domain.Row{"id": float64(1), "name": "张三"})
	assert.Error(t, err, "旧字段在新校验器下应被拒绝")

	_, err = svc.Validator(ctx, "crm", "ghost")
	assert.ErrorIs(t, err, port.ErrTableNotFound)
}

func TestMutateSchema_UnknownKind(t *testing.T) {
	svc, store := newTestService(t)
	require.NoError(t, store.SaveSchema(context.Background(), demoSchema()))
	_, err := svc.MutateSchema(context.Background(), "crm", port.SchemaMutation{Kind: "explode"})
	assert.ErrorContains(t, err, "未知的模式编辑类型")
}
