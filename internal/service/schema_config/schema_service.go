// Package schema_config 负责应用模式的读写、编辑操作的落地, 以及两块衍生缓存:
// 按应用缓存的模式文档和按 (应用, 表) 缓存的已编译校验器。
// 任何模式写操作都会同时清掉这两块缓存中属于该应用的条目。
package schema_config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
	"github.com/schemafx/schemafx/internal/validate"
)

// Service 是模式配置服务。
type Service struct {
	store          port.SchemaStore
	cache          *lru.LRU[string, *domain.Schema]
	validatorCache *lru.LRU[string, *validate.Validator]
}

// NewService 创建模式配置服务实例。
func NewService(store port.SchemaStore, maxCacheEntries int, defaultCacheTTL time.Duration) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("模式配置服务初始化失败: store 实例不能为 nil")
	}
	if maxCacheEntries <= 0 {
		maxCacheEntries = 1000
	}
	if defaultCacheTTL <= 0 {
		defaultCacheTTL = 5 * time.Minute
	}

	return &Service{
		store:          store,
		cache:          lru.NewLRU[string, *domain.Schema](maxCacheEntries, nil, defaultCacheTTL),
		validatorCache: lru.NewLRU[string, *validate.Validator](maxCacheEntries, nil, defaultCacheTTL),
	}, nil
}

// GetSchema 从缓存或存储中获取指定应用的模式。
// 应用不存在时返回 port.ErrSchemaNotFound。
func (s *Service) GetSchema(ctx context.Context, appID string) (*domain.Schema, error) {
	if appID == "" {
		return nil, fmt.Errorf("应用 ID (appID) 不能为空")
	}

	if schema, found := s.cache.Get(appID); found {
		return schema, nil
	}

	schema, err := s.store.GetSchema(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("加载应用 %q 的模式失败: %w", appID, err)
	}
	if schema == nil {
		return nil, fmt.Errorf("应用 %q: %w", appID, port.ErrSchemaNotFound)
	}

	s.cache.Add(appID, schema)
	return schema, nil
}

// Validator 返回指定表的已编译校验器，按 (应用, 表) 缓存。
func (s *Service) Validator(ctx context.Context, appID, tableID string) (*validate.Validator, error) {
	key := appID + ":" + tableID
	if v, found := s.validatorCache.Get(key); found {
		return v, nil
	}

	schema, err := s.GetSchema(ctx, appID)
	if err != nil {
		return nil, err
	}
	table := schema.TableByID(tableID)
	if table == nil {
		return nil, fmt.Errorf("应用 %q 中的表 %q: %w", appID, tableID, port.ErrTableNotFound)
	}

	v := validate.Compile(table.Fields)
	s.validatorCache.Add(key, v)
	return v, nil
}

// MutateSchema 应用一次模式编辑并返回编辑后的模式。
// 删除整个模式时返回 (nil, nil)。所有分支都会在落库成功后失效缓存。
func (s *Service) MutateSchema(ctx context.Context, appID string, edit port.SchemaMutation) (*domain.Schema, error) {
	if appID == "" {
		return nil, fmt.Errorf("应用 ID (appID) 不能为空")
	}

	switch edit.Kind {
	case port.MutationPutSchema:
		return s.putSchema(ctx, appID, edit.Schema)
	case port.MutationDeleteSchema:
		return nil, s.deleteSchema(ctx, appID)
	case port.MutationPutTable:
		return s.putTable(ctx, appID, edit.Table)
	case port.MutationDeleteTable:
		return s.deleteTable(ctx, appID, edit.TableID)
	case port.MutationPutView:
		return s.putView(ctx, appID, edit.View)
	case port.MutationDeleteView:
		return s.deleteView(ctx, appID, edit.ViewID)
	default:
		return nil, fmt.Errorf("未知的模式编辑类型: %q", edit.Kind)
	}
}

// InvalidateApp 清除应用的模式缓存和全部校验器缓存条目。
// 写路径之外, 文件连接器的热加载回调也会走到这里。
func (s *Service) InvalidateApp(appID string) {
	s.cache.Remove(appID)
	prefix := appID + ":"
	for _, key := range s.validatorCache.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.validatorCache.Remove(key)
		}
	}
}

// InvalidateAll 清除所有缓存。
func (s *Service) InvalidateAll() {
	s.cache.Purge()
	s.validatorCache.Purge()
}

func (s *Service) putSchema(ctx context.Context, appID string, schema *domain.Schema) (*domain.Schema, error) {
	if schema == nil {
		return nil, errors.New("putSchema 编辑缺少 schema 载荷")
	}
	// 路径里的 appID 优先于载荷
	schema.ID = appID
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("模式校验失败: %w", err)
	}
	if err := s.store.SaveSchema(ctx, schema); err != nil {
		return nil, fmt.Errorf("保存应用 %q 的模式失败: %w", appID, err)
	}
	s.InvalidateApp(appID)
	return schema, nil
}

func (s *Service) deleteSchema(ctx context.Context, appID string) error {
	if _, err := s.GetSchema(ctx, appID); err != nil {
		return err
	}
	if err := s.store.DeleteSchema(ctx, appID); err != nil {
		return fmt.Errorf("删除应用 %q 的模式失败: %w", appID, err)
	}
	s.InvalidateApp(appID)
	return nil
}

func (s *Service) putTable(ctx context.Context, appID string, table *domain.Table) (*domain.Schema, error) {
	if table == nil || table.ID == "" {
		return nil, errors.New("putTable 编辑缺少 table 载荷")
	}
	schema, err := s.GetSchema(ctx, appID)
	if err != nil {
		return nil, err
	}

	updated := cloneSchema(schema)
	replaced := false
	for i := range updated.Tables {
		if updated.Tables[i].ID == table.ID {
			updated.Tables[i] = *table
			replaced = true
			break
		}
	}
	if !replaced {
		updated.Tables = append(updated.Tables, *table)
	}
	return s.persist(ctx, appID, updated)
}

func (s *Service) deleteTable(ctx context.Context, appID, tableID string) (*domain.Schema, error) {
	schema, err := s.GetSchema(ctx, appID)
	if err != nil {
		return nil, err
	}
	if schema.TableByID(tableID) == nil {
		return nil, fmt.Errorf("应用 %q 中的表 %q: %w", appID, tableID, port.ErrTableNotFound)
	}

	updated := cloneSchema(schema)
	tables := updated.Tables[:0]
	for _, t := range updated.Tables {
		if t.ID != tableID {
			tables = append(tables, t)
		}
	}
	updated.Tables = tables

	// 绑定在被删表上的视图一并删除, 保住视图必须指向存在表的不变量
	views := updated.Views[:0]
	for _, v := range updated.Views {
		if v.TableID != tableID {
			views = append(views, v)
		}
	}
	updated.Views = views

	return s.persist(ctx, appID, updated)
}

func (s *Service) putView(ctx context.Context, appID string, view *domain.View) (*domain.Schema, error) {
	if view == nil || view.ID == "" {
		return nil, errors.New("putView 编辑缺少 view 载荷")
	}
	schema, err := s.GetSchema(ctx, appID)
	if err != nil {
		return nil, err
	}
	if schema.TableByID(view.TableID) == nil {
		return nil, fmt.Errorf("视图 %q 引用的表 %q: %w", view.ID, view.TableID, port.ErrTableNotFound)
	}

	updated := cloneSchema(schema)
	if view.IsDefault {
		// 每张表至多一个默认视图
		for i := range updated.Views {
			if updated.Views[i].TableID == view.TableID {
				updated.Views[i].IsDefault = false
			}
		}
	}
	replaced := false
	for i := range updated.Views {
		if updated.Views[i].ID == view.ID {
			updated.Views[i] = *view
			replaced = true
			break
		}
	}
	if !replaced {
		updated.Views = append(updated.Views, *view)
	}
	return s.persist(ctx, appID, updated)
}

func (s *Service) deleteView(ctx context.Context, appID, viewID string) (*domain.Schema, error) {
	schema, err := s.GetSchema(ctx, appID)
	if err != nil {
		return nil, err
	}

	// 视图删除是幂等的: 目标不存在时原样返回
	updated := cloneSchema(schema)
	views := updated.Views[:0]
	for _, v := range updated.Views {
		if v.ID != viewID {
			views = append(views, v)
		}
	}
	updated.Views = views
	return s.persist(ctx, appID, updated)
}

// persist 校验整份模式、落库并失效缓存。
func (s *Service) persist(ctx context.Context, appID string, schema *domain.Schema) (*domain.Schema, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("模式校验失败: %w", err)
	}
	if err := s.store.SaveSchema(ctx, schema); err != nil {
		return nil, fmt.Errorf("保存应用 %q 的模式失败: %w", appID, err)
	}
	s.InvalidateApp(appID)
	return schema, nil
}

// cloneSchema 做一层浅拷贝加切片复制, 避免编辑分支改到缓存里的共享对象。
func cloneSchema(in *domain.Schema) *domain.Schema {
	out := *in
	out.Tables = append([]domain.Table(nil), in.Tables...)
	out.Views = append([]domain.View(nil), in.Views...)
	return &out
}
