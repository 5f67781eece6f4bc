package registry

import (
	"context"
	"reflect"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lk2023060901/objgraph-go/pkg/log"
	"github.com/lk2023060901/objgraph-go/pkg/schema"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

// ModuleLoader 按需加载一个模块导出的全部 schema，键为导出名。
type ModuleLoader func(ctx context.Context, module string) (map[string]*schema.ObjectSchema, error)

type entry struct {
	schema *schema.ObjectSchema
	id     schema.ID
}

// Registry 是按名称或模块导出组织 schema 的注册表，实现 schema.Finder。
//
// 标识有两种形式：
//   - 字符串：通过 Register 注册的命名 schema；
//   - ModuleExportID：通过 RegisterAsModuleExport 注册的导出，或由模块加载器按需提供。
//
// 查找顺序为：自身、各个 fallback。注册与查找均可并发调用。
type Registry struct {
	mu        sync.RWMutex
	fallbacks []*Registry
	named     map[string]*schema.ObjectSchema
	exports   map[ModuleExportID]*schema.ObjectSchema
	byType    map[reflect.Type]entry
	loaders   map[string]ModuleLoader
	loaded    map[string]bool

	loadGroup singleflight.Group
}

var _ schema.Finder = (*Registry)(nil)

// New 创建注册表，fallbacks 在自身未命中时依次查找。
func New(fallbacks ...*Registry) *Registry {
	return &Registry{
		fallbacks: fallbacks,
		named:     map[string]*schema.ObjectSchema{},
		exports:   map[ModuleExportID]*schema.ObjectSchema{},
		byType:    map[reflect.Type]entry{},
		loaders:   map[string]ModuleLoader{},
		loaded:    map[string]bool{},
	}
}

// AddFallbacks 追加 fallback 注册表。
func (r *Registry) AddFallbacks(fallbacks ...*Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, fallbacks...)
}

// Register 以字符串名称注册 schema，实例按 s.Type 分类到该名称。
func (r *Registry) Register(s *schema.ObjectSchema, name string) error {
	if name == "" {
		return merr.WrapErrParameterMissing("name")
	}
	if err := r.checkSchema(s); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.named[name]; ok {
		return merr.WrapErrSchemaAlreadyRegistered(name)
	}
	if err := r.bindTypeLocked(s, name); err != nil {
		return err
	}
	r.named[name] = s
	return nil
}

// RegisterAsModuleExport 以模块导出的形式注册 schema，module 为空表示全局导出。
func (r *Registry) RegisterAsModuleExport(s *schema.ObjectSchema, module string, exportName string) error {
	if exportName == "" {
		return merr.WrapErrParameterMissing("exportName")
	}
	if err := r.checkSchema(s); err != nil {
		return err
	}

	id := ModuleExportID{Module: module, ExportName: exportName}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.exports[id]; ok {
		return merr.WrapErrSchemaAlreadyRegistered(id.String())
	}
	if err := r.bindTypeLocked(s, id); err != nil {
		return err
	}
	r.exports[id] = s
	return nil
}

// RegisterModule 为模块注册加载器，首次解析该模块下的导出时调用，结果会被缓存。
func (r *Registry) RegisterModule(module string, loader ModuleLoader) error {
	if module == "" {
		return merr.WrapErrParameterMissing("module")
	}
	if loader == nil {
		return merr.WrapErrParameterMissing("loader")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.loaders[module]; ok {
		return merr.WrapErrSchemaAlreadyRegistered(module, "module loader")
	}
	r.loaders[module] = loader
	return nil
}

func (r *Registry) checkSchema(s *schema.ObjectSchema) error {
	if s == nil {
		return merr.WrapErrParameterMissing("schema")
	}
	if s.Type == nil {
		return merr.WrapErrSchemaInvalid(s.String(), "registered schema must carry a type")
	}
	return s.Validate()
}

func (r *Registry) bindTypeLocked(s *schema.ObjectSchema, id schema.ID) error {
	if prev, ok := r.byType[s.Type]; ok {
		return merr.WrapErrSchemaAlreadyRegistered(describeID(prev.id), "type "+s.Type.String())
	}
	r.byType[s.Type] = entry{schema: s, id: id}
	return nil
}

// Classify 按实例的动态类型查找 schema。
func (r *Registry) Classify(instance any) (*schema.ObjectSchema, schema.ID, bool) {
	if instance == nil {
		return nil, nil, false
	}
	return r.classifyType(reflect.TypeOf(instance))
}

// classifyType 先按类型本身查找；按值持有的结构体与其指针类型共用同一个 schema。
func (r *Registry) classifyType(typ reflect.Type) (*schema.ObjectSchema, schema.ID, bool) {
	if s, id, ok := r.lookupType(typ); ok {
		return s, id, true
	}
	switch typ.Kind() {
	case reflect.Struct:
		return r.lookupType(reflect.PointerTo(typ))
	case reflect.Ptr:
		if typ.Elem().Kind() == reflect.Struct {
			return r.lookupType(typ.Elem())
		}
	}
	return nil, nil, false
}

func (r *Registry) lookupType(typ reflect.Type) (*schema.ObjectSchema, schema.ID, bool) {
	r.mu.RLock()
	e, ok := r.byType[typ]
	fallbacks := r.fallbacks
	r.mu.RUnlock()
	if ok {
		return e.schema, e.id, true
	}
	for _, f := range fallbacks {
		if s, id, ok := f.lookupType(typ); ok {
			return s, id, true
		}
	}
	return nil, nil, false
}

func (r *Registry) IDsEqual(a, b schema.ID) bool {
	return IDsEqual(a, b)
}

// Resolve 解析标识，未找到时返回 (nil, nil)。
func (r *Registry) Resolve(ctx context.Context, id schema.ID) (*schema.ObjectSchema, error) {
	s, err := r.resolveLocal(ctx, id)
	if s != nil || err != nil {
		return s, err
	}
	r.mu.RLock()
	fallbacks := r.fallbacks
	r.mu.RUnlock()
	for _, f := range fallbacks {
		s, err := f.Resolve(ctx, id)
		if s != nil || err != nil {
			return s, err
		}
	}
	return nil, nil
}

func (r *Registry) resolveLocal(ctx context.Context, id schema.ID) (*schema.ObjectSchema, error) {
	if name, ok := id.(string); ok {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.named[name], nil
	}
	export, ok := asModuleExport(id)
	if !ok {
		return nil, nil
	}

	r.mu.RLock()
	s, found := r.exports[export]
	_, hasLoader := r.loaders[export.Module]
	loaded := r.loaded[export.Module]
	r.mu.RUnlock()
	if found || export.Module == "" || !hasLoader || loaded {
		return s, nil
	}

	if err := r.loadModule(ctx, export.Module); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exports[export], nil
}

// loadModule 调用模块加载器并缓存其导出，同一模块的并发加载只执行一次。
func (r *Registry) loadModule(ctx context.Context, module string) error {
	_, err, _ := r.loadGroup.Do(module, func() (any, error) {
		r.mu.RLock()
		loader := r.loaders[module]
		done := r.loaded[module]
		r.mu.RUnlock()
		if done {
			return nil, nil
		}

		log.Ctx(ctx).Debug("loading schema module", zap.String("module", module))
		exports, err := loader(ctx, module)
		if err != nil {
			log.Ctx(ctx).Warn("failed to load schema module", zap.String("module", module), zap.Error(err))
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		for name, s := range exports {
			if s == nil {
				continue
			}
			id := ModuleExportID{Module: module, ExportName: name}
			if _, ok := r.exports[id]; ok {
				continue
			}
			r.exports[id] = s
			if s.Type != nil {
				if _, ok := r.byType[s.Type]; !ok {
					r.byType[s.Type] = entry{schema: s, id: id}
				}
			}
		}
		r.loaded[module] = true
		return nil, nil
	})
	return err
}

// Len 返回自身直接持有的 schema 数量，不含 fallback。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.named) + len(r.exports)
}
