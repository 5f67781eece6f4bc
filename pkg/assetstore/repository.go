package assetstore

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/objgraph-go/internal/wire"
	"github.com/lk2023060901/objgraph-go/pkg/graph"
	"github.com/lk2023060901/objgraph-go/pkg/log"
	"github.com/lk2023060901/objgraph-go/pkg/schema"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

const defaultBatchConcurrency = 4

// Container 在序列化结果与存储字节之间转换，nil 表示原样保存。
type Container interface {
	Seal(blob []byte) ([]byte, error)
	Open(container []byte) ([]byte, error)
}

// Repository 把对象图序列化后保存到 Store，并能按键还原。
type Repository struct {
	log.Binder

	store       Store
	sharedStore bool
	closed      atomic.Bool
	container   Container

	serializeOpts   graph.SerializeOptions
	deserializeOpts graph.DeserializeOptions
	concurrency     int

	saved  atomic.Int64
	loaded atomic.Int64
	bytes  atomic.Int64
}

type RepositoryOption func(*Repository)

// WithFinder 使用同一个 Finder 完成分类与解析，通常是一个 registry.Registry。
func WithFinder(f schema.Finder) RepositoryOption {
	return func(r *Repository) {
		r.serializeOpts.Classifier = f
		r.deserializeOpts.Resolver = f
	}
}

func WithClassifier(c schema.Classifier) RepositoryOption {
	return func(r *Repository) {
		r.serializeOpts.Classifier = c
	}
}

func WithResolver(res schema.Resolver) RepositoryOption {
	return func(r *Repository) {
		r.deserializeOpts.Resolver = res
	}
}

// WithSharedStore 表示 store 归调用方所有，Close 不会关闭它。
func WithSharedStore() RepositoryOption {
	return func(r *Repository) {
		r.sharedStore = true
	}
}

func WithContainer(c Container) RepositoryOption {
	return func(r *Repository) {
		r.container = c
	}
}

func WithBeforeEncode(fn func(value any) any) RepositoryOption {
	return func(r *Repository) {
		r.serializeOpts.BeforeEncode = fn
	}
}

func WithAfterPropertyAssigned(fn graph.AfterAssignFunc) RepositoryOption {
	return func(r *Repository) {
		r.deserializeOpts.AfterPropertyAssigned = fn
	}
}

// WithResolveConcurrency 设置单次加载时 schema 解析的并发数。
func WithResolveConcurrency(n int) RepositoryOption {
	return func(r *Repository) {
		r.deserializeOpts.ResolveConcurrency = n
	}
}

// WithBatchConcurrency 设置 SaveAll/LoadAll 同时处理的资源数。
func WithBatchConcurrency(n int) RepositoryOption {
	return func(r *Repository) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewRepository 创建 Repository。
func NewRepository(store Store, opts ...RepositoryOption) (*Repository, error) {
	if store == nil {
		return nil, merr.WrapErrParameterMissing("store")
	}
	r := &Repository{
		store:       store,
		concurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Repository) Store() Store {
	return r.store
}

// Save 序列化 root 并写入 key。
func (r *Repository) Save(ctx context.Context, key string, root any) error {
	blob, err := graph.Serialize(ctx, root, r.serializeOpts)
	if err != nil {
		return err
	}
	data := blob
	if r.container != nil {
		if data, err = r.container.Seal(blob); err != nil {
			return err
		}
	}
	if err := r.store.Put(ctx, key, data); err != nil {
		return err
	}
	r.saved.Inc()
	r.bytes.Add(int64(len(data)))
	r.LoggerFrom(ctx).Debug("asset saved",
		log.FieldKey(key),
		zap.String("backend", r.store.Backend()),
		zap.Int("blobSize", len(blob)),
		zap.Int("storedSize", len(data)))
	return nil
}

// Load 读取 key 并重建对象图。
func (r *Repository) Load(ctx context.Context, key string) (any, error) {
	blob, err := r.Blob(ctx, key)
	if err != nil {
		return nil, err
	}
	root, err := graph.Deserialize(ctx, blob, r.deserializeOpts)
	if err != nil {
		r.LoggerFrom(ctx).Warn("failed to load asset", log.FieldKey(key), zap.Error(err))
		return nil, err
	}
	r.loaded.Inc()
	return root, nil
}

// Blob 读取 key 并返回拆封后的序列化结果。
func (r *Repository) Blob(ctx context.Context, key string) ([]byte, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if r.container == nil {
		return data, nil
	}
	return r.container.Open(data)
}

// Envelope 读取 key 并只解码信封，不解析 schema。
func (r *Repository) Envelope(ctx context.Context, key string) (*wire.Serialized, error) {
	blob, err := r.Blob(ctx, key)
	if err != nil {
		return nil, err
	}
	return wire.Decode(blob)
}

// SaveAll 并发保存多个资源，遇到第一个错误后取消其余任务。
func (r *Repository) SaveAll(ctx context.Context, assets map[string]any) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for key, root := range assets {
		key, root := key, root
		g.Go(func() error {
			return r.Save(gctx, key, root)
		})
	}
	return g.Wait()
}

// LoadAll 并发加载多个资源。
func (r *Repository) LoadAll(ctx context.Context, keys []string) (map[string]any, error) {
	var mu sync.Mutex
	out := make(map[string]any, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			root, err := r.Load(gctx, key)
			if err != nil {
				return err
			}
			mu.Lock()
			out[key] = root
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete 删除 key 对应的资源。
func (r *Repository) Delete(ctx context.Context, key string) error {
	return r.store.Delete(ctx, key)
}

// List 列出以 prefix 开头的资源键。
func (r *Repository) List(ctx context.Context, prefix string) ([]string, error) {
	return r.store.List(ctx, prefix)
}

// Stats 是 Repository 自创建以来的累计计数。
type Stats struct {
	Saved       int64 `json:"saved"`
	Loaded      int64 `json:"loaded"`
	StoredBytes int64 `json:"storedBytes"`
}

func (r *Repository) Stats() Stats {
	return Stats{
		Saved:       r.saved.Load(),
		Loaded:      r.loaded.Load(),
		StoredBytes: r.bytes.Load(),
	}
}

// Close 可重复调用，只有第一次会关闭独占的 store。
func (r *Repository) Close() error {
	if !r.closed.CompareAndSwap(false, true) || r.sharedStore {
		return nil
	}
	return r.store.Close()
}
