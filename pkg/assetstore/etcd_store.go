package assetstore

import (
	"context"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/lk2023060901/objgraph-go/pkg/log"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
	"github.com/lk2023060901/objgraph-go/pkg/util/retry"
)

const (
	defaultEtcdPrefix     = "objgraph/assets"
	defaultRequestTimeout = 10 * time.Second
	defaultRetryAttempts  = 3
)

// EtcdStore 把资源容器保存在 etcd 的 prefix 下。
//
// 单个值受 etcd 请求大小上限约束（默认 1.5MB），大资源应使用 FileStore。
type EtcdStore struct {
	cli            *clientv3.Client
	prefix         string
	requestTimeout time.Duration
	attempts       uint
	ownsClient     bool
}

var _ Store = (*EtcdStore)(nil)

type EtcdOption func(*EtcdStore)

// WithRequestTimeout 设置单次 etcd 请求的超时。
func WithRequestTimeout(d time.Duration) EtcdOption {
	return func(s *EtcdStore) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithRetryAttempts 设置可重试错误的最大尝试次数。
func WithRetryAttempts(n uint) EtcdOption {
	return func(s *EtcdStore) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithOwnedClient 表示 Close 时一并关闭客户端。
func WithOwnedClient() EtcdOption {
	return func(s *EtcdStore) {
		s.ownsClient = true
	}
}

// NewEtcdStore 创建 EtcdStore，prefix 为空时使用默认前缀。
func NewEtcdStore(cli *clientv3.Client, prefix string, opts ...EtcdOption) (*EtcdStore, error) {
	if cli == nil {
		return nil, merr.WrapErrParameterMissing("etcd client")
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultEtcdPrefix
	}
	s := &EtcdStore{
		cli:            cli,
		prefix:         prefix,
		requestTimeout: defaultRequestTimeout,
		attempts:       defaultRetryAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *EtcdStore) Backend() string {
	return BackendEtcd
}

func (s *EtcdStore) fullKey(key string) string {
	return s.prefix + "/" + key
}

// do 以超时执行一次 etcd 请求，IO 错误按 retry 策略重试。
func (s *EtcdStore) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
		return fn(reqCtx)
	}, retry.Attempts(s.attempts), retry.Sleep(50*time.Millisecond), retry.RetryErr(merr.IsRetryableErr))
}

func (s *EtcdStore) Put(ctx context.Context, key string, data []byte) (err error) {
	defer func() { observe(BackendEtcd, opPut, err) }()
	if err := validateKey(key); err != nil {
		return err
	}
	err = s.do(ctx, func(ctx context.Context) error {
		if _, err := s.cli.Put(ctx, s.fullKey(key), string(data)); err != nil {
			return merr.WrapErrIoFailed(key, err)
		}
		return nil
	})
	if err != nil {
		log.Ctx(ctx).Warn("failed to put asset to etcd", log.FieldKey(key), zap.Error(err))
		return err
	}
	return nil
}

func (s *EtcdStore) Get(ctx context.Context, key string) (data []byte, err error) {
	defer func() { observe(BackendEtcd, opGet, err) }()
	if err := validateKey(key); err != nil {
		return nil, err
	}
	err = s.do(ctx, func(ctx context.Context) error {
		resp, err := s.cli.Get(ctx, s.fullKey(key))
		if err != nil {
			return merr.WrapErrIoFailed(key, err)
		}
		if len(resp.Kvs) == 0 {
			return merr.WrapErrIoKeyNotFound(key)
		}
		data = resp.Kvs[0].Value
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *EtcdStore) Delete(ctx context.Context, key string) (err error) {
	defer func() { observe(BackendEtcd, opDelete, err) }()
	if err := validateKey(key); err != nil {
		return err
	}
	return s.do(ctx, func(ctx context.Context) error {
		if _, err := s.cli.Delete(ctx, s.fullKey(key)); err != nil {
			return merr.WrapErrIoFailed(key, err)
		}
		return nil
	})
}

func (s *EtcdStore) List(ctx context.Context, prefix string) (keys []string, err error) {
	defer func() { observe(BackendEtcd, opList, err) }()
	root := s.prefix + "/"
	err = s.do(ctx, func(ctx context.Context) error {
		resp, err := s.cli.Get(ctx, root+prefix,
			clientv3.WithPrefix(),
			clientv3.WithKeysOnly(),
			clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
		if err != nil {
			return merr.WrapErrIoFailed(prefix, err)
		}
		keys = make([]string, 0, len(resp.Kvs))
		for _, kv := range resp.Kvs {
			keys = append(keys, strings.TrimPrefix(string(kv.Key), root))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *EtcdStore) Close() error {
	if !s.ownsClient {
		return nil
	}
	return s.cli.Close()
}
