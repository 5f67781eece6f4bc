package assetstore

import (
	"context"
	"path"
	"strings"

	"github.com/lk2023060901/objgraph-go/pkg/metrics"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

const (
	BackendFile = "file"
	BackendEtcd = "etcd"
)

const (
	opPut    = "put"
	opGet    = "get"
	opDelete = "delete"
	opList   = "list"
)

// Store 是按键保存资源容器的后端。
//
// 键使用 "/" 分隔的相对路径，不允许出现 "." 或 ".." 段。
// 键不存在时 Get 返回 merr.ErrIoKeyNotFound，Delete 视为成功。
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// List 返回以 prefix 开头的全部键，按字典序排列。
	List(ctx context.Context, prefix string) ([]string, error)
	Backend() string
	Close() error
}

func validateKey(key string) error {
	if key == "" {
		return merr.WrapErrParameterMissing("key")
	}
	if strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") || path.Clean(key) != key ||
		key == ".." || strings.HasPrefix(key, "../") {
		return merr.WrapErrParameterInvalidMsg("invalid asset key %q", key)
	}
	return nil
}

func observe(backend, op string, err error) {
	metrics.StoreOpsTotal.WithLabelValues(backend, op, metrics.StatusLabel(err)).Inc()
}
