package assetstore

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/lk2023060901/objgraph-go/pkg/log"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

const tempFilePrefix = ".tmp-"

// FileStore 把每个键保存为 root 下的一个文件。
type FileStore struct {
	root string
}

var _ Store = (*FileStore)(nil)

// NewFileStore 创建 FileStore，root 不存在时自动创建。
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, merr.WrapErrParameterMissing("store root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, merr.WrapErrIoFailed(root, err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) Backend() string {
	return BackendFile
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Put 先写临时文件再重命名，读者不会看到写了一半的内容。
func (s *FileStore) Put(ctx context.Context, key string, data []byte) (err error) {
	defer func() { observe(BackendFile, opPut, err) }()
	if err := validateKey(key); err != nil {
		return err
	}

	target := s.path(key)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return merr.WrapErrIoFailed(key, err)
	}
	tmp, err := os.CreateTemp(dir, tempFilePrefix+"*")
	if err != nil {
		return merr.WrapErrIoFailed(key, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return merr.WrapErrIoFailed(key, err)
	}
	if err := tmp.Close(); err != nil {
		return merr.WrapErrIoFailed(key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return merr.WrapErrIoFailed(key, err)
	}
	log.Ctx(ctx).Debug("asset written", log.FieldKey(key), zap.Int("size", len(data)))
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) (data []byte, err error) {
	defer func() { observe(BackendFile, opGet, err) }()
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err = os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, merr.WrapErrIoKeyNotFound(key)
		}
		return nil, merr.WrapErrIoFailed(key, err)
	}
	return data, nil
}

func (s *FileStore) Delete(ctx context.Context, key string) (err error) {
	defer func() { observe(BackendFile, opDelete, err) }()
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return merr.WrapErrIoFailed(key, err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context, prefix string) (keys []string, err error) {
	defer func() { observe(BackendFile, opList, err) }()
	err = filepath.WalkDir(s.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempFilePrefix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, merr.WrapErrIoFailed(prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) Close() error {
	return nil
}
