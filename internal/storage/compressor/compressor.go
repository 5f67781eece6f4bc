package compressor

import (
	"strings"

	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

// Compressor 抽象了单次压缩/解压能力，面向内存中的完整资源块。
type Compressor interface {
	// Compress 将 src 压缩后追加到 dst[:0]，返回压缩结果。
	Compress(dst, src []byte) (packet []byte, err error)

	// Decompress 与 Compress 对称，src 必须是 Compress 的输出。
	Decompress(dst, src []byte) (plain []byte, err error)

	Close()
}

// NopCompressor 不做任何处理，直接返回输入。
type NopCompressor struct{}

func (NopCompressor) Compress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

func (NopCompressor) Decompress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

func (NopCompressor) Close() {}

var _ Compressor = NopCompressor{}

// Kind 是配置中使用的压缩算法名称。
type Kind string

const (
	KindNone Kind = "none"
	KindZstd Kind = "zstd"
)

// New 按名称创建压缩器，空名称等价于 none。
// maxDecodedSize 为解压输出上限，0 使用 DefaultMaxDecodedSize。
func New(kind string, minCompressSize int, maxDecodedSize uint64) (Compressor, error) {
	switch Kind(strings.ToLower(kind)) {
	case "", KindNone:
		return NopCompressor{}, nil
	case KindZstd:
		c, err := NewZstdCompressorWithOptions(0, maxDecodedSize)
		if err != nil {
			return nil, err
		}
		c.SetMinCompressSize(minCompressSize)
		return c, nil
	default:
		return nil, merr.WrapErrParameterInvalidMsg("unknown compression %q", kind)
	}
}
