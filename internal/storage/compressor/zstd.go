package compressor

import (
	"bytes"

	"github.com/klauspost/compress/zstd"

	"github.com/lk2023060901/objgraph-go/pkg/util/hardware"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

// zstdMagic 是 zstd 帧的固定前缀，用于识别未达到压缩阈值而原样保存的数据。
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// DefaultMaxDecodedSize 是单次解压允许输出的默认最大字节数。
const DefaultMaxDecodedSize = uint64(64 * 1024 * 1024)

// ZstdCompressor 基于 klauspost/compress/zstd，持有独立的 encoder/decoder。
type ZstdCompressor struct {
	enc             *zstd.Encoder
	dec             *zstd.Decoder
	minCompressSize int
}

var _ Compressor = (*ZstdCompressor)(nil)

// NewZstdCompressor 创建一个 ZstdCompressor，默认并发度为主机 CPU 核心数。
func NewZstdCompressor() (*ZstdCompressor, error) {
	return NewZstdCompressorWithOptions(0, 0)
}

// NewZstdCompressorWithConcurrency 创建 ZstdCompressor，concurrency <= 0 时使用 CPU 核心数。
func NewZstdCompressorWithConcurrency(concurrency int) (*ZstdCompressor, error) {
	return NewZstdCompressorWithOptions(concurrency, 0)
}

// NewZstdCompressorWithOptions 创建 ZstdCompressor。
// maxDecodedSize 限制解压输出，超过时 Decompress 返回 ErrContainerCorrupted；0 使用 DefaultMaxDecodedSize。
func NewZstdCompressorWithOptions(concurrency int, maxDecodedSize uint64) (*ZstdCompressor, error) {
	if concurrency <= 0 {
		concurrency = hardware.GetCPUNum()
	}
	if maxDecodedSize == 0 {
		maxDecodedSize = DefaultMaxDecodedSize
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithZeroFrames(true),
		zstd.WithEncoderConcurrency(concurrency),
	)
	if err != nil {
		return nil, merr.WrapErrServiceInternal(err.Error(), "create zstd encoder")
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(concurrency),
		zstd.WithDecoderMaxMemory(maxDecodedSize),
	)
	if err != nil {
		enc.Close()
		return nil, merr.WrapErrServiceInternal(err.Error(), "create zstd decoder")
	}
	return &ZstdCompressor{
		enc: enc,
		dec: dec,
	}, nil
}

// SetMinCompressSize 设置触发压缩的最小字节数，小于该值的数据原样返回。
func (c *ZstdCompressor) SetMinCompressSize(n int) {
	if n < 0 {
		n = 0
	}
	c.minCompressSize = n
}

// Compress 实现 Compressor 接口。
func (c *ZstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	if c == nil || c.enc == nil {
		return nil, zstd.ErrEncoderClosed
	}
	if c.minCompressSize > 0 && len(src) < c.minCompressSize {
		return src, nil
	}
	return c.enc.EncodeAll(src, dst[:0]), nil
}

// Decompress 实现 Compressor 接口。
// 不以 zstd 魔数开头的输入视为未压缩数据直接返回。
func (c *ZstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	if c == nil || c.dec == nil {
		return nil, zstd.ErrDecoderClosed
	}
	if !hasZstdMagic(src) {
		return src, nil
	}
	out, err := c.dec.DecodeAll(src, dst[:0])
	if err != nil {
		return nil, merr.WrapErrContainerCorrupted(err.Error(), "zstd decompress")
	}
	return out, nil
}

// Close 释放 encoder/decoder，关闭后再使用返回 ErrEncoderClosed/ErrDecoderClosed。
func (c *ZstdCompressor) Close() {
	if c == nil {
		return
	}
	if c.enc != nil {
		_ = c.enc.Close()
		c.enc = nil
	}
	if c.dec != nil {
		c.dec.Close()
		c.dec = nil
	}
}

func hasZstdMagic(src []byte) bool {
	return bytes.HasPrefix(src, zstdMagic)
}
