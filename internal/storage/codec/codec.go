package codec

import (
	"bytes"
	"io"

	"github.com/lk2023060901/objgraph-go/internal/storage/compressor"
	"github.com/lk2023060901/objgraph-go/internal/storage/crypto"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

// Codec 负责序列化结果与资源容器之间的转换。
//
// 写出（Seal）：
//
//	blob --> [compress?] --> [encrypt?] --> Header+Payload
//
// 读入（Open）：
//
//	Header+Payload --> [decrypt?] --> [decompress?] --> blob
type Codec interface {
	Seal(blob []byte) ([]byte, error)
	Open(container []byte) ([]byte, error)

	// WriteTo 将 blob 封装后写入流。
	WriteTo(w io.Writer, blob []byte) error
	// ReadFrom 从流中读取一个容器并还原 blob。
	ReadFrom(r io.Reader) ([]byte, error)
}

// Options 为 Codec 的依赖注入参数。
type Options struct {
	Compressor compressor.Compressor // 允许为 nil，此时使用 NopCompressor
	Encryptor  crypto.Encryptor      // 允许为 nil，此时使用 NopEncryptor

	EnableCompression bool
	EnableEncryption  bool

	// MaxSize 为 payload 与还原后 blob 的最大字节数，0 使用默认值。
	MaxSize uint32
}

type codec struct {
	compressor compressor.Compressor
	encryptor  crypto.Encryptor

	compress bool
	encrypt  bool
	maxSize  uint32
}

var _ Codec = (*codec)(nil)

// New 创建 Codec。
func New(opts Options) (Codec, error) {
	c := &codec{
		compressor: opts.Compressor,
		encryptor:  opts.Encryptor,
		compress:   opts.EnableCompression,
		encrypt:    opts.EnableEncryption,
		maxSize:    opts.MaxSize,
	}
	if c.compressor == nil {
		if c.compress {
			return nil, merr.WrapErrParameterMissing("compressor")
		}
		c.compressor = compressor.NopCompressor{}
	}
	if c.encryptor == nil {
		if c.encrypt {
			return nil, merr.WrapErrParameterMissing("encryptor")
		}
		c.encryptor = crypto.NopEncryptor{}
	}
	if c.maxSize == 0 {
		c.maxSize = defaultMaxSize
	}
	return c, nil
}

func (c *codec) Seal(blob []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := c.WriteTo(buf, blob); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *codec) Open(container []byte) ([]byte, error) {
	r := bytes.NewReader(container)
	blob, err := c.ReadFrom(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, merr.WrapErrContainerCorrupted("trailing bytes after container")
	}
	return blob, nil
}

func (c *codec) WriteTo(w io.Writer, blob []byte) error {
	if w == nil {
		return merr.WrapErrParameterMissing("writer")
	}
	if uint64(len(blob)) > uint64(c.maxSize) {
		return merr.WrapErrParameterInvalidRange(0, int(c.maxSize), len(blob), "container blob size")
	}
	h := Header{Version: formatVersion}
	body := blob

	if c.compress && len(body) > 0 {
		compressed, err := c.compressor.Compress(nil, body)
		if err != nil {
			return merr.WrapErrEncodeFailed(err, "compress container")
		}
		body = compressed
		h.Flags |= FlagCompressed
	}

	if c.encrypt && len(body) > 0 {
		packet, err := c.encryptor.Encrypt(body, h.aad())
		if err != nil {
			return merr.WrapErrEncodeFailed(err, "encrypt container")
		}
		body = packet
		h.Flags |= FlagEncrypted
	}

	if uint64(len(body)) > uint64(c.maxSize) {
		return merr.WrapErrParameterInvalidRange(0, int(c.maxSize), len(body), "container payload size")
	}
	return writeFrame(w, h, body)
}

func (c *codec) ReadFrom(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, merr.WrapErrParameterMissing("reader")
	}
	h, data, err := readFrame(r, c.maxSize)
	if err != nil {
		return nil, err
	}

	if h.Flags.Has(FlagEncrypted) {
		if !c.encrypt {
			return nil, merr.WrapErrContainerCorrupted("encrypted payload but encryption disabled")
		}
		plain, err := c.encryptor.Decrypt(data, h.aad())
		if err != nil {
			return nil, merr.WrapErrContainerCorrupted(err.Error(), "decrypt container")
		}
		data = plain
	}

	if h.Flags.Has(FlagCompressed) {
		if !c.compress {
			return nil, merr.WrapErrContainerCorrupted("compressed payload but compression disabled")
		}
		plain, err := c.compressor.Decompress(nil, data)
		if err != nil {
			return nil, merr.WrapErrContainerCorrupted(err.Error(), "decompress container")
		}
		if uint64(len(plain)) > uint64(c.maxSize) {
			return nil, merr.WrapErrContainerCorrupted("decompressed payload exceeds max size")
		}
		data = plain
	}
	return data, nil
}
