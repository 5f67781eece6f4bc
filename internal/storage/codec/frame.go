package codec

import (
	"encoding/binary"
	"io"

	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

// 资源容器的帧格式：
//
//	magic(4) | version(1) | flags(1) | reserved(2) | size(4, 大端) | payload
//
// payload 为（可选压缩、可选加密后的）序列化结果。
const (
	headerSize     = 12
	aadSize        = 8
	formatVersion  = uint8(1)
	defaultMaxSize = uint32(64 * 1024 * 1024) // 64MB
)

var magic = [4]byte{'O', 'B', 'J', 'G'}

// Flag 记录 payload 经过的处理步骤。
type Flag uint8

const (
	FlagCompressed Flag = 1 << iota
	FlagEncrypted
)

func (f Flag) Has(other Flag) bool {
	return f&other != 0
}

// Header 是容器帧头。
type Header struct {
	Version uint8
	Flags   Flag
	Size    uint32
}

func (h Header) marshal() [headerSize]byte {
	var buf [headerSize]byte
	copy(buf[0:4], magic[:])
	buf[4] = h.Version
	buf[5] = byte(h.Flags)
	binary.BigEndian.PutUint32(buf[8:12], h.Size)
	return buf
}

// aad 返回参与签名的帧头字段，不包含 size。
func (h Header) aad() []byte {
	buf := h.marshal()
	return buf[:aadSize]
}

func parseHeader(buf []byte, maxSize uint32) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, merr.WrapErrContainerCorrupted("header too short")
	}
	if [4]byte(buf[0:4]) != magic {
		return Header{}, merr.WrapErrContainerCorrupted("bad magic")
	}
	h := Header{
		Version: buf[4],
		Flags:   Flag(buf[5]),
		Size:    binary.BigEndian.Uint32(buf[8:12]),
	}
	if h.Version != formatVersion {
		return Header{}, merr.WrapErrContainerCorrupted("unsupported container version")
	}
	if h.Size > maxSize {
		return Header{}, merr.WrapErrContainerCorrupted("payload exceeds max size")
	}
	return h, nil
}

// writeFrame 写出帧头与 payload。
func writeFrame(w io.Writer, h Header, payload []byte) error {
	h.Size = uint32(len(payload))
	header := h.marshal()
	if _, err := w.Write(header[:]); err != nil {
		return merr.WrapErrIoFailedReason(err.Error(), "write container header")
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return merr.WrapErrIoFailedReason(err.Error(), "write container payload")
	}
	return nil
}

// readFrame 从流中读取一帧。
func readFrame(r io.Reader, maxSize uint32) (Header, []byte, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, nil, merr.WrapErrContainerCorrupted(err.Error(), "read container header")
	}
	h, err := parseHeader(buf[:], maxSize)
	if err != nil {
		return Header{}, nil, err
	}
	payload := make([]byte, h.Size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Header{}, nil, merr.WrapErrContainerCorrupted(err.Error(), "read container payload")
	}
	return h, payload, nil
}
