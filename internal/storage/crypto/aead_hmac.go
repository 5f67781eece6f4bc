package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

var (
	// ErrPacketTooShort 表示报文长度不足以容纳 nonce 与 MAC。
	ErrPacketTooShort = errors.New("crypto: packet too short")

	// ErrInvalidMAC 表示 HMAC 校验失败。
	ErrInvalidMAC = errors.New("crypto: invalid mac")
)

const aes256KeySizeBytes = 32

// AEADHMACCodec 使用 AES-256-GCM 加密，并对 nonce、密文与 aad 追加 HMAC-SHA256 签名。
//
// 报文格式：nonce || ciphertext || mac
type AEADHMACCodec struct {
	aead    cipher.AEAD
	hmacKey []byte
}

var _ Encryptor = (*AEADHMACCodec)(nil)

// NewAESGCMHMACCodec 创建编码器，encKey 必须为 32 字节，macKey 不能为空。
func NewAESGCMHMACCodec(encKey, macKey []byte) (*AEADHMACCodec, error) {
	if len(encKey) != aes256KeySizeBytes {
		return nil, merr.WrapErrParameterInvalid(aes256KeySizeBytes, len(encKey), "encryption key length")
	}
	if len(macKey) == 0 {
		return nil, merr.WrapErrParameterMissing("mac key")
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, errors.Wrap(err, "crypto: new cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "crypto: new gcm")
	}
	return &AEADHMACCodec{
		aead:    aead,
		hmacKey: append([]byte(nil), macKey...),
	}, nil
}

// NewAESGCMHMACCodecFromHex 以十六进制字符串形式的密钥创建编码器，供配置文件使用。
func NewAESGCMHMACCodecFromHex(encKeyHex, macKeyHex string) (*AEADHMACCodec, error) {
	encKey, err := hex.DecodeString(encKeyHex)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("decode encryption key: %s", err.Error())
	}
	macKey, err := hex.DecodeString(macKeyHex)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("decode mac key: %s", err.Error())
	}
	return NewAESGCMHMACCodec(encKey, macKey)
}

// Encrypt 加密明文并计算签名。
func (c *AEADHMACCodec) Encrypt(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "crypto: read nonce")
	}

	ciphertext := c.aead.Seal(nil, nonce, plaintext, aad)
	mac := c.sign(nonce, ciphertext, aad)

	packet := make([]byte, 0, len(nonce)+len(ciphertext)+len(mac))
	packet = append(packet, nonce...)
	packet = append(packet, ciphertext...)
	packet = append(packet, mac...)
	return packet, nil
}

// Decrypt 先校验签名再解密，aad 必须与加密时一致。
func (c *AEADHMACCodec) Decrypt(packet, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(packet) < nonceSize+sha256.Size {
		return nil, ErrPacketTooShort
	}

	nonce := packet[:nonceSize]
	macOffset := len(packet) - sha256.Size
	ciphertext := packet[nonceSize:macOffset]

	if !hmac.Equal(c.sign(nonce, ciphertext, aad), packet[macOffset:]) {
		return nil, ErrInvalidMAC
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, errors.Wrap(err, "crypto: open")
	}
	return plaintext, nil
}

func (c *AEADHMACCodec) sign(nonce, ciphertext, aad []byte) []byte {
	m := hmac.New(sha256.New, c.hmacKey)
	_, _ = m.Write(nonce)
	_, _ = m.Write(ciphertext)
	_, _ = m.Write(aad)
	return m.Sum(nil)
}
