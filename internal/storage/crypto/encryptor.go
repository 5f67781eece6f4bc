package crypto

// Encryptor 抽象单一加密方案：Encrypt 加密并签名，Decrypt 验签并解密。
//
// aad 为关联数据，不加密但受完整性保护，容器中即为帧头。
type Encryptor interface {
	Encrypt(plaintext, aad []byte) (packet []byte, err error)
	Decrypt(packet, aad []byte) (plaintext []byte, err error)
}

// NopEncryptor 直接透传数据。
type NopEncryptor struct{}

func (NopEncryptor) Encrypt(plaintext, _ []byte) ([]byte, error) {
	return plaintext, nil
}

func (NopEncryptor) Decrypt(packet, _ []byte) ([]byte, error) {
	return packet, nil
}

var _ Encryptor = NopEncryptor{}
