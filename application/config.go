package application

import (
	"time"

	zlog "github.com/lk2023060901/objgraph-go/pkg/log"
	zviper "github.com/lk2023060901/objgraph-go/pkg/util/viper"
)

// Config 为 objgraph 进程的完整配置。
//
// 示例：
//
//	log:
//	  level: info
//	  stdout: true
//	store:
//	  kind: etcd
//	  etcd:
//	    endpoints: ["127.0.0.1:2379"]
//	codec:
//	  compression: zstd
//	  encryption:
//	    enabled: true
//	    enc-key-hex: ...
//	    mac-key-hex: ...
type Config struct {
	Log   zlog.Config `mapstructure:"log"`
	Store StoreConfig `mapstructure:"store"`
	Codec CodecConfig `mapstructure:"codec"`
	Graph GraphConfig `mapstructure:"graph"`
}

type StoreConfig struct {
	// Kind 为 file 或 etcd。
	Kind string     `mapstructure:"kind"`
	Root string     `mapstructure:"root"`
	Etcd EtcdConfig `mapstructure:"etcd"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	Prefix      string        `mapstructure:"prefix"`
	DialTimeout time.Duration `mapstructure:"dial-timeout"`
	// Embed 为 true 时在进程内启动 etcd，忽略 Endpoints。
	Embed     bool   `mapstructure:"embed"`
	DataDir   string `mapstructure:"data-dir"`
	ClientURL string `mapstructure:"client-url"`
	PeerURL   string `mapstructure:"peer-url"`
}

type CodecConfig struct {
	// Compression 为 none 或 zstd。
	Compression     string           `mapstructure:"compression"`
	MinCompressSize int              `mapstructure:"min-compress-size"`
	MaxSize         uint32           `mapstructure:"max-size"`
	Encryption      EncryptionConfig `mapstructure:"encryption"`
}

type EncryptionConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	EncKeyHex string `mapstructure:"enc-key-hex"`
	MacKeyHex string `mapstructure:"mac-key-hex"`
}

type GraphConfig struct {
	ResolveConcurrency int `mapstructure:"resolve-concurrency"`
	BatchConcurrency   int `mapstructure:"batch-concurrency"`
}

const (
	StoreKindFile = "file"
	StoreKindEtcd = "etcd"
)

var defaults = map[string]any{
	"log.level":                    "info",
	"log.format":                   "console",
	"log.stdout":                   true,
	"log.disable-error-verbose":    true,
	"log.file.max-size":            300,
	"log.file.max-backups":         20,
	"store.kind":                   StoreKindFile,
	"store.root":                   "./assets",
	"store.etcd.endpoints":         []string{"127.0.0.1:2379"},
	"store.etcd.prefix":            "objgraph/assets",
	"store.etcd.dial-timeout":      "5s",
	"store.etcd.data-dir":          "./etcd-data",
	"codec.compression":            "zstd",
	"codec.min-compress-size":      256,
	"codec.encryption.enabled":     false,
	"codec.encryption.enc-key-hex": "",
	"codec.encryption.mac-key-hex": "",
	"graph.resolve-concurrency":    8,
	"graph.batch-concurrency":      4,
}

// NewConfigSource 创建已填好默认值的配置源。
func NewConfigSource() *zviper.Config {
	src := zviper.New()
	src.SetDefaults(defaults)
	return src
}

// DefaultConfig 返回只包含默认值的配置。
func DefaultConfig() (*Config, error) {
	return decodeConfig(NewConfigSource())
}

func decodeConfig(src *zviper.Config) (*Config, error) {
	cfg := &Config{}
	if err := src.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
