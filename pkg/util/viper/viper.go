package viper

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	spfviper "github.com/spf13/viper"
)

// Config 封装 spf13/viper 实例，对外提供精简的 YAML/JSON 配置加载接口。
type Config struct {
	v *spfviper.Viper
}

// New 创建一个空的 Config。未加载文件时 Unmarshal 只会得到默认值。
func New() *Config {
	return &Config{
		v: newViper(),
	}
}

// newViper 创建 viper 实例，环境变量使用 OBJGRAPH_ 前缀，键中的 "." 与 "-" 映射为 "_"。
func newViper() *spfviper.Viper {
	v := spfviper.New()
	v.SetEnvPrefix("OBJGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefault 设置 key 的默认值，优先级低于配置文件、环境变量与命令行参数。
func (c *Config) SetDefault(key string, value any) {
	if c.v == nil {
		c.v = newViper()
	}
	c.v.SetDefault(key, value)
}

// SetDefaults 批量设置默认值。
func (c *Config) SetDefaults(defaults map[string]any) {
	for key, value := range defaults {
		c.SetDefault(key, value)
	}
}

// LoadFile 将 YAML 或 JSON 配置文件加载到 Config 中。
// 文件类型通过扩展名（.yaml/.yml/.json）推断。
func (c *Config) LoadFile(path string) error {
	if c.v == nil {
		c.v = newViper()
	}

	c.v.SetConfigFile(path)

	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		c.v.SetConfigType("yaml")
	case ".json":
		c.v.SetConfigType("json")
	default:
		// 让 viper 自行推断类型，或在读取时返回清晰的错误信息。
	}

	if err := c.v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "load config file %q", path)
	}
	return nil
}

// BindFlags 将命令行参数绑定到同名配置键，已设置的参数覆盖配置文件。
func (c *Config) BindFlags(flags *pflag.FlagSet) error {
	if c.v == nil {
		c.v = newViper()
	}
	return c.v.BindPFlags(flags)
}

// BindFlag 将单个命令行参数绑定到指定配置键。
func (c *Config) BindFlag(key string, flag *pflag.Flag) error {
	if c.v == nil {
		c.v = newViper()
	}
	return c.v.BindPFlag(key, flag)
}

// IsSet 判断 key 是否在任一配置来源中出现。
func (c *Config) IsSet(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.IsSet(key)
}

// Unmarshal 将完整配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) Unmarshal(dst interface{}) error {
	if c.v == nil {
		return nil
	}
	return c.v.Unmarshal(dst)
}

// UnmarshalKey 将指定 key 对应的子配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
//
// 子配置取自合并后的全部配置，默认值、环境变量与命令行参数对子键同样生效。
func (c *Config) UnmarshalKey(key string, dst interface{}) error {
	if c.v == nil {
		return nil
	}
	var node any = c.v.AllSettings()
	for _, part := range strings.Split(strings.ToLower(key), ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		if node, ok = m[part]; !ok {
			return nil
		}
	}
	section, ok := node.(map[string]any)
	if !ok {
		return c.v.UnmarshalKey(key, dst)
	}
	sub := spfviper.New()
	if err := sub.MergeConfigMap(section); err != nil {
		return errors.Wrapf(err, "merge config section %q", key)
	}
	return sub.Unmarshal(dst)
}
