package viper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeSection struct {
	Kind        string        `mapstructure:"kind"`
	Root        string        `mapstructure:"root"`
	DialTimeout time.Duration `mapstructure:"dial-timeout"`
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "objgraph.yaml", `
store:
  kind: etcd
  dial-timeout: 3s
`)
	cfg := New()
	cfg.SetDefaults(map[string]any{
		"store.kind": "file",
		"store.root": "./assets",
	})
	require.NoError(t, cfg.LoadFile(path))

	var store storeSection
	require.NoError(t, cfg.UnmarshalKey("store", &store))
	assert.Equal(t, "etcd", store.Kind)
	assert.Equal(t, "./assets", store.Root)
	assert.Equal(t, 3*time.Second, store.DialTimeout)
	assert.True(t, cfg.IsSet("store.kind"))
	assert.False(t, cfg.IsSet("store.unknown"))
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "objgraph.json", `{"store": {"kind": "file", "root": "/data"}}`)
	cfg := New()
	require.NoError(t, cfg.LoadFile(path))

	var all struct {
		Store storeSection `mapstructure:"store"`
	}
	require.NoError(t, cfg.Unmarshal(&all))
	assert.Equal(t, "/data", all.Store.Root)
}

func TestLoadMissingFile(t *testing.T) {
	cfg := New()
	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestEnvAndFlags(t *testing.T) {
	t.Setenv("OBJGRAPH_STORE_ROOT", "/from-env")

	cfg := New()
	cfg.SetDefault("store.root", "./assets")
	cfg.SetDefault("store.kind", "file")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	kind := flags.String("kind", "file", "")
	require.NoError(t, cfg.BindFlag("store.kind", flags.Lookup("kind")))
	require.NoError(t, flags.Parse([]string{"--kind", "etcd"}))
	assert.Equal(t, "etcd", *kind)

	var store storeSection
	require.NoError(t, cfg.UnmarshalKey("store", &store))
	assert.Equal(t, "/from-env", store.Root)
	assert.Equal(t, "etcd", store.Kind)
}

func TestZeroConfig(t *testing.T) {
	var cfg Config
	var dst map[string]any
	assert.NoError(t, cfg.Unmarshal(&dst))
	assert.False(t, cfg.IsSet("a"))
}
