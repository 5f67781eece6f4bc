package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/objgraph-go/internal/json"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

type summaryOutput struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Summary struct {
		Nodes      int  `json:"nodes"`
		Meshes     int  `json:"meshes"`
		Materials  int  `json:"materials"`
		Consistent bool `json:"consistent"`
	} `json:"summary"`
}

// newWorkspace 返回带配置文件的全局参数，资源写在独立的 assets 目录下。
func newWorkspace(t *testing.T) (args []string, assets string) {
	dir := t.TempDir()
	assets = filepath.Join(dir, "assets")
	config := filepath.Join(dir, "objgraph.yaml")
	content := "log:\n  level: error\ncodec:\n  compression: zstd\n  min-compress-size: 16\n"
	require.NoError(t, os.WriteFile(config, []byte(content), 0o644))
	return []string{"--config", config, "--store-root", assets}, assets
}

func runCLI(args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestDemoRoundTrip(t *testing.T) {
	base, assets := newWorkspace(t)

	out, err := runCLI(append(base, "--width", "3", "put-demo", "levels/one")...)
	require.NoError(t, err)
	var saved summaryOutput
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	assert.Equal(t, "levels/one", saved.Key)
	assert.Equal(t, 4, saved.Summary.Nodes)
	assert.Equal(t, 1, saved.Summary.Meshes)
	assert.Equal(t, 2, saved.Summary.Materials)

	out, err = runCLI(append(base, "load-demo", "levels/one")...)
	require.NoError(t, err)
	var loaded summaryOutput
	require.NoError(t, json.Unmarshal([]byte(out), &loaded))
	assert.Equal(t, "levels/one", loaded.Name)
	assert.Equal(t, saved.Summary, loaded.Summary)
	assert.True(t, loaded.Summary.Consistent)

	out, err = runCLI(append(base, "list", "levels")...)
	require.NoError(t, err)
	assert.Equal(t, "levels/one\n", out)

	out, err = runCLI(append(base, "get", "levels/one")...)
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, "1.0.0", env["version"])
	schemas, ok := env["schemas"].([]any)
	require.True(t, ok)
	assert.Equal(t, "Scene", schemas[0])

	// inspect 直接读取容器文件，结果与 get 一致。
	inspected, err := runCLI(append(base, "inspect", filepath.Join(assets, "levels", "one"))...)
	require.NoError(t, err)
	assert.JSONEq(t, out, inspected)

	_, err = runCLI(append(base, "delete", "levels/one")...)
	require.NoError(t, err)
	_, err = runCLI(append(base, "load-demo", "levels/one")...)
	assert.ErrorIs(t, err, merr.ErrIoKeyNotFound)
}

func TestUsageErrors(t *testing.T) {
	base, _ := newWorkspace(t)

	_, err := runCLI(base...)
	assert.ErrorIs(t, err, merr.ErrParameterMissing)

	_, err = runCLI(append(base, "frobnicate")...)
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)

	_, err = runCLI(append(base, "get")...)
	assert.ErrorIs(t, err, merr.ErrParameterMissing)

	_, err = runCLI("--no-such-flag")
	assert.Error(t, err)
}
