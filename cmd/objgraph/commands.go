package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/lk2023060901/objgraph-go/application"
	"github.com/lk2023060901/objgraph-go/internal/demo"
	"github.com/lk2023060901/objgraph-go/internal/json"
	"github.com/lk2023060901/objgraph-go/internal/wire"
	"github.com/lk2023060901/objgraph-go/pkg/assetstore"
	"github.com/lk2023060901/objgraph-go/pkg/schema"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

// containerMagic 与 internal/storage/codec 的帧头一致。
var containerMagic = []byte("OBJG")

type command struct {
	app   *application.Application
	out   io.Writer
	width int
}

func (c *command) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "inspect":
		if len(args) != 1 {
			return merr.WrapErrParameterMissing("file", "usage: objgraph inspect <file>")
		}
		return c.inspect(args[0])
	case "get":
		if len(args) != 1 {
			return merr.WrapErrParameterMissing("key", "usage: objgraph get <key>")
		}
		return c.get(ctx, args[0])
	case "list":
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}
		return c.list(ctx, prefix)
	case "delete":
		if len(args) != 1 {
			return merr.WrapErrParameterMissing("key", "usage: objgraph delete <key>")
		}
		return c.delete(ctx, args[0])
	case "put-demo":
		if len(args) != 1 {
			return merr.WrapErrParameterMissing("key", "usage: objgraph put-demo <key>")
		}
		return c.putDemo(ctx, args[0])
	case "load-demo":
		if len(args) != 1 {
			return merr.WrapErrParameterMissing("key", "usage: objgraph load-demo <key>")
		}
		return c.loadDemo(ctx, args[0])
	default:
		return merr.WrapErrParameterInvalidMsg("unknown command %q", name)
	}
}

func (c *command) inspect(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return merr.WrapErrIoFailed(path, err)
	}
	if bytes.HasPrefix(data, containerMagic) {
		container, err := c.app.NewContainer()
		if err != nil {
			return err
		}
		if data, err = container.Open(data); err != nil {
			return err
		}
	}
	env, err := wire.Decode(data)
	if err != nil {
		return err
	}
	return c.print(wire.Describe(env))
}

func (c *command) repository(ctx context.Context, finder schema.Finder) (*assetstore.Repository, error) {
	return c.app.OpenRepository(ctx, finder)
}

func (c *command) get(ctx context.Context, key string) error {
	repo, err := c.repository(ctx, nil)
	if err != nil {
		return err
	}
	defer repo.Close()
	env, err := repo.Envelope(ctx, key)
	if err != nil {
		return err
	}
	return c.print(wire.Describe(env))
}

func (c *command) list(ctx context.Context, prefix string) error {
	repo, err := c.repository(ctx, nil)
	if err != nil {
		return err
	}
	defer repo.Close()
	keys, err := repo.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Fprintln(c.out, key)
	}
	return nil
}

func (c *command) delete(ctx context.Context, key string) error {
	repo, err := c.repository(ctx, nil)
	if err != nil {
		return err
	}
	defer repo.Close()
	return repo.Delete(ctx, key)
}

func (c *command) putDemo(ctx context.Context, key string) error {
	reg, err := demo.NewRegistry(false)
	if err != nil {
		return err
	}
	repo, err := c.repository(ctx, reg)
	if err != nil {
		return err
	}
	defer repo.Close()
	scene := demo.NewScene(key, c.width)
	if err := repo.Save(ctx, key, scene); err != nil {
		return err
	}
	return c.print(map[string]any{
		"key":     key,
		"summary": demo.Summarize(scene),
		"stats":   repo.Stats(),
	})
}

func (c *command) loadDemo(ctx context.Context, key string) error {
	reg, err := demo.NewRegistry(true)
	if err != nil {
		return err
	}
	repo, err := c.repository(ctx, reg)
	if err != nil {
		return err
	}
	defer repo.Close()
	root, err := repo.Load(ctx, key)
	if err != nil {
		return err
	}
	scene, ok := root.(*demo.Scene)
	if !ok {
		return merr.WrapErrParameterInvalidMsg("asset %q is not a demo scene but %T", key, root)
	}
	return c.print(map[string]any{
		"key":     key,
		"name":    scene.Name,
		"summary": demo.Summarize(scene),
	})
}

func (c *command) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
