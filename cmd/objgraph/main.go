package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/lk2023060901/objgraph-go/application"
	"github.com/lk2023060901/objgraph-go/pkg/log"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

const usage = `Usage: objgraph [flags] <command> [args]

Commands:
  inspect <file>          decode a blob or asset container file and print it as JSON
  get <key>               print the envelope of a stored asset as JSON
  list [prefix]           list stored asset keys
  delete <key>            delete a stored asset
  put-demo <key>          save a demo scene graph under key
  load-demo <key>         load a demo scene graph and print its summary

Flags:
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "objgraph: %v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	config string
	width  int
	set    *pflag.FlagSet
}

func newFlags(stderr io.Writer) *cliFlags {
	f := &cliFlags{set: pflag.NewFlagSet("objgraph", pflag.ContinueOnError)}
	f.set.SetOutput(stderr)
	f.set.StringVar(&f.config, "config", "", "path of the config file (yaml or json)")
	f.set.String("store-kind", "", "asset store backend: file or etcd")
	f.set.String("store-root", "", "root directory of the file store")
	f.set.StringSlice("etcd-endpoints", nil, "endpoints of the etcd store")
	f.set.Bool("etcd-embed", false, "start an embedded etcd server")
	f.set.String("compression", "", "container compression: none or zstd")
	f.set.String("log-level", "", "log level")
	f.set.IntVar(&f.width, "width", 8, "number of child nodes in the demo scene")
	f.set.Usage = func() {
		fmt.Fprint(stderr, usage)
		f.set.PrintDefaults()
	}
	return f
}

var flagBindings = map[string]string{
	"store.kind":           "store-kind",
	"store.root":           "store-root",
	"store.etcd.endpoints": "etcd-endpoints",
	"store.etcd.embed":     "etcd-embed",
	"codec.compression":    "compression",
	"log.level":            "log-level",
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := newFlags(stderr)
	if err := flags.set.Parse(args); err != nil {
		return err
	}
	rest := flags.set.Args()
	if len(rest) == 0 {
		flags.set.Usage()
		return merr.WrapErrParameterMissing("command")
	}

	opts := []application.Option{
		application.WithFlags(flags.set, flagBindings),
		application.WithDefaults(map[string]any{"log.level": "warn"}),
	}
	if flags.config != "" {
		opts = append(opts, application.WithConfigPath(flags.config))
	}
	app := application.New(opts...)
	if err := app.Run(); err != nil {
		return err
	}
	defer app.Close()

	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Debug(fmt.Sprintf(format, args...))
	}))
	if err == nil {
		defer undo()
	}

	cmd := &command{app: app, out: stdout, width: flags.width}
	return cmd.dispatch(ctx, rest[0], rest[1:])
}
