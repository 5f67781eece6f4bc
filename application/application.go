package application

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/lk2023060901/objgraph-go/internal/storage/codec"
	"github.com/lk2023060901/objgraph-go/internal/storage/compressor"
	"github.com/lk2023060901/objgraph-go/internal/storage/crypto"
	"github.com/lk2023060901/objgraph-go/pkg/assetstore"
	zlog "github.com/lk2023060901/objgraph-go/pkg/log"
	"github.com/lk2023060901/objgraph-go/pkg/metrics"
	"github.com/lk2023060901/objgraph-go/pkg/schema"
	etcdutil "github.com/lk2023060901/objgraph-go/pkg/util/etcd"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
	zviper "github.com/lk2023060901/objgraph-go/pkg/util/viper"
)

const (
	DefaultConfigPath = "./objgraph.yaml"
	ConfigPathEnv     = "OBJGRAPH_CONFIG_FILE_PATH"
)

// Application 持有配置，并按配置创建存储、容器编解码等公共依赖。
type Application struct {
	src        *zviper.Config
	cfg        *Config
	configPath string
	flags      *pflag.FlagSet
	bindings   map[string]string
	defaults   map[string]any

	loggers map[string]*zlog.MLogger

	store      assetstore.Store
	compressor compressor.Compressor
	embedEtcd  bool
}

type Option func(*Application)

// WithConfigPath 显式指定配置文件，优先级高于环境变量与默认路径。
func WithConfigPath(path string) Option {
	return func(a *Application) {
		a.configPath = path
	}
}

// WithFlags 将命令行参数绑定到配置键，bindings 为 配置键 -> 参数名。
func WithFlags(flags *pflag.FlagSet, bindings map[string]string) Option {
	return func(a *Application) {
		a.flags = flags
		a.bindings = bindings
	}
}

// WithDefaults 覆盖内置默认值，仍低于配置文件、环境变量与命令行参数。
func WithDefaults(defaults map[string]any) Option {
	return func(a *Application) {
		a.defaults = defaults
	}
}

// New 创建 Application。
func New(opts ...Option) *Application {
	a := &Application{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run 加载配置并初始化日志。配置文件路径按以下优先级确定：
//  1. 默认：./objgraph.yaml（不存在时只使用默认值）
//  2. 环境变量：OBJGRAPH_CONFIG_FILE_PATH
//  3. 命令行：--config <path> 或 --config=<path>
//  4. WithConfigPath
func (a *Application) Run() error {
	path, explicit, err := ResolveConfigPath(os.Args[1:])
	if err != nil {
		return err
	}
	if a.configPath != "" {
		path, explicit = a.configPath, true
	}

	if err := a.loadConfig(path, explicit); err != nil {
		return err
	}
	if err := a.initLogging(); err != nil {
		return err
	}
	metrics.Register(prometheus.DefaultRegisterer)
	return nil
}

// ResolveConfigPath 从参数与环境变量中确定配置文件路径，explicit 表示路径由用户指定。
func ResolveConfigPath(args []string) (path string, explicit bool, err error) {
	path = DefaultConfigPath
	if envPath := strings.TrimSpace(os.Getenv(ConfigPathEnv)); envPath != "" {
		path, explicit = envPath, true
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return "", false, merr.WrapErrParameterMissing("value after --config")
			}
			path, explicit = args[i+1], true
			i++
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			if val := strings.TrimPrefix(arg, "--config="); val != "" {
				path, explicit = val, true
			}
		}
	}
	return path, explicit, nil
}

// Config 返回解码后的配置。
func (a *Application) Config() *Config {
	return a.cfg
}

// Source 返回原始配置源。
func (a *Application) Source() *zviper.Config {
	return a.src
}

// Logger 返回配置中 logging.<name> 对应的 logger，未配置时退回全局 logger。
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return &zlog.MLogger{Logger: zlog.L()}
}

func (a *Application) loadConfig(path string, explicit bool) error {
	src := NewConfigSource()
	src.SetDefaults(a.defaults)
	if _, err := os.Stat(path); err == nil || explicit {
		if err := src.LoadFile(path); err != nil {
			return err
		}
	}
	for key, name := range a.bindings {
		flag := a.flags.Lookup(name)
		if flag == nil {
			return merr.WrapErrParameterInvalidMsg("unknown flag %q bound to %q", name, key)
		}
		if err := src.BindFlag(key, flag); err != nil {
			return errors.Wrapf(err, "bind flag %q", name)
		}
	}

	cfg, err := decodeConfig(src)
	if err != nil {
		return errors.Wrapf(err, "decode config %q", path)
	}
	a.src = src
	a.cfg = cfg
	return nil
}

// initLogging 初始化全局 logger，以及 logging 下的具名 logger。
//
// 示例：
//
//	logging:
//	  registry:
//	    level: debug
//	    file:
//	      rootpath: ./logs
//	      filename: registry.log
func (a *Application) initLogging() error {
	logger, props, err := zlog.InitLogger(&a.cfg.Log)
	if err != nil {
		return errors.Wrap(err, "init global logger")
	}
	zlog.ReplaceGlobals(logger, props)

	raw := make(map[string]zlog.Config)
	if err := a.src.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return errors.Wrapf(err, "init module logger %q", name)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger.With(zlog.FieldModule(name))}
	}
	return nil
}

// OpenStore 按 store 配置创建存储后端，重复调用返回同一实例。
func (a *Application) OpenStore(ctx context.Context) (assetstore.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if a.cfg == nil {
		return nil, merr.WrapErrServiceInternal("application is not running")
	}

	sc := a.cfg.Store
	var (
		store assetstore.Store
		err   error
	)
	switch strings.ToLower(sc.Kind) {
	case "", StoreKindFile:
		store, err = assetstore.NewFileStore(sc.Root)
	case StoreKindEtcd:
		store, err = a.openEtcdStore(ctx, sc.Etcd)
	default:
		err = merr.WrapErrParameterInvalidMsg("unknown store kind %q", sc.Kind)
	}
	if err != nil {
		return nil, err
	}
	zlog.Ctx(ctx).Info("asset store opened", zap.String("backend", store.Backend()))
	a.store = store
	return store, nil
}

func (a *Application) openEtcdStore(ctx context.Context, ec EtcdConfig) (assetstore.Store, error) {
	if ec.Embed {
		err := etcdutil.InitEtcdServer(true, etcdutil.EmbedConfig{
			DataDir:   ec.DataDir,
			LogLevel:  "warn",
			ClientURL: ec.ClientURL,
			PeerURL:   ec.PeerURL,
		})
		if err != nil {
			return nil, err
		}
		a.embedEtcd = true
		cli, err := etcdutil.GetEmbedEtcdClient()
		if err != nil {
			return nil, err
		}
		return assetstore.NewEtcdStore(cli, ec.Prefix, assetstore.WithOwnedClient())
	}

	cli, err := etcdutil.GetRemoteEtcdClientWithTimeout(ec.Endpoints, ec.DialTimeout)
	if err != nil {
		return nil, err
	}
	if err := etcdutil.HealthCheck(ctx, cli); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return assetstore.NewEtcdStore(cli, ec.Prefix, assetstore.WithOwnedClient())
}

// NewContainer 按 codec 配置创建资源容器编解码器。
func (a *Application) NewContainer() (assetstore.Container, error) {
	if a.cfg == nil {
		return nil, merr.WrapErrServiceInternal("application is not running")
	}
	cc := a.cfg.Codec

	comp, err := compressor.New(cc.Compression, cc.MinCompressSize, uint64(cc.MaxSize))
	if err != nil {
		return nil, err
	}
	_, nop := comp.(compressor.NopCompressor)

	opts := codec.Options{
		Compressor:        comp,
		EnableCompression: !nop,
		MaxSize:           cc.MaxSize,
	}
	if cc.Encryption.Enabled {
		enc, err := crypto.NewAESGCMHMACCodecFromHex(cc.Encryption.EncKeyHex, cc.Encryption.MacKeyHex)
		if err != nil {
			comp.Close()
			return nil, err
		}
		opts.Encryptor = enc
		opts.EnableEncryption = true
	}
	c, err := codec.New(opts)
	if err != nil {
		comp.Close()
		return nil, err
	}
	if a.compressor != nil {
		a.compressor.Close()
	}
	a.compressor = comp
	return c, nil
}

// OpenRepository 组合存储、容器与 finder，得到可直接保存/加载对象图的 Repository。
// store 仍由 Application 持有，关闭 Repository 不影响其它调用方。
func (a *Application) OpenRepository(ctx context.Context, finder schema.Finder) (*assetstore.Repository, error) {
	store, err := a.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	container, err := a.NewContainer()
	if err != nil {
		return nil, err
	}
	repo, err := assetstore.NewRepository(store,
		assetstore.WithFinder(finder),
		assetstore.WithContainer(container),
		assetstore.WithSharedStore(),
		assetstore.WithResolveConcurrency(a.cfg.Graph.ResolveConcurrency),
		assetstore.WithBatchConcurrency(a.cfg.Graph.BatchConcurrency))
	if err != nil {
		return nil, err
	}
	repo.SetLogger(a.Logger("assetstore"))
	return repo, nil
}

// Close 释放 Application 创建的全部依赖。
func (a *Application) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.compressor != nil {
		a.compressor.Close()
		a.compressor = nil
	}
	if a.embedEtcd {
		etcdutil.StopEtcdServer()
		a.embedEtcd = false
	}
	_ = zlog.Sync()
	return merr.Combine(errs...)
}
