package etcd

import (
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/server/v3/embed"
	"go.etcd.io/etcd/server/v3/etcdserver/api/v3client"
	"go.uber.org/zap"

	"github.com/lk2023060901/objgraph-go/pkg/log"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

// 嵌入式 etcd 服务单例。
var (
	initOnce   sync.Once
	closeOnce  sync.Once
	etcdServer *embed.Etcd
)

const embedReadyTimeout = 30 * time.Second

// EmbedConfig 描述嵌入式 etcd 的启动参数。
type EmbedConfig struct {
	// ConfigPath 非空时从文件加载 etcd 配置，其余字段覆盖文件中的对应项。
	ConfigPath string
	DataDir    string
	LogPath    string
	LogLevel   string
	// ClientURL/PeerURL 为空时使用 etcd 默认监听地址。
	ClientURL string
	PeerURL   string
}

// GetEmbedEtcdClient 返回嵌入式 etcd 服务对应的 v3 客户端。
func GetEmbedEtcdClient() (*clientv3.Client, error) {
	if etcdServer == nil {
		return nil, merr.WrapErrServiceInternal("embedded etcd server is not initialized")
	}
	return v3client.New(etcdServer.Server), nil
}

// InitEtcdServer 初始化嵌入式 etcd 单例服务，并等待其就绪。
func InitEtcdServer(useEmbedEtcd bool, config EmbedConfig) error {
	if !useEmbedEtcd {
		return nil
	}
	var initError error
	initOnce.Do(func() {
		var cfg *embed.Config
		if len(config.ConfigPath) > 0 {
			cfgFromFile, err := embed.ConfigFromFile(config.ConfigPath)
			if err != nil {
				initError = err
				return
			}
			cfg = cfgFromFile
		} else {
			cfg = embed.NewConfig()
		}
		cfg.Dir = config.DataDir
		if config.LogPath != "" {
			cfg.LogOutputs = []string{config.LogPath}
		}
		if config.LogLevel != "" {
			cfg.LogLevel = config.LogLevel
		}
		if err := applyURLs(cfg, config); err != nil {
			initError = err
			return
		}

		e, err := embed.StartEtcd(cfg)
		if err != nil {
			log.Error("failed to init embedded Etcd server", zap.Error(err))
			initError = err
			return
		}
		select {
		case <-e.Server.ReadyNotify():
		case <-time.After(embedReadyTimeout):
			e.Server.Stop()
			e.Close()
			initError = errors.New("embedded etcd server took too long to start")
			return
		}
		etcdServer = e
		log.Info("finish init Etcd config",
			zap.String("path", config.ConfigPath),
			zap.String("data", config.DataDir),
			zap.Strings("clientURLs", lo.Map(cfg.ListenClientUrls, func(u url.URL, _ int) string {
				return u.String()
			})))
	})
	return initError
}

func applyURLs(cfg *embed.Config, config EmbedConfig) error {
	if config.ClientURL != "" {
		u, err := url.Parse(config.ClientURL)
		if err != nil {
			return errors.Wrap(err, "parse client url")
		}
		cfg.ListenClientUrls = []url.URL{*u}
		cfg.AdvertiseClientUrls = []url.URL{*u}
	}
	if config.PeerURL != "" {
		u, err := url.Parse(config.PeerURL)
		if err != nil {
			return errors.Wrap(err, "parse peer url")
		}
		cfg.ListenPeerUrls = []url.URL{*u}
		cfg.AdvertisePeerUrls = []url.URL{*u}
		cfg.InitialCluster = cfg.InitialClusterFromName(cfg.Name)
	}
	return nil
}

func HasServer() bool {
	return etcdServer != nil
}

// StopEtcdServer 关闭嵌入式 etcd 单例服务。
func StopEtcdServer() {
	if etcdServer != nil {
		closeOnce.Do(func() {
			etcdServer.Close()
		})
	}
}
