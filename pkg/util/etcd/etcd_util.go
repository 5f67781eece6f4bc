package etcd

import (
	"context"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/lk2023060901/objgraph-go/pkg/log"
	"github.com/lk2023060901/objgraph-go/pkg/util/logutil"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

const (
	defaultDialTimeout   = 5 * time.Second
	maxCallRecvMsgSize   = 64 * 1024 * 1024
	healthCheckKeyPrefix = "health"
)

// GetRemoteEtcdClient 创建连接外部 etcd 集群的客户端。
func GetRemoteEtcdClient(endpoints []string) (*clientv3.Client, error) {
	return GetRemoteEtcdClientWithTimeout(endpoints, defaultDialTimeout)
}

// GetRemoteEtcdClientWithTimeout 与 GetRemoteEtcdClient 相同，允许指定拨号超时。
func GetRemoteEtcdClientWithTimeout(endpoints []string, dialTimeout time.Duration) (*clientv3.Client, error) {
	if len(endpoints) == 0 {
		return nil, merr.WrapErrParameterMissing("etcd endpoints")
	}
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
		DialOptions: append(logutil.DialOptions(),
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(maxCallRecvMsgSize),
			),
		),
		Logger: log.L().Named("etcd-client"),
	})
	if err != nil {
		log.Warn("failed to create etcd client", zap.Strings("endpoints", endpoints), zap.Error(err))
		return nil, merr.WrapErrIoFailedReason(err.Error(), "connect etcd")
	}
	return cli, nil
}

// HealthCheck 通过一次读请求确认 etcd 可用。
func HealthCheck(ctx context.Context, cli *clientv3.Client) error {
	ctx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	if _, err := cli.Get(ctx, healthCheckKeyPrefix, clientv3.WithCountOnly()); err != nil {
		return merr.WrapErrIoFailed(healthCheckKeyPrefix, err)
	}
	return nil
}
