package logutil

import (
	"context"
	"strconv"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/lk2023060901/objgraph-go/pkg/log"
)

const (
	clientRequestIDKey   = "client_request_id"
	clientRequestMsecKey = "client-request-msec"
)

// slowCallThreshold 以上的调用以 Info 级别记录。
var slowCallThreshold = 500 * time.Millisecond

// DialOptions 返回注入日志拦截器的拨号选项，用于 etcd 等 gRPC 客户端。
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithUnaryInterceptor(grpc_middleware.ChainUnaryClient(UnaryTraceLoggerInterceptor)),
		grpc.WithStreamInterceptor(grpc_middleware.ChainStreamClient(StreamTraceLoggerInterceptor)),
	}
}

// UnaryTraceLoggerInterceptor 把 TraceID 与请求时间写入 outgoing metadata，并记录调用耗时与错误。
func UnaryTraceLoggerInterceptor(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	start := time.Now()
	ctx = withTraceMetadata(ctx, start)
	err := invoker(ctx, method, req, reply, cc, opts...)
	logCall(ctx, method, start, err)
	return err
}

// StreamTraceLoggerInterceptor 与 UnaryTraceLoggerInterceptor 相同，只记录建立流的结果。
func StreamTraceLoggerInterceptor(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	start := time.Now()
	ctx = withTraceMetadata(ctx, start)
	stream, err := streamer(ctx, desc, cc, method, opts...)
	logCall(ctx, method, start, err)
	return stream, err
}

func withTraceMetadata(ctx context.Context, now time.Time) context.Context {
	pairs := []string{clientRequestMsecKey, strconv.FormatInt(now.UnixMilli(), 10)}
	if traceID := trace.SpanContextFromContext(ctx).TraceID(); traceID.IsValid() {
		pairs = append(pairs, clientRequestIDKey, traceID.String())
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

func logCall(ctx context.Context, method string, start time.Time, err error) {
	cost := time.Since(start)
	logger := log.Ctx(ctx).With(zap.String("method", method), zap.Duration("cost", cost))
	switch {
	case err != nil:
		logger.Warn("grpc call failed", zap.Error(err))
	case cost >= slowCallThreshold:
		logger.Info("slow grpc call")
	default:
		logger.Debug("grpc call done")
	}
}

// GetClientReqUnixmsec 从 outgoing metadata 中读取请求时间戳（毫秒）。
func GetClientReqUnixmsec(ctx context.Context) (int64, bool) {
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		return -1, false
	}
	values := GetMetadata(md, clientRequestMsecKey)
	if len(values) < 1 {
		return -1, false
	}
	msec, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return -1, false
	}
	return msec, true
}

func GetMetadata(md metadata.MD, keys ...string) []string {
	var result []string
	for _, key := range keys {
		if values := md.Get(key); len(values) > 0 {
			result = append(result, values...)
		}
	}
	return result
}
