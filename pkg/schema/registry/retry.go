package registry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/lk2023060901/objgraph-go/pkg/log"
	"github.com/lk2023060901/objgraph-go/pkg/schema"
)

// RetryResolver 在内层 Resolver 返回错误时按指数退避重试。
// “未找到”不是错误，不会重试；上下文取消后立即返回最近一次错误。
type RetryResolver struct {
	inner    schema.Resolver
	attempts int

	initialInterval time.Duration
	maxInterval     time.Duration
}

type RetryOption func(*RetryResolver)

// WithAttempts 设置最大尝试次数（含首次）。
func WithAttempts(n int) RetryOption {
	return func(r *RetryResolver) {
		if n > 0 {
			r.attempts = n
		}
	}
}

func WithIntervals(initial, max time.Duration) RetryOption {
	return func(r *RetryResolver) {
		r.initialInterval = initial
		r.maxInterval = max
	}
}

func NewRetryResolver(inner schema.Resolver, opts ...RetryOption) *RetryResolver {
	r := &RetryResolver{
		inner:           inner,
		attempts:        3,
		initialInterval: 50 * time.Millisecond,
		maxInterval:     time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RetryResolver) Resolve(ctx context.Context, id schema.ID) (*schema.ObjectSchema, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.initialInterval
	bo.MaxInterval = r.maxInterval
	bo.MaxElapsedTime = 0
	bo.Reset()

	var lastErr error
	for i := 0; i < r.attempts; i++ {
		if lastErr != nil {
			next := bo.NextBackOff()
			log.Ctx(ctx).Warn("failed to resolve schema, wait for retry...",
				zap.Any("id", id), zap.Int("attempt", i), zap.Duration("nextBackoffInterval", next), zap.Error(lastErr))
			select {
			case <-time.After(next):
			case <-ctx.Done():
				return nil, lastErr
			}
		}
		s, err := r.inner.Resolve(ctx, id)
		if err == nil {
			return s, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
