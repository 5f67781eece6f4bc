package log

import (
	"context"

	"go.uber.org/atomic"
)

// Binder 嵌入到长期存活的组件中，保存组件自己的 logger。
type Binder struct {
	logger atomic.Pointer[MLogger]
}

func (b *Binder) SetLogger(logger *MLogger) {
	b.logger.Store(logger)
}

// Logger 返回绑定的 logger，未绑定时退回全局 logger。
func (b *Binder) Logger() *MLogger {
	if l := b.logger.Load(); l != nil {
		return l
	}
	return With()
}

// LoggerFrom 优先使用 ctx 携带的 logger，使 trace 字段得以保留。
func (b *Binder) LoggerFrom(ctx context.Context) *MLogger {
	if ctx != nil {
		if l, ok := ctx.Value(CtxLogKey).(*MLogger); ok {
			return l
		}
	}
	return b.Logger()
}
