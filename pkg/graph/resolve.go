package graph

import (
	"context"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/lk2023060901/objgraph-go/pkg/log"
	"github.com/lk2023060901/objgraph-go/pkg/schema"
	"github.com/lk2023060901/objgraph-go/pkg/util/conc"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

// resolveSchemas 并发解析 schema 表中的全部标识，结果与 ids 一一对应。
// 任一标识解析失败或不存在时整体失败。
func resolveSchemas(ctx context.Context, resolver schema.Resolver, ids []any, concurrency int) ([]*schema.ObjectSchema, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pool, err := conc.NewPoolE[*schema.ObjectSchema](lo.Min([]int{concurrency, len(ids)}), conc.WithConcealPanic(true))
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	futures := make([]*conc.Future[*schema.ObjectSchema], 0, len(ids))
	for _, id := range ids {
		id := id
		futures = append(futures, pool.Submit(func() (*schema.ObjectSchema, error) {
			s, err := resolver.Resolve(ctx, id)
			if err != nil {
				return nil, merr.WrapErrSchemaResolveFailed(id, err)
			}
			if s == nil {
				return nil, merr.WrapErrSchemaNotFound(id)
			}
			return s, nil
		}))
	}

	if err := conc.AwaitAll(futures...); err != nil {
		log.Ctx(ctx).Warn("failed to resolve schemas", zap.Int("schemas", len(ids)), zap.Error(err))
		return nil, err
	}
	return lo.Map(futures, func(f *conc.Future[*schema.ObjectSchema], _ int) *schema.ObjectSchema {
		return f.Value()
	}), nil
}
