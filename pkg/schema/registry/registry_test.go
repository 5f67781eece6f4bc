package registry

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"

	"github.com/lk2023060901/objgraph-go/pkg/schema"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

type animal struct{ Name string }

type vec3 struct{ X, Y, Z float64 }

type mesh struct{ Points []vec3 }

type RegistrySuite struct {
	suite.Suite
	ctx context.Context

	animal *schema.ObjectSchema
	vec3   *schema.ObjectSchema
	mesh   *schema.ObjectSchema
}

func (s *RegistrySuite) SetupTest() {
	s.ctx = context.Background()
	s.animal = schema.Of[*animal]("Animal").Property("Name").MustBuild()
	s.vec3 = schema.Of[*vec3]("Vec3").Property("X").Property("Y").Property("Z").ValueType().MustBuild()
	s.mesh = schema.Of[*mesh]("Mesh").Property("Points").MustBuild()
}

func (s *RegistrySuite) TestNamed() {
	r := New()
	s.Require().NoError(r.Register(s.animal, "Animal"))

	got, id, ok := r.Classify(&animal{Name: "rex"})
	s.True(ok)
	s.Same(s.animal, got)
	s.Equal("Animal", id)

	got, id, ok = r.Classify(animal{Name: "by value"})
	s.True(ok)
	s.Same(s.animal, got)
	s.Equal("Animal", id)
	_, _, ok = r.Classify(&vec3{})
	s.False(ok)
	_, _, ok = r.Classify(nil)
	s.False(ok)

	resolved, err := r.Resolve(s.ctx, "Animal")
	s.NoError(err)
	s.Same(s.animal, resolved)

	resolved, err = r.Resolve(s.ctx, "Plant")
	s.NoError(err)
	s.Nil(resolved)

	s.ErrorIs(r.Register(s.animal, "Animal"), merr.ErrSchemaAlreadyRegistered)
	s.ErrorIs(r.Register(s.animal, "Beast"), merr.ErrSchemaAlreadyRegistered)
	s.ErrorIs(r.Register(s.vec3, ""), merr.ErrParameterMissing)
	s.ErrorIs(r.Register(&schema.ObjectSchema{Name: "untyped", Construct: func(...any) (any, error) { return nil, nil }}, "x"),
		merr.ErrSchemaInvalid)
	s.Equal(1, r.Len())
}

func (s *RegistrySuite) TestModuleExport() {
	r := New()
	s.Require().NoError(r.RegisterAsModuleExport(s.vec3, "", "Vec3"))
	s.Require().NoError(r.RegisterAsModuleExport(s.mesh, "geometry", "Mesh"))

	_, id, ok := r.Classify(&vec3{})
	s.True(ok)
	s.Equal(ModuleExportID{ExportName: "Vec3"}, id)

	got, err := r.Resolve(s.ctx, ModuleExportID{ExportName: "Vec3"})
	s.NoError(err)
	s.Same(s.vec3, got)

	// 解码后的模块导出标识是普通 map。
	got, err = r.Resolve(s.ctx, map[string]any{"module": "geometry", "exportName": "Mesh"})
	s.NoError(err)
	s.Same(s.mesh, got)

	got, err = r.Resolve(s.ctx, map[string]any{"exportName": "Mesh"})
	s.NoError(err)
	s.Nil(got)

	s.ErrorIs(r.RegisterAsModuleExport(s.animal, "geometry", "Mesh"), merr.ErrSchemaAlreadyRegistered)
	s.ErrorIs(r.RegisterAsModuleExport(s.animal, "geometry", ""), merr.ErrParameterMissing)
}

func (s *RegistrySuite) TestModuleLoader() {
	r := New()
	calls := atomic.NewInt32(0)
	s.Require().NoError(r.RegisterModule("zoo", func(ctx context.Context, module string) (map[string]*schema.ObjectSchema, error) {
		calls.Inc()
		time.Sleep(10 * time.Millisecond)
		return map[string]*schema.ObjectSchema{"Animal": s.animal}, nil
	}))
	s.ErrorIs(r.RegisterModule("zoo", nil), merr.ErrParameterMissing)
	s.ErrorIs(r.RegisterModule("", nil), merr.ErrParameterMissing)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Resolve(s.ctx, ModuleExportID{Module: "zoo", ExportName: "Animal"})
			s.NoError(err)
			s.Same(s.animal, got)
		}()
	}
	wg.Wait()
	s.Equal(int32(1), calls.Load())

	// 加载后的导出同样可用于分类。
	_, id, ok := r.Classify(&animal{})
	s.True(ok)
	s.Equal(ModuleExportID{Module: "zoo", ExportName: "Animal"}, id)

	got, err := r.Resolve(s.ctx, ModuleExportID{Module: "zoo", ExportName: "Missing"})
	s.NoError(err)
	s.Nil(got)
	s.Equal(int32(1), calls.Load())
}

func (s *RegistrySuite) TestModuleLoaderError() {
	r := New()
	s.Require().NoError(r.RegisterModule("broken", func(context.Context, string) (map[string]*schema.ObjectSchema, error) {
		return nil, errors.New("module unavailable")
	}))
	got, err := r.Resolve(s.ctx, ModuleExportID{Module: "broken", ExportName: "X"})
	s.Error(err)
	s.Nil(got)
}

func (s *RegistrySuite) TestFallbacks() {
	base := New()
	s.Require().NoError(base.Register(s.animal, "Animal"))
	layered := New(base)
	s.Require().NoError(layered.Register(s.vec3, "Vec3"))

	got, err := layered.Resolve(s.ctx, "Animal")
	s.NoError(err)
	s.Same(s.animal, got)

	_, id, ok := layered.Classify(&animal{})
	s.True(ok)
	s.Equal("Animal", id)

	extra := New()
	s.Require().NoError(extra.Register(s.mesh, "Mesh"))
	layered.AddFallbacks(extra)
	got, err = layered.Resolve(s.ctx, "Mesh")
	s.NoError(err)
	s.Same(s.mesh, got)

	got, err = base.Resolve(s.ctx, "Vec3")
	s.NoError(err)
	s.Nil(got)
}

func (s *RegistrySuite) TestIDsEqual() {
	s.True(IDsEqual("a", "a"))
	s.False(IDsEqual("a", "b"))
	s.True(IDsEqual(7, int64(7)))
	s.False(IDsEqual(7, "7"))
	s.True(IDsEqual(uint64(5), int64(5)))
	s.True(IDsEqual(uint(3), int8(3)))
	s.True(IDsEqual(uint64(math.MaxUint64), uint64(math.MaxUint64)))
	s.False(IDsEqual(uint64(math.MaxUint64), int64(-1)))
	s.False(IDsEqual(uint64(1<<63), int64(math.MinInt64)))
	s.True(IDsEqual(int64(math.MinInt64), int64(math.MinInt64)))
	s.False(IDsEqual(uint64(5), "5"))
	s.True(IDsEqual(ModuleExportID{Module: "m", ExportName: "E"}, map[string]any{"module": "m", "exportName": "E"}))
	s.True(IDsEqual(ModuleExportID{ExportName: "E"}, map[string]any{"exportName": "E"}))
	s.False(IDsEqual(ModuleExportID{Module: "m", ExportName: "E"}, map[string]any{"exportName": "E"}))
	s.False(IDsEqual(ModuleExportID{ExportName: "E"}, "E"))
	s.False(IDsEqual(nil, nil))
}

func (s *RegistrySuite) TestRetryResolver() {
	failures := atomic.NewInt32(2)
	inner := schema.ResolverFunc(func(context.Context, schema.ID) (*schema.ObjectSchema, error) {
		if failures.Dec() >= 0 {
			return nil, errors.New("transient")
		}
		return s.animal, nil
	})
	r := NewRetryResolver(inner, WithAttempts(3), WithIntervals(time.Millisecond, 5*time.Millisecond))
	got, err := r.Resolve(s.ctx, "Animal")
	s.NoError(err)
	s.Same(s.animal, got)

	failures.Store(10)
	_, err = r.Resolve(s.ctx, "Animal")
	s.EqualError(err, "transient")

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	failures.Store(10)
	slow := NewRetryResolver(inner, WithAttempts(5), WithIntervals(time.Hour, time.Hour))
	_, err = slow.Resolve(ctx, "Animal")
	s.Error(err)
}

func TestRegistry(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}
