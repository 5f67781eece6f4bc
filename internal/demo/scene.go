// Package demo 提供一组场景资源类型及其 schema，供命令行与示例程序使用。
package demo

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/objgraph-go/pkg/schema"
	"github.com/lk2023060901/objgraph-go/pkg/schema/registry"
)

// RenderModule 为渲染资源 schema 所在的模块名。
const RenderModule = "render"

type Scene struct {
	Name      string
	Root      *Node
	Materials []*Material
}

type Node struct {
	Name     string
	Position Vec3
	Parent   *Node
	Children []*Node
	Mesh     *Mesh
	Material *Material
}

// Vec3 按值语义序列化，每个使用处得到独立副本。
type Vec3 struct {
	X, Y, Z float64
}

type Mesh struct {
	Vertices []float64
	Indices  []uint32
}

// Material 的名称只能通过构造函数设置。
type Material struct {
	name  string
	Color Vec3
}

func NewMaterial(name string) *Material {
	return &Material{name: name}
}

func (m *Material) Name() string {
	return m.name
}

var sceneSchema = schema.Of[*Scene]("Scene").
	Property("Name").Property("Root").Optional("Materials").
	MustBuild()

var nodeSchema = schema.Of[*Node]("Node").
	Property("Name").Property("Position").
	Optional("Parent").Optional("Children").Optional("Mesh").Optional("Material").
	MustBuild()

var vec3Schema = schema.Of[*Vec3]("Vec3").
	Property("X").Property("Y").Property("Z").
	ValueType().
	MustBuild()

var meshSchema = schema.Of[*Mesh]("Mesh").
	Property("Vertices").Property("Indices").
	MustBuild()

var materialSchema = schema.Of[*Material]("Material").
	Reconstruct(func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, errors.Newf("material expects 1 constructor argument, got %d", len(args))
		}
		name, ok := args[0].(string)
		if !ok {
			return nil, errors.Newf("material name must be a string, got %T", args[0])
		}
		return NewMaterial(name), nil
	}).
	ConstructArguments(func(v any) []any {
		return []any{v.(*Material).name}
	}).
	Property("Color").
	MustBuild()

func renderExports() map[string]*schema.ObjectSchema {
	return map[string]*schema.ObjectSchema{
		"Vec3":     vec3Schema,
		"Mesh":     meshSchema,
		"Material": materialSchema,
	}
}

// NewRegistry 创建包含全部场景 schema 的注册表。
//
// lazy 为 true 时渲染模块只在解析到其导出时才加载，这样的注册表只能用于读取；
// 写入端需要在分类之前知道全部类型，应使用 lazy 为 false 的注册表。
func NewRegistry(lazy bool) (*registry.Registry, error) {
	reg := registry.New()
	if err := reg.Register(sceneSchema, "Scene"); err != nil {
		return nil, err
	}
	if err := reg.Register(nodeSchema, "Node"); err != nil {
		return nil, err
	}
	if lazy {
		err := reg.RegisterModule(RenderModule, func(ctx context.Context, module string) (map[string]*schema.ObjectSchema, error) {
			return renderExports(), nil
		})
		return reg, err
	}
	for name, s := range renderExports() {
		if err := reg.RegisterAsModuleExport(s, RenderModule, name); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// NewScene 构造一个有 width 个子节点的场景，子节点共享同一网格并交替使用两种材质。
func NewScene(name string, width int) *Scene {
	cube := &Mesh{
		Vertices: []float64{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0},
		Indices:  []uint32{0, 1, 2, 0, 2, 3},
	}
	stone := NewMaterial("stone")
	stone.Color = Vec3{0.5, 0.5, 0.5}
	moss := NewMaterial("moss")
	moss.Color = Vec3{0.2, 0.6, 0.1}

	root := &Node{Name: name + "/root"}
	for i := 0; i < width; i++ {
		child := &Node{
			Name:     fmt.Sprintf("%s/child-%d", name, i),
			Position: Vec3{X: float64(i)},
			Parent:   root,
			Mesh:     cube,
			Material: stone,
		}
		if i%2 == 1 {
			child.Material = moss
		}
		root.Children = append(root.Children, child)
	}
	return &Scene{
		Name:      name,
		Root:      root,
		Materials: []*Material{stone, moss},
	}
}

// Summary 统计场景中不同实例的数量。
type Summary struct {
	Nodes     int `json:"nodes"`
	Meshes    int `json:"meshes"`
	Materials int `json:"materials"`
	// Consistent 为 true 表示所有子节点的 Parent 都指回父节点。
	Consistent bool `json:"consistent"`
}

func Summarize(s *Scene) Summary {
	sum := Summary{Consistent: true}
	if s == nil || s.Root == nil {
		return sum
	}
	meshes := map[*Mesh]struct{}{}
	materials := map[*Material]struct{}{}
	for _, m := range s.Materials {
		materials[m] = struct{}{}
	}
	var walk func(n *Node)
	walk = func(n *Node) {
		sum.Nodes++
		if n.Mesh != nil {
			meshes[n.Mesh] = struct{}{}
		}
		if n.Material != nil {
			materials[n.Material] = struct{}{}
		}
		for _, c := range n.Children {
			if c.Parent != n {
				sum.Consistent = false
			}
			walk(c)
		}
	}
	walk(s.Root)
	sum.Meshes = len(meshes)
	sum.Materials = len(materials)
	return sum
}
