// Package meshkernel implements the kernel.Kernel interface on triangle
// meshes, with booleans computed by the csg pipeline.
package meshkernel

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"

	"github.com/chazu/carve/pkg/csg"
	"github.com/chazu/carve/pkg/kernel"
	"github.com/chazu/carve/pkg/model"
)

// Compile-time interface check.
var _ kernel.Kernel = (*MeshKernel)(nil)

// DefaultSDFCells is the marching cubes resolution for rounded boxes.
const DefaultSDFCells = 64

// meshSolid wraps a model.Model to implement kernel.Solid.
type meshSolid struct {
	m *model.Model
}

// BoundingBox returns the axis-aligned bounding box.
func (s *meshSolid) BoundingBox() (min, max [3]float64) {
	bb := s.m.Bounds()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// MeshKernel implements kernel.Kernel on model.Model.
type MeshKernel struct {
	log      *zap.Logger
	csgOpts  []csg.Option
	sdfCells int
}

// Option configures a MeshKernel.
type Option func(*MeshKernel)

// WithCSGOptions passes options to every boolean.
func WithCSGOptions(opts ...csg.Option) Option {
	return func(k *MeshKernel) { k.csgOpts = append(k.csgOpts, opts...) }
}

// WithSDFCells sets the marching cubes resolution for rounded boxes.
func WithSDFCells(n int) Option {
	return func(k *MeshKernel) {
		if n > 0 {
			k.sdfCells = n
		}
	}
}

// WithLogger sets the kernel logger.
func WithLogger(l *zap.Logger) Option {
	return func(k *MeshKernel) {
		if l != nil {
			k.log = l
		}
	}
}

// New returns a new MeshKernel.
func New(opts ...Option) *MeshKernel {
	k := &MeshKernel{log: zap.NewNop(), sdfCells: DefaultSDFCells}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Model extracts the mesh behind a solid created by a MeshKernel.
func Model(s kernel.Solid) (*model.Model, error) {
	ms, ok := s.(*meshSolid)
	if !ok {
		return nil, fmt.Errorf("meshkernel: foreign solid %T", s)
	}
	return ms.m, nil
}

// unwrap extracts the underlying model from a kernel.Solid.
func unwrap(s kernel.Solid) *model.Model {
	return s.(*meshSolid).m
}

// wrap creates a kernel.Solid from a model.
func wrap(m *model.Model) kernel.Solid {
	return &meshSolid{m: m}
}

func wrapErr(m *model.Model, err error) (kernel.Solid, error) {
	if err != nil {
		return nil, err
	}
	return wrap(m), nil
}

// Box creates a box with its minimum corner at the origin, so that
// placement translations position the corner directly.
func (k *MeshKernel) Box(x, y, z float64) (kernel.Solid, error) {
	return wrapErr(model.Box(v3.Vec{X: x, Y: y, Z: z}))
}

// RoundedBox creates a box with rounded edges by tessellating a signed
// distance field. Like Box, its minimum corner is at the origin.
func (k *MeshKernel) RoundedBox(x, y, z, round float64) (kernel.Solid, error) {
	return wrapErr(model.RoundedBox(v3.Vec{X: x, Y: y, Z: z}, round, k.sdfCells))
}

// Cylinder creates a faceted cylinder standing on the z=0 plane.
func (k *MeshKernel) Cylinder(height, radius float64, segments int) (kernel.Solid, error) {
	return wrapErr(model.Cylinder(height, radius, segments))
}

// Sphere creates a UV sphere centered at the origin.
func (k *MeshKernel) Sphere(radius float64, segments int) (kernel.Solid, error) {
	return wrapErr(model.Sphere(radius, segments))
}

// Union returns the union of two solids.
func (k *MeshKernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	return k.Combine(a, b, csg.Union)
}

// Difference returns the difference a - b. The kept part of b lines the
// cavity, so its normals are inverted.
func (k *MeshKernel) Difference(a, b kernel.Solid) (kernel.Solid, error) {
	return k.Combine(a, b, csg.Subtract)
}

// Intersection returns the intersection of two solids.
func (k *MeshKernel) Intersection(a, b kernel.Solid) (kernel.Solid, error) {
	return k.Combine(a, b, csg.Intersect)
}

// Combine applies any keep-flag operation. Operands lining a cavity are
// flipped.
func (k *MeshKernel) Combine(a, b kernel.Solid, op csg.Operation) (kernel.Solid, error) {
	first := csg.NewInput(unwrap(a))
	second := csg.NewInput(unwrap(b))
	first.InvertNormals, second.InvertNormals = op.Inversions()

	opts := append([]csg.Option{csg.WithLogger(k.log)}, k.csgOpts...)
	res, err := csg.Compute(first, second, op, opts...)
	if err != nil {
		return nil, fmt.Errorf("meshkernel: %s: %w", op, err)
	}
	k.log.Debug("boolean",
		zap.Stringer("op", op),
		zap.Int("first", res.First.TriangleCount()),
		zap.Int("second", res.Second.TriangleCount()),
		zap.Int("cutEdges", len(res.CutEdges)),
	)
	return wrap(model.Merge(res.First, res.Second).Compact()), nil
}

// Translate moves a solid by (x, y, z).
func (k *MeshKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return wrap(unwrap(s).Transform(m))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *MeshKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return wrap(unwrap(s).Transform(m))
}

// ToMesh flattens a solid into a render mesh with one vertex per corner.
func (k *MeshKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	m := unwrap(s)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("meshkernel: %w", err)
	}

	numVerts := len(m.Triangles) * 3
	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range m.Triangles {
		for j := 0; j < 3; j++ {
			v := m.Positions[tri.Vertex[j]]
			n := m.Normals[tri.Normal[j]]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, float32(n.X), float32(n.Y), float32(n.Z))
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
