// Package sdfx implements kernel.Kernel on signed distance fields from the
// github.com/deadsy/sdfx CAD library. Booleans are exact on the fields and
// only approximated when ToMesh runs marching cubes, so results serve as a
// smooth reference for the mesh kernel.
package sdfx

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"

	"github.com/chazu/carve/pkg/kernel"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 200

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	cells int
	log   *zap.Logger
}

// Option configures an SdfxKernel.
type Option func(*SdfxKernel)

// WithMeshCells sets the marching cubes resolution along the longest
// bounding box axis.
func WithMeshCells(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.cells = n
		}
	}
}

// WithLogger sets the kernel logger.
func WithLogger(l *zap.Logger) Option {
	return func(k *SdfxKernel) {
		if l != nil {
			k.log = l
		}
	}
}

// New returns a new SdfxKernel.
func New(opts ...Option) *SdfxKernel {
	k := &SdfxKernel{cells: DefaultMeshCells, log: zap.NewNop()}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// Box creates a box with its minimum corner at the origin.
func (k *SdfxKernel) Box(x, y, z float64) (kernel.Solid, error) {
	return k.RoundedBox(x, y, z, 0)
}

// RoundedBox creates a box with rounded edges and its minimum corner at
// the origin. sdf.Box3D centers the box, so it is shifted by half its size.
func (k *SdfxKernel) RoundedBox(x, y, z, round float64) (kernel.Solid, error) {
	if x <= 0 || y <= 0 || z <= 0 {
		return nil, fmt.Errorf("sdfx: box dimensions must be positive, got %g x %g x %g", x, y, z)
	}
	size := v3.Vec{X: x, Y: y, Z: z}
	s, err := sdf.Box3D(size, round)
	if err != nil {
		return nil, fmt.Errorf("sdfx: box: %w", err)
	}
	return wrap(sdf.Transform3D(s, sdf.Translate3d(size.MulScalar(0.5)))), nil
}

// Cylinder creates a cylinder standing on z=0 around the z axis. The
// segments parameter is ignored since the field is smooth.
func (k *SdfxKernel) Cylinder(height, radius float64, _ int) (kernel.Solid, error) {
	if height <= 0 || radius <= 0 {
		return nil, fmt.Errorf("sdfx: cylinder height and radius must be positive, got %g, %g", height, radius)
	}
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: cylinder: %w", err)
	}
	return wrap(sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Z: height / 2}))), nil
}

// Sphere creates a sphere centered at the origin.
func (k *SdfxKernel) Sphere(radius float64, _ int) (kernel.Solid, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("sdfx: sphere radius must be positive, got %g", radius)
	}
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("sdfx: sphere: %w", err)
	}
	return wrap(s), nil
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	return wrap(sdf.Union3D(unwrap(a), unwrap(b))), nil
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) (kernel.Solid, error) {
	return wrap(sdf.Difference3D(unwrap(a), unwrap(b))), nil
}

// Intersection returns the intersection of two solids.
func (k *SdfxKernel) Intersection(a, b kernel.Solid) (kernel.Solid, error) {
	return wrap(sdf.Intersect3D(unwrap(a), unwrap(b))), nil
}

// Translate moves a solid by (x, y, z).
func (k *SdfxKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *SdfxKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// ToMesh converts a solid to a triangle mesh using marching cubes. Zero
// area triangles are dropped.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	triangles := render.ToTriangles(unwrap(s), render.NewMarchingCubesUniform(k.cells))

	vertices := make([]float32, 0, len(triangles)*9)
	normals := make([]float32, 0, len(triangles)*9)
	indices := make([]uint32, 0, len(triangles)*3)

	for _, tri := range triangles {
		n := tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0]))
		if n.Length2() == 0 {
			continue
		}
		n = n.Normalize()
		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, float32(n.X), float32(n.Y), float32(n.Z))
			indices = append(indices, uint32(len(indices)))
		}
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("sdfx: marching cubes produced no triangles")
	}
	k.log.Debug("tessellated",
		zap.Int("cells", k.cells),
		zap.Int("triangles", len(indices)/3),
	)

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
