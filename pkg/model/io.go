package model

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// FromTriangles builds a model from a triangle soup, sharing identical
// positions. Each face gets its geometric normal and a zero UV. Faces with
// zero area are dropped.
func FromTriangles(tris []*sdf.Triangle3) *Model {
	b := NewBuilder()
	for _, tri := range tris {
		n := tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0]))
		if n.Length2() == 0 {
			continue
		}
		b.AddFlat([3]v3.Vec{tri[0], tri[1], tri[2]}, n.Normalize(), [3]v2.Vec{})
	}
	return b.Build()
}

// ToTriangles flattens the model into a triangle soup.
func (m *Model) ToTriangles() []*sdf.Triangle3 {
	out := make([]*sdf.Triangle3, 0, len(m.Triangles))
	for t := range m.Triangles {
		c := m.Corners(t)
		out = append(out, &sdf.Triangle3{c[0], c[1], c[2]})
	}
	return out
}

// LoadSTL reads an ASCII or binary STL file.
func LoadSTL(path string) (*Model, error) {
	tris, err := render.LoadSTL(path)
	if err != nil {
		return nil, fmt.Errorf("model: load %s: %w", path, err)
	}
	return FromTriangles(tris), nil
}

// SaveSTL writes the model as a binary STL file.
func SaveSTL(path string, m *Model) error {
	if err := render.SaveSTL(path, m.ToTriangles()); err != nil {
		return fmt.Errorf("model: save %s: %w", path, err)
	}
	return nil
}

// FromSDF tessellates a signed distance field with uniform marching cubes
// over cells divisions of its longest bounding box axis.
func FromSDF(s sdf.SDF3, cells int) (*Model, error) {
	if cells <= 0 {
		return nil, fmt.Errorf("model: marching cubes cell count must be positive, got %d", cells)
	}
	tris := render.ToTriangles(s, render.NewMarchingCubesUniform(cells))
	m := FromTriangles(tris)
	if m.IsEmpty() {
		return nil, fmt.Errorf("model: sdf tessellation produced no triangles")
	}
	return m, nil
}

// RoundedBox returns a box with its minimum corner at the origin whose
// edges are rounded by radius round, tessellated from its distance field.
func RoundedBox(size v3.Vec, round float64, cells int) (*Model, error) {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, fmt.Errorf("model: box dimensions must be positive, got %v", size)
	}
	s, err := sdf.Box3D(size, round)
	if err != nil {
		return nil, fmt.Errorf("model: rounded box: %w", err)
	}
	s = sdf.Transform3D(s, sdf.Translate3d(size.MulScalar(0.5)))
	return FromSDF(s, cells)
}
