// Package model defines the indexed triangle mesh that carve consumes and
// produces. Positions, normals and UVs live in separate arrays and every
// triangle corner carries its own index into each of them, so one position
// can be shared by corners that need different shading attributes.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrInvalidModel is wrapped by every error returned from Validate.
var ErrInvalidModel = errors.New("invalid model")

// Triangle holds the per-corner indices of one face. Corner i uses
// Positions[Vertex[i]], Normals[Normal[i]] and UVs[UV[i]].
type Triangle struct {
	Vertex [3]int `json:"vertex"`
	Normal [3]int `json:"normal"`
	UV     [3]int `json:"uv"`
}

// Reversed returns the triangle with its corners in (C, B, A) order, which
// flips its winding.
func (t Triangle) Reversed() Triangle {
	return Triangle{
		Vertex: [3]int{t.Vertex[2], t.Vertex[1], t.Vertex[0]},
		Normal: [3]int{t.Normal[2], t.Normal[1], t.Normal[0]},
		UV:     [3]int{t.UV[2], t.UV[1], t.UV[0]},
	}
}

// Model is an indexed triangle mesh. A Model is treated as immutable once
// built; every operation in this package returns a new value.
type Model struct {
	Positions []v3.Vec   `json:"positions"`
	Normals   []v3.Vec   `json:"normals"`
	UVs       []v2.Vec   `json:"uvs"`
	Triangles []Triangle `json:"triangles"`
}

// TriangleCount returns the number of faces.
func (m *Model) TriangleCount() int {
	return len(m.Triangles)
}

// IsEmpty reports whether the model has no faces.
func (m *Model) IsEmpty() bool {
	return m == nil || len(m.Triangles) == 0
}

// Corners returns the three corner positions of triangle t.
func (m *Model) Corners(t int) [3]v3.Vec {
	tri := m.Triangles[t]
	return [3]v3.Vec{
		m.Positions[tri.Vertex[0]],
		m.Positions[tri.Vertex[1]],
		m.Positions[tri.Vertex[2]],
	}
}

// FaceNormal returns the unnormalized geometric normal of triangle t,
// following its winding. Its length is twice the triangle's area.
func (m *Model) FaceNormal(t int) v3.Vec {
	c := m.Corners(t)
	return c[1].Sub(c[0]).Cross(c[2].Sub(c[0]))
}

// Bounds returns the axis-aligned bounding box of all referenced positions.
// An empty model yields a zero box.
func (m *Model) Bounds() sdf.Box3 {
	if m.IsEmpty() {
		return sdf.Box3{}
	}
	first := m.Positions[m.Triangles[0].Vertex[0]]
	bb := sdf.Box3{Min: first, Max: first}
	for _, tri := range m.Triangles {
		for _, vi := range tri.Vertex {
			p := m.Positions[vi]
			bb.Min = bb.Min.Min(p)
			bb.Max = bb.Max.Max(p)
		}
	}
	return bb
}

// Validate checks index ranges and attribute presence. It is the ingestion
// check for every mesh handed to the boolean pipeline.
func (m *Model) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil model", ErrInvalidModel)
	}
	if len(m.Triangles) > 0 && len(m.Normals) == 0 {
		return fmt.Errorf("%w: triangles without normals", ErrInvalidModel)
	}
	if len(m.Triangles) > 0 && len(m.UVs) == 0 {
		return fmt.Errorf("%w: triangles without uvs", ErrInvalidModel)
	}
	for i, p := range m.Positions {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return fmt.Errorf("%w: position %d is not finite", ErrInvalidModel, i)
		}
	}
	for i, tri := range m.Triangles {
		for c := 0; c < 3; c++ {
			if tri.Vertex[c] < 0 || tri.Vertex[c] >= len(m.Positions) {
				return fmt.Errorf("%w: triangle %d corner %d: vertex index %d out of range [0,%d)",
					ErrInvalidModel, i, c, tri.Vertex[c], len(m.Positions))
			}
			if tri.Normal[c] < 0 || tri.Normal[c] >= len(m.Normals) {
				return fmt.Errorf("%w: triangle %d corner %d: normal index %d out of range [0,%d)",
					ErrInvalidModel, i, c, tri.Normal[c], len(m.Normals))
			}
			if tri.UV[c] < 0 || tri.UV[c] >= len(m.UVs) {
				return fmt.Errorf("%w: triangle %d corner %d: uv index %d out of range [0,%d)",
					ErrInvalidModel, i, c, tri.UV[c], len(m.UVs))
			}
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Clone returns a deep copy.
func (m *Model) Clone() *Model {
	return &Model{
		Positions: append([]v3.Vec(nil), m.Positions...),
		Normals:   append([]v3.Vec(nil), m.Normals...),
		UVs:       append([]v2.Vec(nil), m.UVs...),
		Triangles: append([]Triangle(nil), m.Triangles...),
	}
}

// Transform returns a copy of m with positions mapped through the affine
// matrix. Normals are mapped through the cofactor of its linear part, which
// keeps them perpendicular to the transformed surface under non-uniform
// scale and consistent with the transformed winding under reflection.
func (m *Model) Transform(mat sdf.M44) *Model {
	out := m.Clone()
	for i, p := range m.Positions {
		out.Positions[i] = mat.MulPosition(p)
	}
	for i, n := range m.Normals {
		out.Normals[i] = TransformNormal(mat, n)
	}
	return out
}

// TransformNormal maps a surface normal through the linear part of mat.
// Zero normals stay zero.
func TransformNormal(mat sdf.M44, n v3.Vec) v3.Vec {
	if n.Length2() == 0 {
		return n
	}
	t1 := Perpendicular(n)
	t2 := n.Cross(t1)
	origin := mat.MulPosition(v3.Vec{})
	l1 := mat.MulPosition(t1).Sub(origin)
	l2 := mat.MulPosition(t2).Sub(origin)
	c := l1.Cross(l2)
	if c.Length2() == 0 {
		return c
	}
	return c.Normalize()
}

// Perpendicular returns a unit vector perpendicular to n.
func Perpendicular(n v3.Vec) v3.Vec {
	ax, ay, az := math.Abs(n.X), math.Abs(n.Y), math.Abs(n.Z)
	var axis v3.Vec
	switch {
	case ax <= ay && ax <= az:
		axis = v3.Vec{X: 1}
	case ay <= az:
		axis = v3.Vec{Y: 1}
	default:
		axis = v3.Vec{Z: 1}
	}
	return n.Cross(axis).Normalize()
}

// Flip returns a copy with every triangle's winding reversed and every
// normal negated.
func (m *Model) Flip() *Model {
	out := m.Clone()
	for i, n := range out.Normals {
		out.Normals[i] = n.Neg()
	}
	for i, tri := range out.Triangles {
		out.Triangles[i] = tri.Reversed()
	}
	return out
}

// Merge concatenates two models into one, offsetting the second model's
// indices. Attributes are not deduplicated.
func Merge(a, b *Model) *Model {
	switch {
	case a == nil && b == nil:
		return &Model{}
	case a == nil:
		return b.Clone()
	case b == nil:
		return a.Clone()
	}
	out := a.Clone()
	pv, pn, pu := len(a.Positions), len(a.Normals), len(a.UVs)
	out.Positions = append(out.Positions, b.Positions...)
	out.Normals = append(out.Normals, b.Normals...)
	out.UVs = append(out.UVs, b.UVs...)
	for _, tri := range b.Triangles {
		for c := 0; c < 3; c++ {
			tri.Vertex[c] += pv
			tri.Normal[c] += pn
			tri.UV[c] += pu
		}
		out.Triangles = append(out.Triangles, tri)
	}
	return out
}
