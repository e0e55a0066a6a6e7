package csg

import (
	"errors"
	"fmt"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/carve/pkg/model"
)

// ErrZeroNormal reports an interpolated vertex normal of zero length. It
// means the source normals of a cut triangle cancel out, which the
// pipeline cannot repair.
var ErrZeroNormal = errors.New("csg: interpolated normal has zero length")

// invariantError carries a fatal invariant violation out of the pipeline
// as a panic; Compute turns it back into an error.
type invariantError struct {
	err error
}

func mustNormalize(n v3.Vec) v3.Vec {
	l := n.Length()
	if l == 0 {
		panic(invariantError{err: fmt.Errorf("%w: %v", ErrZeroNormal, n)})
	}
	return n.DivScalar(l)
}

// assembler repacks the surviving triangles of one operand.
type assembler struct {
	src *model.Model
	ar  *arena
	b   *model.Builder
}

func newAssembler(src *model.Model, ar *arena) *assembler {
	return &assembler{src: src, ar: ar, b: model.NewBuilder()}
}

// add emits triangle t with the given behavior. Delete is a no-op.
func (a *assembler) add(t outTriangle, b Behavior) {
	if b == Delete {
		return
	}
	var vs [3]model.Vertex
	if t.cut {
		vs = a.interpolate(t)
	} else {
		vs = a.copyCorners(t)
	}
	if b == Flip {
		vs[0], vs[2] = vs[2], vs[0]
		for i := range vs {
			vs[i].Normal = vs[i].Normal.Neg()
		}
	}
	a.b.AddTriangle(vs[0], vs[1], vs[2])
}

// copyCorners takes the corner attributes of an untouched source triangle.
func (a *assembler) copyCorners(t outTriangle) [3]model.Vertex {
	src := a.src.Triangles[t.src]
	var vs [3]model.Vertex
	for i := 0; i < 3; i++ {
		vs[i] = model.Vertex{
			Position: a.ar.at(t.v[i]),
			Normal:   a.src.Normals[src.Normal[i]],
			UV:       a.src.UVs[src.UV[i]],
		}
	}
	return vs
}

// interpolate derives the attributes of a cut triangle's corners from the
// source triangle by barycentric weights.
func (a *assembler) interpolate(t outTriangle) [3]model.Vertex {
	src := a.src.Triangles[t.src]
	p := a.src.Corners(t.src)
	fn := a.src.FaceNormal(t.src)
	var vs [3]model.Vertex
	for i := 0; i < 3; i++ {
		pos := a.ar.at(t.v[i])
		uv, _ := triangleCoords(pos, p[0], p[1], p[2], fn)
		w := [3]float64{1 - uv.X - uv.Y, uv.X, uv.Y}
		var n v3.Vec
		var tex v2.Vec
		for k := 0; k < 3; k++ {
			n = n.Add(a.src.Normals[src.Normal[k]].MulScalar(w[k]))
			su := a.src.UVs[src.UV[k]]
			tex.X += su.X * w[k]
			tex.Y += su.Y * w[k]
		}
		vs[i] = model.Vertex{Position: pos, Normal: mustNormalize(n), UV: tex}
	}
	return vs
}

func (a *assembler) build() *model.Model {
	return a.b.Build()
}
