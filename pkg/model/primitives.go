package model

import (
	"fmt"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// MinSegments is the smallest facet count accepted for round primitives.
const MinSegments = 3

var quadUV = [4]v2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}

// addQuad splits a planar quad given in outward winding order into two
// triangles sharing the p[0]-p[2] diagonal.
func addQuad(b *Builder, p [4]v3.Vec, n v3.Vec) {
	b.AddFlat([3]v3.Vec{p[0], p[1], p[2]}, n, [3]v2.Vec{quadUV[0], quadUV[1], quadUV[2]})
	b.AddFlat([3]v3.Vec{p[0], p[2], p[3]}, n, [3]v2.Vec{quadUV[0], quadUV[2], quadUV[3]})
}

// Box returns an axis-aligned box with its minimum corner at the origin,
// so placement translations position the corner directly. The result has
// 8 positions and 12 outward-wound triangles.
func Box(size v3.Vec) (*Model, error) {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, fmt.Errorf("model: box dimensions must be positive, got %v", size)
	}
	x, y, z := size.X, size.Y, size.Z
	b := NewBuilder()
	o := v3.Vec{}
	addQuad(b, [4]v3.Vec{o, {Z: z}, {Y: y, Z: z}, {Y: y}}, v3.Vec{X: -1})
	addQuad(b, [4]v3.Vec{{X: x}, {X: x, Y: y}, {X: x, Y: y, Z: z}, {X: x, Z: z}}, v3.Vec{X: 1})
	addQuad(b, [4]v3.Vec{o, {X: x}, {X: x, Z: z}, {Z: z}}, v3.Vec{Y: -1})
	addQuad(b, [4]v3.Vec{{Y: y}, {Y: y, Z: z}, {X: x, Y: y, Z: z}, {X: x, Y: y}}, v3.Vec{Y: 1})
	addQuad(b, [4]v3.Vec{o, {Y: y}, {X: x, Y: y}, {X: x}}, v3.Vec{Z: -1})
	addQuad(b, [4]v3.Vec{{Z: z}, {X: x, Z: z}, {X: x, Y: y, Z: z}, {Y: y, Z: z}}, v3.Vec{Z: 1})
	return b.Build(), nil
}

// Cylinder returns a faceted cylinder standing on the z=0 plane, centered
// on the z axis. Side corners carry smooth radial normals; caps are flat.
func Cylinder(height, radius float64, segments int) (*Model, error) {
	if height <= 0 || radius <= 0 {
		return nil, fmt.Errorf("model: cylinder height and radius must be positive, got %g, %g", height, radius)
	}
	if segments < MinSegments {
		return nil, fmt.Errorf("model: cylinder needs at least %d segments, got %d", MinSegments, segments)
	}

	ring := make([]v3.Vec, segments)
	for i := range ring {
		a := 2 * math.Pi * float64(i) / float64(segments)
		ring[i] = v3.Vec{X: math.Cos(a), Y: math.Sin(a)}
	}

	b := NewBuilder()
	bottom := v3.Vec{}
	top := v3.Vec{Z: height}
	for i := 0; i < segments; i++ {
		j := (i + 1) % segments
		p0 := ring[i].MulScalar(radius)
		p1 := ring[j].MulScalar(radius)
		q0 := p0.Add(top)
		q1 := p1.Add(top)
		u0 := float64(i) / float64(segments)
		u1 := float64(i+1) / float64(segments)

		b.AddTriangle(
			Vertex{Position: p0, Normal: ring[i], UV: v2.Vec{X: u0, Y: 0}},
			Vertex{Position: p1, Normal: ring[j], UV: v2.Vec{X: u1, Y: 0}},
			Vertex{Position: q1, Normal: ring[j], UV: v2.Vec{X: u1, Y: 1}},
		)
		b.AddTriangle(
			Vertex{Position: p0, Normal: ring[i], UV: v2.Vec{X: u0, Y: 0}},
			Vertex{Position: q1, Normal: ring[j], UV: v2.Vec{X: u1, Y: 1}},
			Vertex{Position: q0, Normal: ring[i], UV: v2.Vec{X: u0, Y: 1}},
		)

		capUV := func(r v3.Vec) v2.Vec { return v2.Vec{X: 0.5 + r.X/2, Y: 0.5 + r.Y/2} }
		b.AddFlat([3]v3.Vec{bottom, p1, p0}, v3.Vec{Z: -1},
			[3]v2.Vec{{X: 0.5, Y: 0.5}, capUV(ring[j]), capUV(ring[i])})
		b.AddFlat([3]v3.Vec{top, q0, q1}, v3.Vec{Z: 1},
			[3]v2.Vec{{X: 0.5, Y: 0.5}, capUV(ring[i]), capUV(ring[j])})
	}
	return b.Build(), nil
}

// Sphere returns a UV sphere centered at the origin with segments slices
// around the z axis and segments/2 stacks from pole to pole.
func Sphere(radius float64, segments int) (*Model, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("model: sphere radius must be positive, got %g", radius)
	}
	if segments < MinSegments {
		return nil, fmt.Errorf("model: sphere needs at least %d segments, got %d", MinSegments, segments)
	}
	stacks := segments / 2
	if stacks < 2 {
		stacks = 2
	}

	point := func(stack, slice int) Vertex {
		theta := math.Pi * float64(stack) / float64(stacks)
		phi := 2 * math.Pi * float64(slice%segments) / float64(segments)
		n := v3.Vec{
			X: math.Sin(theta) * math.Cos(phi),
			Y: math.Sin(theta) * math.Sin(phi),
			Z: math.Cos(theta),
		}
		switch stack {
		case 0:
			n = v3.Vec{Z: 1}
		case stacks:
			n = v3.Vec{Z: -1}
		}
		return Vertex{
			Position: n.MulScalar(radius),
			Normal:   n,
			UV:       v2.Vec{X: float64(slice) / float64(segments), Y: float64(stack) / float64(stacks)},
		}
	}

	b := NewBuilder()
	for j := 0; j < stacks; j++ {
		for i := 0; i < segments; i++ {
			a := point(j, i)
			bl := point(j+1, i)
			c := point(j+1, i+1)
			d := point(j, i+1)
			if j != stacks-1 {
				b.AddTriangle(a, bl, c)
			}
			if j != 0 {
				b.AddTriangle(a, c, d)
			}
		}
	}
	return b.Build(), nil
}
