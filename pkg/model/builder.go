package model

import (
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Builder assembles a Model incrementally, sharing identical positions,
// normals and UVs between corners. Equality is exact; epsilon merging is
// the boolean pipeline's job, not the builder's.
type Builder struct {
	m         Model
	positions map[v3.Vec]int
	normals   map[v3.Vec]int
	uvs       map[v2.Vec]int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		positions: make(map[v3.Vec]int),
		normals:   make(map[v3.Vec]int),
		uvs:       make(map[v2.Vec]int),
	}
}

// Position returns the index of p, adding it if unseen.
func (b *Builder) Position(p v3.Vec) int {
	if i, ok := b.positions[p]; ok {
		return i
	}
	i := len(b.m.Positions)
	b.m.Positions = append(b.m.Positions, p)
	b.positions[p] = i
	return i
}

// Normal returns the index of n, adding it if unseen.
func (b *Builder) Normal(n v3.Vec) int {
	if i, ok := b.normals[n]; ok {
		return i
	}
	i := len(b.m.Normals)
	b.m.Normals = append(b.m.Normals, n)
	b.normals[n] = i
	return i
}

// UV returns the index of uv, adding it if unseen.
func (b *Builder) UV(uv v2.Vec) int {
	if i, ok := b.uvs[uv]; ok {
		return i
	}
	i := len(b.m.UVs)
	b.m.UVs = append(b.m.UVs, uv)
	b.uvs[uv] = i
	return i
}

// Vertex bundles the attributes of one triangle corner.
type Vertex struct {
	Position v3.Vec
	Normal   v3.Vec
	UV       v2.Vec
}

// AddTriangle appends a face whose corners are given in winding order.
func (b *Builder) AddTriangle(a, c1, c2 Vertex) {
	var t Triangle
	for i, v := range [3]Vertex{a, c1, c2} {
		t.Vertex[i] = b.Position(v.Position)
		t.Normal[i] = b.Normal(v.Normal)
		t.UV[i] = b.UV(v.UV)
	}
	b.m.Triangles = append(b.m.Triangles, t)
}

// AddFlat appends a face with one shared normal and the given UVs.
func (b *Builder) AddFlat(p [3]v3.Vec, n v3.Vec, uv [3]v2.Vec) {
	b.AddTriangle(
		Vertex{Position: p[0], Normal: n, UV: uv[0]},
		Vertex{Position: p[1], Normal: n, UV: uv[1]},
		Vertex{Position: p[2], Normal: n, UV: uv[2]},
	)
}

// Build returns the accumulated model. The builder must not be used after.
func (b *Builder) Build() *Model {
	m := b.m
	return &m
}

// Compact rebuilds m through a Builder, sharing identical positions,
// normals and UVs.
func (m *Model) Compact() *Model {
	b := NewBuilder()
	for _, t := range m.Triangles {
		var vs [3]Vertex
		for i := 0; i < 3; i++ {
			vs[i] = Vertex{
				Position: m.Positions[t.Vertex[i]],
				Normal:   m.Normals[t.Normal[i]],
				UV:       m.UVs[t.UV[i]],
			}
		}
		b.AddTriangle(vs[0], vs[1], vs[2])
	}
	return b.Build()
}
