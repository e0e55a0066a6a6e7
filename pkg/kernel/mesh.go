package kernel

import (
	"fmt"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Mesh is a flat triangle mesh as produced by ToMesh.
// Vertices has 3 floats per vertex (x,y,z), Normals is either empty or
// parallel to Vertices, and Indices has 3 entries per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"` // defpart the mesh came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Vertex returns vertex i widened to float64.
func (m *Mesh) Vertex(i uint32) (v3.Vec, error) {
	if int(i) >= m.VertexCount() {
		return v3.Vec{}, fmt.Errorf("mesh %q: index %d out of range", m.PartName, i)
	}
	p := m.Vertices[3*i : 3*i+3]
	return v3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}, nil
}

// Validate checks array lengths and index ranges.
func (m *Mesh) Validate() error {
	switch {
	case len(m.Vertices)%3 != 0:
		return fmt.Errorf("mesh %q: %d vertex floats is not a multiple of 3", m.PartName, len(m.Vertices))
	case len(m.Indices)%3 != 0:
		return fmt.Errorf("mesh %q: %d indices is not a multiple of 3", m.PartName, len(m.Indices))
	case len(m.Normals) != 0 && len(m.Normals) != len(m.Vertices):
		return fmt.Errorf("mesh %q: %d normal floats for %d vertex floats", m.PartName, len(m.Normals), len(m.Vertices))
	}
	for _, i := range m.Indices {
		if int(i) >= m.VertexCount() {
			return fmt.Errorf("mesh %q: index %d out of range", m.PartName, i)
		}
	}
	return nil
}

// Triangles expands the indexed mesh into standalone triangles.
func (m *Mesh) Triangles() ([]*sdf.Triangle3, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	tris := make([]*sdf.Triangle3, 0, m.TriangleCount())
	for t := 0; t < m.TriangleCount(); t++ {
		var tri sdf.Triangle3
		for c := 0; c < 3; c++ {
			tri[c], _ = m.Vertex(m.Indices[3*t+c])
		}
		tris = append(tris, &tri)
	}
	return tris, nil
}
