package kernel

import (
	"strings"
	"testing"
)

// --- Mesh helper method tests ---

func TestMeshVertexCount(t *testing.T) {
	tests := []struct {
		name     string
		vertices []float32
		want     int
	}{
		{"empty", nil, 0},
		{"one vertex", []float32{1, 2, 3}, 1},
		{"four vertices", []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Vertices: tt.vertices}
			if got := m.VertexCount(); got != tt.want {
				t.Errorf("VertexCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshTriangleCount(t *testing.T) {
	tests := []struct {
		name    string
		indices []uint32
		want    int
	}{
		{"empty", nil, 0},
		{"one triangle", []uint32{0, 1, 2}, 1},
		{"two triangles", []uint32{0, 1, 2, 2, 3, 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Indices: tt.indices}
			if got := m.TriangleCount(); got != tt.want {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshIsEmpty(t *testing.T) {
	t.Run("empty mesh", func(t *testing.T) {
		m := &Mesh{}
		if !m.IsEmpty() {
			t.Error("IsEmpty() = false for empty mesh, want true")
		}
	})
	t.Run("non-empty mesh", func(t *testing.T) {
		m := &Mesh{Vertices: []float32{1, 2, 3}}
		if m.IsEmpty() {
			t.Error("IsEmpty() = true for non-empty mesh, want false")
		}
	})
}

func TestMeshValidate(t *testing.T) {
	tri := []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}
	tests := []struct {
		name    string
		mesh    Mesh
		wantErr string
	}{
		{"ok", Mesh{Vertices: tri, Indices: []uint32{0, 1, 2}}, ""},
		{"ok with normals", Mesh{Vertices: tri, Normals: make([]float32, 9), Indices: []uint32{0, 1, 2}}, ""},
		{"ragged vertices", Mesh{Vertices: tri[:8]}, "multiple of 3"},
		{"ragged indices", Mesh{Vertices: tri, Indices: []uint32{0, 1}}, "multiple of 3"},
		{"short normals", Mesh{Vertices: tri, Normals: make([]float32, 3)}, "normal floats"},
		{"bad index", Mesh{Vertices: tri, Indices: []uint32{0, 1, 3}}, "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mesh.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestMeshTriangles(t *testing.T) {
	m := &Mesh{
		Vertices: []float32{0, 0, 0, 2, 0, 0, 0, 2, 0, 0, 0, 2},
		Indices:  []uint32{0, 2, 1, 0, 1, 3},
	}
	tris, err := m.Triangles()
	if err != nil {
		t.Fatalf("Triangles() error = %v", err)
	}
	if len(tris) != 2 {
		t.Fatalf("got %d triangles, want 2", len(tris))
	}
	if got := tris[1][2]; got.X != 0 || got.Y != 0 || got.Z != 2 {
		t.Errorf("second triangle third corner = %v, want (0,0,2)", got)
	}
	if _, err := m.Vertex(4); err == nil {
		t.Error("Vertex(4) should fail on a 4-vertex mesh")
	}
}

// --- Compile-time interface check with a stub kernel ---

// stubSolid is a minimal Solid implementation for testing.
type stubSolid struct {
	minBB, maxBB [3]float64
}

func (s *stubSolid) BoundingBox() (min, max [3]float64) {
	return s.minBB, s.maxBB
}

// stubKernel is a minimal Kernel implementation that proves the interface
// is satisfiable. All methods return trivial results.
type stubKernel struct{}

func (k *stubKernel) Box(x, y, z float64) (Solid, error) {
	return &stubSolid{
		minBB: [3]float64{0, 0, 0},
		maxBB: [3]float64{x, y, z},
	}, nil
}

func (k *stubKernel) RoundedBox(x, y, z, _ float64) (Solid, error) {
	return k.Box(x, y, z)
}

func (k *stubKernel) Cylinder(height, radius float64, _ int) (Solid, error) {
	return &stubSolid{
		minBB: [3]float64{-radius, -radius, 0},
		maxBB: [3]float64{radius, radius, height},
	}, nil
}

func (k *stubKernel) Sphere(radius float64, _ int) (Solid, error) {
	return &stubSolid{
		minBB: [3]float64{-radius, -radius, -radius},
		maxBB: [3]float64{radius, radius, radius},
	}, nil
}

func (k *stubKernel) Union(a, _ Solid) (Solid, error)        { return a, nil }
func (k *stubKernel) Difference(a, _ Solid) (Solid, error)   { return a, nil }
func (k *stubKernel) Intersection(a, _ Solid) (Solid, error) { return a, nil }

func (k *stubKernel) Translate(s Solid, _, _, _ float64) Solid { return s }
func (k *stubKernel) Rotate(s Solid, _, _, _ float64) Solid    { return s }

func (k *stubKernel) ToMesh(_ Solid) (*Mesh, error) {
	return &Mesh{}, nil
}

// Compile-time checks that the stubs implement the interfaces.
var _ Solid = (*stubSolid)(nil)
var _ Kernel = (*stubKernel)(nil)

func TestStubKernelBoxBoundingBox(t *testing.T) {
	var k Kernel = &stubKernel{}
	s, err := k.Box(10, 20, 30)
	if err != nil {
		t.Fatalf("Box() error = %v", err)
	}
	min, max := s.BoundingBox()
	if min != [3]float64{0, 0, 0} {
		t.Errorf("Box min = %v, want [0 0 0]", min)
	}
	if max != [3]float64{10, 20, 30} {
		t.Errorf("Box max = %v, want [10 20 30]", max)
	}
}

func TestStubKernelToMesh(t *testing.T) {
	var k Kernel = &stubKernel{}
	s, _ := k.Box(1, 1, 1)
	m, err := k.ToMesh(s)
	if err != nil {
		t.Fatalf("ToMesh() error = %v", err)
	}
	if m == nil {
		t.Fatal("ToMesh() returned nil mesh")
	}
	if !m.IsEmpty() {
		t.Error("stub ToMesh() should return empty mesh")
	}
}
