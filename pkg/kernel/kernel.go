// Package kernel defines the solid modeling interface the design graph is
// tessellated through. The mesh kernel implements it on triangle meshes
// and the csg pipeline; other backends can be swapped in behind it.
package kernel

// Solid is an opaque handle to a kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the solid modeling interface.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) (Solid, error)
	RoundedBox(x, y, z, round float64) (Solid, error)
	Cylinder(height, radius float64, segments int) (Solid, error)
	Sphere(radius float64, segments int) (Solid, error)

	// Boolean operations
	Union(a, b Solid) (Solid, error)
	Difference(a, b Solid) (Solid, error)
	Intersection(a, b Solid) (Solid, error)

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees, X then Y then Z

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
