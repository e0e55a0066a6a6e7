package graph

import "github.com/chazu/carve/pkg/csg"

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// Shape distinguishes between primitive solids.
type Shape int

const (
	ShapeBox      Shape = iota // rectangular solid, min corner at the origin
	ShapeCylinder              // cylinder standing on z=0
	ShapeSphere                // sphere centered at the origin
)

func (s Shape) String() string {
	switch s {
	case ShapeBox:
		return "box"
	case ShapeCylinder:
		return "cylinder"
	case ShapeSphere:
		return "sphere"
	default:
		return "unknown"
	}
}

// PrimitiveData describes a primitive solid. Which fields apply depends on
// Shape: boxes use Size and Round, cylinders Height and Radius, spheres
// Radius. Segments is the facet count of round shapes, 0 for the default.
type PrimitiveData struct {
	Shape    Shape   `json:"shape"`
	Size     Vec3    `json:"size,omitempty"`
	Radius   float64 `json:"radius,omitempty"`
	Height   float64 `json:"height,omitempty"`
	Segments int     `json:"segments,omitempty"`
	Round    float64 `json:"round,omitempty"`
}

func (PrimitiveData) nodeData() {}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// TransformData represents a spatial transformation applied to a child node.
// Rotation is applied before translation.
type TransformData struct {
	Translation *Vec3 `json:"translation,omitempty"`
	Rotation    *Vec3 `json:"rotation,omitempty"` // Euler angles in degrees
}

func (TransformData) nodeData() {}

// ---------------------------------------------------------------------------
// Boolean
// ---------------------------------------------------------------------------

// BooleanData combines the node's two children. The first child is the
// first operand.
type BooleanData struct {
	Op csg.Operation `json:"op"`
}

func (BooleanData) nodeData() {}

// ---------------------------------------------------------------------------
// Group
// ---------------------------------------------------------------------------

// GroupData represents a logical grouping (assembly, subassembly).
// Created by the (assembly ...) Lisp form.
type GroupData struct {
	Description string `json:"description,omitempty"`
}

func (GroupData) nodeData() {}
