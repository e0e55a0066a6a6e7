package graph

import "github.com/google/uuid"

// NodeID identifies a graph node. IDs are name-based UUIDs derived from the
// node's path in the design source, so re-evaluating unchanged source
// yields the same IDs.
type NodeID string

// NewNodeID derives the ID for the given path.
func NewNodeID(path string) NodeID {
	return NodeID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(path)).String())
}

// Short returns the first eight characters, for messages.
func (id NodeID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// IsZero reports whether the ID is unset.
func (id NodeID) IsZero() bool {
	return id == ""
}

// Vec3 is a 3D vector in design units.
type Vec3 [3]float64

// Add returns the component-wise sum.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}
