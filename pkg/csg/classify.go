package csg

import (
	"math/rand"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/carve/pkg/model"
)

// Behavior is the fate of a classified region.
type Behavior int

const (
	// Delete drops the region from the output.
	Delete Behavior = iota
	// Normal keeps the region as it is.
	Normal
	// Flip keeps the region with its winding and normals reversed.
	Flip
)

func (b Behavior) String() string {
	switch b {
	case Delete:
		return "delete"
	case Normal:
		return "normal"
	case Flip:
		return "flip"
	default:
		return "unknown"
	}
}

// DefaultSamples is the number of points the majority vote tests per
// region.
const DefaultSamples = 23

// DefaultSeed seeds the per-invocation random source when none is given.
const DefaultSeed = 1

// rayDir is the fixed direction of containment rays. It is skewed off the
// coordinate axes so rays rarely graze the edges of axis-aligned meshes.
var rayDir = v3.Vec{X: 0.0135, Y: 0.0247, Z: 1}.Normalize()

// Side is where a point of one operand lies relative to the other.
type Side int

const (
	// SideOutside is strictly outside the other operand.
	SideOutside Side = iota
	// SideInside is strictly inside the other operand.
	SideInside
	// SideSame is on the other operand's surface, facing the same way.
	SideSame
	// SideOpposite is on the other operand's surface, facing the other way.
	SideOpposite
)

func (s Side) String() string {
	switch s {
	case SideOutside:
		return "outside"
	case SideInside:
		return "inside"
	case SideSame:
		return "same"
	case SideOpposite:
		return "opposite"
	default:
		return "unknown"
	}
}

// solid is the other operand prepared for containment queries.
type solid struct {
	bounds sdf.Box3
	tris   [][3]v3.Vec
	planes []plane
	eps    float64
}

func newSolid(m *model.Model, eps float64) *solid {
	s := &solid{eps: eps}
	if m.IsEmpty() {
		return s
	}
	s.bounds = m.Bounds()
	for t := range m.Triangles {
		p := m.Corners(t)
		pl, ok := trianglePlane(p[0], p[1], p[2])
		if !ok {
			continue
		}
		s.tris = append(s.tris, p)
		s.planes = append(s.planes, pl)
	}
	return s
}

func inBox(b sdf.Box3, p v3.Vec) bool {
	return p.X >= b.Min.X && p.Y >= b.Min.Y && p.Z >= b.Min.Z &&
		p.X <= b.Max.X && p.Y <= b.Max.Y && p.Z <= b.Max.Z
}

// contains reports whether p lies inside the solid by the parity of the
// crossings of a ray from p.
func (s *solid) contains(p v3.Vec) bool {
	if len(s.tris) == 0 || !inBox(s.bounds, p) {
		return false
	}
	crossings := 0
	for i, tri := range s.tris {
		if t, ok := rayTriangle(p, rayDir, tri, s.planes[i]); ok && t > 0 {
			crossings++
		}
	}
	return crossings%2 == 1
}

// side locates p, a point of a surface with normal n. Points within eps of
// one of the solid's triangles lie on its surface; the rest are decided by
// ray parity.
func (s *solid) side(p, n v3.Vec) Side {
	if len(s.tris) == 0 || !inBox(padBox(s.bounds, s.eps), p) {
		return SideOutside
	}
	for i, tri := range s.tris {
		if !onTriangle(p, tri, s.planes[i], s.eps) {
			continue
		}
		if n.Dot(s.planes[i].normal) > 0 {
			return SideSame
		}
		return SideOpposite
	}
	if s.contains(p) {
		return SideInside
	}
	return SideOutside
}

// Region is a connected set of output triangles of one operand, bounded by
// the intersection seam.
type Region struct {
	// Operand is 0 for the first input and 1 for the second.
	Operand int
	// Triangles holds the 3D corners of every triangle in the region.
	Triangles [][3]v3.Vec
	// Other is the transformed model of the opposite operand.
	Other *model.Model

	other *solid
}

func (r *Region) otherSolid() *solid {
	if r.other == nil {
		r.other = newSolid(r.Other, DefaultEpsilon)
	}
	return r.other
}

// Contains reports whether p lies inside the opposite operand.
func (r *Region) Contains(p v3.Vec) bool {
	return r.otherSolid().contains(p)
}

// Side locates the centroid of triangle i relative to the opposite
// operand, using the triangle's winding for points on its surface.
func (r *Region) Side(i int) Side {
	return r.otherSolid().side(r.Centroid(i), r.Normal(i))
}

// Centroid returns the center of triangle i.
func (r *Region) Centroid(i int) v3.Vec {
	t := r.Triangles[i]
	return t[0].Add(t[1]).Add(t[2]).DivScalar(3)
}

// Normal returns the unit normal of triangle i from its winding.
func (r *Region) Normal(i int) v3.Vec {
	t := r.Triangles[i]
	n := t[1].Sub(t[0]).Cross(t[2].Sub(t[0]))
	if l := n.Length(); l > 0 {
		return n.DivScalar(l)
	}
	return n
}

// Classifier decides what happens to a region.
type Classifier interface {
	Classify(r *Region) Behavior
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(r *Region) Behavior

// Classify calls f(r).
func (f ClassifierFunc) Classify(r *Region) Behavior {
	return f(r)
}

// MajorityVote locates the centroids of randomly chosen region triangles
// relative to the other operand and applies the behavior of the side with
// the most samples. Ties go to the earlier of Outside, Inside, Same and
// Opposite, so Inside must strictly beat Outside.
type MajorityVote struct {
	Samples int
	Rand    *rand.Rand
	Inside  Behavior
	Outside Behavior
	// Same and Opposite apply to regions lying on the other operand's
	// surface, facing the same way or the opposite way.
	Same     Behavior
	Opposite Behavior
}

// Classify votes on r. Empty regions get Outside.
func (mv *MajorityVote) Classify(r *Region) Behavior {
	if len(r.Triangles) == 0 {
		return mv.Outside
	}
	samples := mv.Samples
	if samples <= 0 {
		samples = DefaultSamples
	}
	rng := mv.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(DefaultSeed))
	}
	var votes [4]int
	for i := 0; i < samples; i++ {
		votes[r.Side(rng.Intn(len(r.Triangles)))]++
	}
	best := SideOutside
	for s := SideInside; s <= SideOpposite; s++ {
		if votes[s] > votes[best] {
			best = s
		}
	}
	return mv.behavior(best)
}

func (mv *MajorityVote) behavior(s Side) Behavior {
	switch s {
	case SideInside:
		return mv.Inside
	case SideSame:
		return mv.Same
	case SideOpposite:
		return mv.Opposite
	default:
		return mv.Outside
	}
}
