package csg

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/dhconnelly/rtreego"
)

// DefaultEpsilon is the distance below which two points are the same
// vertex. Points are compared by squared distance against its square.
const DefaultEpsilon = 1e-5

// arena owns every vertex of one boolean invocation. Positions are welded
// once on entry: a new point within epsilon of an existing vertex resolves
// to the lowest-numbered such vertex, and stored positions never change.
// All later stages compare vertices by arena index only.
type arena struct {
	eps  float64
	eps2 float64
	tree *rtreego.Rtree
	pos  []v3.Vec
}

// arenaPoint is the R-tree entry for one vertex.
type arenaPoint struct {
	id   int
	rect rtreego.Rect
}

func (p *arenaPoint) Bounds() rtreego.Rect {
	return p.rect
}

func newArena(eps float64) *arena {
	return &arena{
		eps:  eps,
		eps2: eps * eps,
		tree: rtreego.NewTree(3, 25, 50),
	}
}

// add returns the index of the vertex at p, creating it if no existing
// vertex lies within epsilon.
func (a *arena) add(p v3.Vec) int {
	q := rtreego.Point{p.X, p.Y, p.Z}
	best := -1
	for _, s := range a.tree.SearchIntersect(q.ToRect(a.eps)) {
		id := s.(*arenaPoint).id
		if a.pos[id].Sub(p).Length2() < a.eps2 && (best < 0 || id < best) {
			best = id
		}
	}
	if best >= 0 {
		return best
	}
	id := len(a.pos)
	a.pos = append(a.pos, p)
	a.tree.Insert(&arenaPoint{id: id, rect: q.ToRect(a.eps / 2)})
	return id
}

// addAll welds a slice of positions and returns their indices.
func (a *arena) addAll(ps []v3.Vec) []int {
	ids := make([]int, len(ps))
	for i, p := range ps {
		ids[i] = a.add(p)
	}
	return ids
}

func (a *arena) at(id int) v3.Vec {
	return a.pos[id]
}

func (a *arena) count() int {
	return len(a.pos)
}
