package csg

import (
	"sort"

	"github.com/deadsy/sdfx/sdf"

	"github.com/chazu/carve/pkg/model"
)

// DefaultMaxDepth is the number of times the partition grid halves its
// box along every axis.
const DefaultMaxDepth = 5

// pair is a candidate triangle pair: a triangle of the first operand and
// one of the second whose bounding boxes overlap.
type pair struct {
	first, second int
}

// pairSet is a sparse two-key boolean set. Only present keys use memory,
// unlike a dense first×second matrix.
type pairSet map[pair]struct{}

func (s pairSet) add(p pair) {
	s[p] = struct{}{}
}

func (s pairSet) has(p pair) bool {
	_, ok := s[p]
	return ok
}

// sorted returns the pairs ordered by first, then second index.
func (s pairSet) sorted() []pair {
	out := make([]pair, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].first != out[j].first {
			return out[i].first < out[j].first
		}
		return out[i].second < out[j].second
	})
	return out
}

// gridItem is one triangle's bounding box filed under an operand category.
type gridItem struct {
	index int
	box   sdf.Box3
}

// gridCell is a node of the partition grid. Cells with depth remaining
// split into eight equal children on first insertion; cells at depth zero
// keep their items.
type gridCell struct {
	box      sdf.Box3
	depth    int
	items    [2][]gridItem
	children []*gridCell
}

// grid is a recursive axis-aligned subdivision used to find triangle pairs
// whose bounding boxes overlap.
type grid struct {
	root *gridCell
}

func newGrid(box sdf.Box3, maxDepth int) *grid {
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &grid{root: &gridCell{box: box, depth: maxDepth}}
}

// insert files a triangle box of the given category (0 or 1) into every
// leaf it overlaps.
func (g *grid) insert(category, index int, box sdf.Box3) {
	g.root.insert(category, gridItem{index: index, box: box})
}

func (c *gridCell) insert(category int, it gridItem) {
	if !boxesOverlap(c.box, it.box) {
		return
	}
	if c.depth == 0 {
		c.items[category] = append(c.items[category], it)
		return
	}
	if c.children == nil {
		c.split()
	}
	for _, ch := range c.children {
		ch.insert(category, it)
	}
}

func (c *gridCell) split() {
	mid := c.box.Min.Add(c.box.Max).MulScalar(0.5)
	c.children = make([]*gridCell, 0, 8)
	for octant := 0; octant < 8; octant++ {
		lo, hi := c.box.Min, mid
		if octant&1 != 0 {
			lo.X, hi.X = mid.X, c.box.Max.X
		}
		if octant&2 != 0 {
			lo.Y, hi.Y = mid.Y, c.box.Max.Y
		}
		if octant&4 != 0 {
			lo.Z, hi.Z = mid.Z, c.box.Max.Z
		}
		c.children = append(c.children, &gridCell{box: sdf.Box3{Min: lo, Max: hi}, depth: c.depth - 1})
	}
}

// pairs collects every (first, second) combination sharing a leaf whose
// boxes overlap. A pair seen in several leaves is reported once.
func (g *grid) pairs() []pair {
	set := make(pairSet)
	g.root.collect(set)
	return set.sorted()
}

func (c *gridCell) collect(set pairSet) {
	for _, ch := range c.children {
		ch.collect(set)
	}
	for _, a := range c.items[0] {
		for _, b := range c.items[1] {
			p := pair{first: a.index, second: b.index}
			if set.has(p) || !boxesOverlap(a.box, b.box) {
				continue
			}
			set.add(p)
		}
	}
}

// partition returns the sorted candidate pairs between two models whose
// bounds are already known to overlap. Triangle boxes are grown by pad so
// that touching geometry is never culled.
func partition(first, second *model.Model, maxDepth int, pad float64) []pair {
	region := padBox(boxIntersection(first.Bounds(), second.Bounds()), pad)
	g := newGrid(region, maxDepth)
	for i, m := range [2]*model.Model{first, second} {
		for t := range m.Triangles {
			g.insert(i, t, triangleBox(m.Corners(t), pad))
		}
	}
	return g.pairs()
}

// candidates splits a pair list into the sorted, distinct triangle indices
// of each operand. Triangles absent from both lists are safe.
func candidates(pairs []pair) (first, second []int) {
	seen := [2]map[int]bool{{}, {}}
	for _, p := range pairs {
		if !seen[0][p.first] {
			seen[0][p.first] = true
			first = append(first, p.first)
		}
		if !seen[1][p.second] {
			seen[1][p.second] = true
			second = append(second, p.second)
		}
	}
	sort.Ints(first)
	sort.Ints(second)
	return first, second
}
