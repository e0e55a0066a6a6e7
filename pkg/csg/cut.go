package csg

import (
	"math"
	"sort"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// vertexKind classifies a cut-triangle vertex. Corners come first, then
// points on edge 0, 1 and 2, then interior points. A point introduced
// twice keeps the lowest kind.
type vertexKind int

const (
	kindCorner   vertexKind = 0
	kindEdge0    vertexKind = 1
	kindInterior vertexKind = 4
)

func edgeKind(i int) vertexKind {
	return kindEdge0 + vertexKind(i)
}

// cutVertex is one vertex of a cut triangle's planar graph.
type cutVertex struct {
	id   int
	kind vertexKind
	pos  v3.Vec
	uv   v2.Vec
}

// cutTriangle re-triangulates one source triangle around the points and
// segments forced into it by the other operand. Vertices are local to the
// cut triangle; id maps each back to the arena.
type cutTriangle struct {
	corners [3]v3.Vec
	normal  v3.Vec

	verts []cutVertex
	local map[int]int

	edges    map[[2]int]bool
	edgeList [][2]int

	// sliced holds the forced segments where the other surface crosses
	// this triangle, as arena index pairs.
	sliced []edgeKey
	tris   [][3]int
}

// newCutTriangle starts a cut triangle from its three corners in winding
// order. The corners become local vertices 0, 1 and 2.
func newCutTriangle(ids [3]int, p [3]v3.Vec, normal v3.Vec) *cutTriangle {
	c := &cutTriangle{
		corners: p,
		normal:  normal,
		local:   make(map[int]int),
		edges:   make(map[[2]int]bool),
	}
	for i := 0; i < 3; i++ {
		c.addVertex(ids[i], p[i], kindCorner)
	}
	return c
}

// addVertex adds the arena vertex id and returns its local index. A vertex
// already present keeps its first kind.
func (c *cutTriangle) addVertex(id int, p v3.Vec, kind vertexKind) int {
	if l, ok := c.local[id]; ok {
		return l
	}
	uv, _ := triangleCoords(p, c.corners[0], c.corners[1], c.corners[2], c.normal)
	uv = snapToEdge(uv, kind)
	l := len(c.verts)
	c.verts = append(c.verts, cutVertex{id: id, kind: kind, pos: p, uv: uv})
	c.local[id] = l
	return l
}

// snapToEdge moves the coordinates of an edge point exactly onto its edge
// of the unit parameter triangle.
func snapToEdge(uv v2.Vec, kind vertexKind) v2.Vec {
	switch kind {
	case kindEdge0:
		uv.Y = 0
	case kindEdge0 + 1:
		d := (1 - uv.X - uv.Y) / 2
		uv.X += d
		uv.Y += d
	case kindEdge0 + 2:
		uv.X = 0
	}
	return uv
}

func localKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// addEdge inserts a graph edge between two local vertices. It returns false
// for loops and duplicates.
func (c *cutTriangle) addEdge(a, b int) bool {
	if a == b {
		return false
	}
	k := localKey(a, b)
	if c.edges[k] {
		return false
	}
	c.edges[k] = true
	c.edgeList = append(c.edgeList, k)
	return true
}

// blocked reports whether the segment a-b runs through another vertex or
// crosses an existing edge it does not share an endpoint with.
func (c *cutTriangle) blocked(a, b int) bool {
	if len(c.between(a, b)) > 0 {
		return true
	}
	for _, e := range c.edgeList {
		if crosses(c, [2]int{a, b}, e) {
			return true
		}
	}
	return false
}

// between returns the vertices lying on the open segment a-b, ordered from
// a towards b.
func (c *cutTriangle) between(a, b int) []int {
	pa, pb := c.verts[a].uv, c.verts[b].uv
	d := sub2(pb, pa)
	var out []int
	var ts []float64
	for i, v := range c.verts {
		if i == a || i == b || !passesThrough(v.uv, pa, pb) {
			continue
		}
		out = append(out, i)
		ts = append(ts, dot2(sub2(v.uv, pa), d))
	}
	sort.Sort(byParam{out, ts})
	return out
}

type byParam struct {
	idx []int
	t   []float64
}

func (s byParam) Len() int           { return len(s.idx) }
func (s byParam) Less(i, j int) bool { return s.t[i] < s.t[j] }
func (s byParam) Swap(i, j int) {
	s.idx[i], s.idx[j] = s.idx[j], s.idx[i]
	s.t[i], s.t[j] = s.t[j], s.t[i]
}

// crosses reports whether two local edges intersect away from a shared
// endpoint.
func crosses(c *cutTriangle, e, f [2]int) bool {
	if e[0] == f[0] || e[0] == f[1] || e[1] == f[0] || e[1] == f[1] {
		return false
	}
	return segmentsIntersect2D(c.verts[e[0]].uv, c.verts[e[1]].uv, c.verts[f[0]].uv, c.verts[f[1]].uv)
}

// addChain adds the corners a and b of one triangle edge and the points
// between them, ordered along the edge, as consecutive graph edges.
func (c *cutTriangle) addChain(a, b int, points []int) {
	dir := c.verts[b].pos.Sub(c.verts[a].pos)
	sort.SliceStable(points, func(i, j int) bool {
		return dir.Dot(c.verts[points[i]].pos) < dir.Dot(c.verts[points[j]].pos)
	})
	chain := append([]int{a}, points...)
	chain = append(chain, b)
	for i := 0; i+1 < len(chain); i++ {
		c.addEdge(chain[i], chain[i+1])
	}
}

// addSliced forces the segment between two arena vertices into the graph
// and records it as a seam edge. A segment running through other vertices
// is split at them.
func (c *cutTriangle) addSliced(a, b int) {
	stops := append([]int{c.local[a]}, c.between(c.local[a], c.local[b])...)
	stops = append(stops, c.local[b])
	for i := 0; i+1 < len(stops); i++ {
		x, y := stops[i], stops[i+1]
		c.addEdge(x, y)
		c.sliced = append(c.sliced, makeEdgeKey(c.verts[x].id, c.verts[y].id))
	}
}

// candidateEdges lists every vertex pair the connectivity rule allows and
// that is not already an edge: a corner joins the points on its opposite
// edge and interior points, a point on edge k joins points of any higher
// kind, and interior points join each other.
func (c *cutTriangle) candidateEdges() [][2]int {
	var out [][2]int
	seen := make(map[[2]int]bool)
	add := func(i, j int) {
		k := localKey(i, j)
		if i == j || seen[k] || c.edges[k] {
			return
		}
		seen[k] = true
		out = append(out, k)
	}
	for i, vi := range c.verts {
		for j, vj := range c.verts {
			if i == j {
				continue
			}
			switch {
			case vi.kind == kindCorner:
				if vj.kind == edgeKind((i+1)%3) || vj.kind == kindInterior {
					add(i, j)
				}
			case vi.kind < kindInterior:
				if vj.kind > vi.kind {
					add(i, j)
				}
			default:
				if vj.kind == kindInterior && i < j {
					add(i, j)
				}
			}
		}
	}
	return out
}

// triangulate completes the planar graph and extracts its faces. Candidate
// edges that cross the forced edges are discarded; the rest are committed
// greedily in list order, each commit discarding the candidates it
// crosses. The first remaining candidate is always taken, which makes the
// result reproducible.
func (c *cutTriangle) triangulate() {
	var cands [][2]int
	for _, e := range c.candidateEdges() {
		if !c.blocked(e[0], e[1]) {
			cands = append(cands, e)
		}
	}
	for len(cands) > 0 {
		e := cands[0]
		c.addEdge(e[0], e[1])
		rest := cands[:0]
		for _, f := range cands[1:] {
			if !crosses(c, e, f) {
				rest = append(rest, f)
			}
		}
		cands = rest
	}
	c.extractTriangles()
}

// extractTriangles enumerates mutually connected vertex triples and keeps
// the atomic ones, wound like the source triangle.
func (c *cutTriangle) extractTriangles() {
	n := len(c.verts)
	adj := make([][]bool, n)
	for i := range adj {
		adj[i] = make([]bool, n)
	}
	for _, e := range c.edgeList {
		adj[e[0]][e[1]] = true
		adj[e[1]][e[0]] = true
	}
	c.tris = c.tris[:0]
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !adj[i][j] {
				continue
			}
			for k := j + 1; k < n; k++ {
				if !adj[i][k] || !adj[j][k] {
					continue
				}
				area := cross2(sub2(c.verts[j].uv, c.verts[i].uv), sub2(c.verts[k].uv, c.verts[i].uv))
				if math.Abs(area) < areaEps || !c.atomic(i, j, k) {
					continue
				}
				// The (u, v) basis is oriented with the source normal, so a
				// positive area means the source winding.
				if area > 0 {
					c.tris = append(c.tris, [3]int{i, j, k})
				} else {
					c.tris = append(c.tris, [3]int{i, k, j})
				}
			}
		}
	}
}

// atomic reports whether no other vertex of the graph lies strictly inside
// triangle (i, j, k). Each edge contributes its outward unit normal and
// offset; the centroid fixes which side counts as inside.
func (c *cutTriangle) atomic(i, j, k int) bool {
	p := [3]v2.Vec{c.verts[i].uv, c.verts[j].uv, c.verts[k].uv}
	centroid := v2.Vec{X: (p[0].X + p[1].X + p[2].X) / 3, Y: (p[0].Y + p[1].Y + p[2].Y) / 3}
	var normals [3]v2.Vec
	var offsets, signs [3]float64
	for e := 0; e < 3; e++ {
		d := sub2(p[(e+1)%3], p[e])
		l := math.Sqrt(dot2(d, d))
		if l == 0 {
			return false
		}
		normals[e] = v2.Vec{X: d.Y / l, Y: -d.X / l}
		offsets[e] = dot2(normals[e], p[e])
		signs[e] = math.Copysign(1, dot2(normals[e], centroid)-offsets[e])
	}
	for m, v := range c.verts {
		if m == i || m == j || m == k {
			continue
		}
		inside := true
		for e := 0; e < 3; e++ {
			if (dot2(normals[e], v.uv)-offsets[e])*signs[e] <= paramEps {
				inside = false
				break
			}
		}
		if inside {
			return false
		}
	}
	return true
}

// triangles returns the faces as arena index triples.
func (c *cutTriangle) triangles() [][3]int {
	out := make([][3]int, len(c.tris))
	for i, t := range c.tris {
		out[i] = [3]int{c.verts[t[0]].id, c.verts[t[1]].id, c.verts[t[2]].id}
	}
	return out
}

// cutWorkTriangle builds and triangulates the cut triangle for t from the
// seam points on its edges and the seam segments forced into it.
func cutWorkTriangle(t *workTriangle, ar *arena) *cutTriangle {
	c := newCutTriangle(t.v, t.p, t.plane.normal)

	var points [3][]int
	for i := 0; i < 3; i++ {
		for _, id := range t.e[i].points {
			l := c.addVertex(id, ar.at(id), edgeKind(i))
			if c.verts[l].kind == edgeKind(i) {
				points[i] = appendUnique(points[i], l)
			}
		}
	}
	for _, s := range t.segs {
		for _, id := range s {
			c.addVertex(id, ar.at(id), kindInterior)
		}
	}
	for i := 0; i < 3; i++ {
		c.addChain(i, (i+1)%3, points[i])
	}
	for _, s := range t.segs {
		c.addSliced(s[0], s[1])
	}
	c.triangulate()
	return c
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
