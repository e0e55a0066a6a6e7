package csg

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/carve/pkg/model"
)

// edgeKey identifies an undirected edge by its two arena indices in
// ascending order.
type edgeKey [2]int

func makeEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// workEdge is an edge shared by the triangles of one operand, with the
// seam points found on it.
type workEdge struct {
	key    edgeKey
	tris   []*workTriangle
	points []int
}

// workTriangle is one triangle of an operand. Edge i joins v[i] and
// v[(i+1)%3]. segs holds the seam segments the other operand forces into
// it, as arena index pairs.
type workTriangle struct {
	operand int
	src     int
	v       [3]int
	p       [3]v3.Vec
	e       [3]*workEdge
	plane   plane
	ok      bool
	segs    []edgeKey
}

// touched reports whether the seam reaches this triangle.
func (t *workTriangle) touched() bool {
	if len(t.segs) > 0 {
		return true
	}
	for _, e := range t.e {
		if len(e.points) > 0 {
			return true
		}
	}
	return false
}

// addSegment records a seam segment once.
func (t *workTriangle) addSegment(k edgeKey) {
	for _, s := range t.segs {
		if s == k {
			return
		}
	}
	t.segs = append(t.segs, k)
}

// crease reports whether edge k of t bounds a flat patch: no neighbour
// across it continues t's plane with the same orientation.
func (t *workTriangle) crease(k int, eps float64) bool {
	for _, n := range t.e[k].tris {
		if n == t || !n.ok {
			continue
		}
		if n.plane.normal.Dot(t.plane.normal) > 1-flatEps && math.Abs(n.plane.offset-t.plane.offset) <= eps {
			return false
		}
	}
	return true
}

// workMesh holds the triangles of one operand with their shared vertices
// and edges.
type workMesh struct {
	operand int
	tris    map[int]*workTriangle
	order   []*workTriangle
	edges   map[edgeKey]*workEdge
}

// triangleIDs maps the corners of triangle t to arena indices.
func triangleIDs(m *model.Model, ids []int, t int) [3]int {
	tri := m.Triangles[t]
	return [3]int{ids[tri.Vertex[0]], ids[tri.Vertex[1]], ids[tri.Vertex[2]]}
}

// collapsed reports whether welding merged two corners of a triangle.
func collapsed(v [3]int) bool {
	return v[0] == v[1] || v[1] == v[2] || v[0] == v[2]
}

// buildWorkMesh materializes the triangles of m. ids maps model vertex
// indices to arena indices. Triangles whose corners welded together are
// left out. Every triangle is included so that seam points found on an
// edge reach both triangles sharing it.
func buildWorkMesh(operand int, m *model.Model, ids []int, ar *arena) *workMesh {
	wm := &workMesh{
		operand: operand,
		tris:    make(map[int]*workTriangle, len(m.Triangles)),
		edges:   make(map[edgeKey]*workEdge),
	}
	for t := range m.Triangles {
		v := triangleIDs(m, ids, t)
		if collapsed(v) {
			continue
		}
		wt := &workTriangle{operand: operand, src: t, v: v}
		for i := 0; i < 3; i++ {
			wt.p[i] = ar.at(v[i])
		}
		wt.plane, wt.ok = trianglePlane(wt.p[0], wt.p[1], wt.p[2])
		for i := 0; i < 3; i++ {
			key := makeEdgeKey(v[i], v[(i+1)%3])
			e := wm.edges[key]
			if e == nil {
				e = &workEdge{key: key}
				wm.edges[key] = e
			}
			e.tris = append(e.tris, wt)
			wt.e[i] = e
		}
		wm.tris[t] = wt
		wm.order = append(wm.order, wt)
	}
	return wm
}

// intersector computes where candidate triangle pairs meet and files the
// resulting seam segments on both triangles of each pair.
type intersector struct {
	ar       *arena
	eps      float64
	segments int
}

func newIntersector(ar *arena, eps float64) *intersector {
	return &intersector{ar: ar, eps: eps}
}

// run intersects every candidate pair.
func (x *intersector) run(first, second *workMesh, pairs []pair) {
	for _, p := range pairs {
		a := first.tris[p.first]
		b := second.tris[p.second]
		if a == nil || b == nil || !a.ok || !b.ok {
			continue
		}
		x.intersect(a, b)
	}
}

// intersect handles one pair. Crossing planes meet in at most one segment.
// Coplanar triangles overlap in a polygon whose boundary is made of the
// creases of either operand clipped to the other triangle.
func (x *intersector) intersect(a, b *workTriangle) {
	if coplanar(a.p, b.p, a.plane, b.plane, x.eps) {
		x.overlay(a, b)
		x.overlay(b, a)
		return
	}
	if seg, ok := sectionSegment(a.p, b.p, a.plane, b.plane, x.eps); ok {
		x.add(seg, a, b)
	}
}

// overlay clips the crease edges of other to t.
func (x *intersector) overlay(t, other *workTriangle) {
	for k := 0; k < 3; k++ {
		if !other.crease(k, x.eps) {
			continue
		}
		seg, ok := clipSegment(other.p[k], other.p[(k+1)%3], t.p, t.plane.normal, x.eps)
		if ok {
			x.add(seg, t, other)
		}
	}
}

// add welds the segment endpoints into the arena and records the segment
// on both triangles.
func (x *intersector) add(seg [2]v3.Vec, a, b *workTriangle) {
	i, j := x.ar.add(seg[0]), x.ar.add(seg[1])
	if i == j {
		return
	}
	k := makeEdgeKey(i, j)
	for _, t := range [2]*workTriangle{a, b} {
		t.addSegment(k)
		x.attach(t, i)
		x.attach(t, j)
	}
	x.segments++
}

// attach files the arena point id on the edge of t it lies on, if any.
// Points on an edge are shared with the neighbour across it.
func (x *intersector) attach(t *workTriangle, id int) {
	for _, v := range t.v {
		if v == id {
			return
		}
	}
	p := x.ar.at(id)
	for k := 0; k < 3; k++ {
		d, s := segmentDistance(p, t.p[k], t.p[(k+1)%3])
		if d <= x.eps && s > 0 && s < 1 {
			t.e[k].points = appendUnique(t.e[k].points, id)
			return
		}
	}
}
