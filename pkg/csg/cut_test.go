package csg

import (
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cutFixture is a right triangle in the z=0 plane, wound counter-clockwise
// seen from +Z.
func cutFixture(t *testing.T) (*arena, *cutTriangle) {
	t.Helper()
	ar := newArena(DefaultEpsilon)
	p := [3]v3.Vec{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 0, Y: 4}}
	ids := [3]int{}
	copy(ids[:], ar.addAll(p[:]))
	pl, ok := trianglePlane(p[0], p[1], p[2])
	require.True(t, ok)
	return ar, newCutTriangle(ids, p, pl.normal)
}

func triArea(ar *arena, tri [3]int) v3.Vec {
	a, b, c := ar.at(tri[0]), ar.at(tri[1]), ar.at(tri[2])
	return b.Sub(a).Cross(c.Sub(a)).MulScalar(0.5)
}

// assertTiling checks that the faces cover the source triangle exactly and
// keep its winding.
func assertTiling(t *testing.T, ar *arena, c *cutTriangle, wantArea float64) {
	t.Helper()
	var total float64
	for _, tri := range c.triangles() {
		a := triArea(ar, tri)
		assert.Greater(t, a.Z, 0.0, "face %v is wound against the source", tri)
		total += a.Length()
	}
	assert.InDelta(t, wantArea, total, 1e-9)
}

func hasEdge(c *cutTriangle, a, b int) bool {
	k := makeEdgeKey(a, b)
	for _, tri := range c.triangles() {
		for i := 0; i < 3; i++ {
			if makeEdgeKey(tri[i], tri[(i+1)%3]) == k {
				return true
			}
		}
	}
	return false
}

func TestCutUntouched(t *testing.T) {
	ar, c := cutFixture(t)
	c.addChain(0, 1, nil)
	c.addChain(1, 2, nil)
	c.addChain(2, 0, nil)
	c.triangulate()
	require.Len(t, c.triangles(), 1)
	assertTiling(t, ar, c, 8)
}

func TestCutInteriorSegment(t *testing.T) {
	ar, c := cutFixture(t)
	p := ar.add(v3.Vec{X: 1, Y: 1})
	q := ar.add(v3.Vec{X: 2, Y: 0.5})
	c.addVertex(p, ar.at(p), kindInterior)
	c.addVertex(q, ar.at(q), kindInterior)
	for i := 0; i < 3; i++ {
		c.addChain(i, (i+1)%3, nil)
	}
	c.addSliced(p, q)
	c.triangulate()

	assertTiling(t, ar, c, 8)
	assert.True(t, hasEdge(c, p, q), "forced segment must survive triangulation")
	assert.Equal(t, []edgeKey{makeEdgeKey(p, q)}, c.sliced)
	// Five vertices in a triangle with two interior points give five faces.
	assert.Len(t, c.triangles(), 5)
}

func TestCutEdgeToEdgeSegment(t *testing.T) {
	ar, c := cutFixture(t)
	// A straight cut from edge 0 to edge 2 splits off the corner at the
	// origin.
	p := ar.add(v3.Vec{X: 1, Y: 0})
	q := ar.add(v3.Vec{X: 0, Y: 1})
	lp := c.addVertex(p, ar.at(p), edgeKind(0))
	lq := c.addVertex(q, ar.at(q), edgeKind(2))
	c.addChain(0, 1, []int{lp})
	c.addChain(1, 2, nil)
	c.addChain(2, 0, []int{lq})
	c.addSliced(p, q)
	c.triangulate()

	assertTiling(t, ar, c, 8)
	assert.True(t, hasEdge(c, p, q))
	assert.Len(t, c.triangles(), 3)
}

func TestCutSplitsSegmentThroughVertex(t *testing.T) {
	ar, c := cutFixture(t)
	a := ar.add(v3.Vec{X: 0.5, Y: 0.5})
	m := ar.add(v3.Vec{X: 1, Y: 1})
	b := ar.add(v3.Vec{X: 1.5, Y: 1.5})
	for _, id := range []int{a, m, b} {
		c.addVertex(id, ar.at(id), kindInterior)
	}
	for i := 0; i < 3; i++ {
		c.addChain(i, (i+1)%3, nil)
	}
	c.addSliced(a, b)
	c.triangulate()

	assert.ElementsMatch(t, []edgeKey{makeEdgeKey(a, m), makeEdgeKey(m, b)}, c.sliced)
	assert.True(t, hasEdge(c, a, m))
	assert.True(t, hasEdge(c, m, b))
	assertTiling(t, ar, c, 8)
}

func TestCutFacesAreAtomic(t *testing.T) {
	ar, c := cutFixture(t)
	pts := []v3.Vec{{X: 0.7, Y: 0.9}, {X: 2.1, Y: 0.4}, {X: 1.2, Y: 2.2}, {X: 0.3, Y: 0.2}}
	for _, p := range pts {
		id := ar.add(p)
		c.addVertex(id, p, kindInterior)
	}
	for i := 0; i < 3; i++ {
		c.addChain(i, (i+1)%3, nil)
	}
	c.triangulate()

	for _, f := range c.tris {
		assert.True(t, c.atomic(f[0], f[1], f[2]), "face %v contains a vertex", f)
	}
	// 3 corners and 4 interior points: 2*4 + 1 faces.
	assert.Len(t, c.triangles(), 9)
	assertTiling(t, ar, c, 8)
}

func TestSnapToEdge(t *testing.T) {
	assert.Equal(t, v2.Vec{X: 0.3, Y: 0}, snapToEdge(v2.Vec{X: 0.3, Y: 1e-13}, kindEdge0))
	uv := snapToEdge(v2.Vec{X: 0.3, Y: 0.7 + 2e-13}, kindEdge0+1)
	assert.InDelta(t, 1, uv.X+uv.Y, 1e-15)
	assert.InDelta(t, 0.3, uv.X, 1e-12)
	assert.Equal(t, v2.Vec{X: 0, Y: 0.4}, snapToEdge(v2.Vec{X: -1e-13, Y: 0.4}, kindEdge0+2))
	assert.Equal(t, v2.Vec{X: 0.2, Y: 0.2}, snapToEdge(v2.Vec{X: 0.2, Y: 0.2}, kindInterior))
}
