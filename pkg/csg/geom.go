package csg

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Tolerances for predicates evaluated in a triangle's own (u, v)
// parametrization, where the triangle spans the unit right triangle.
const (
	paramEps     = 1e-12
	collinearEps = 1e-10
	areaEps      = 1e-14
)

// component returns coordinate i (0=X, 1=Y, 2=Z) of v.
func component(v v3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// boxesOverlap reports whether two boxes intersect, touching included.
func boxesOverlap(a, b sdf.Box3) bool {
	return a.Min.X <= b.Max.X && b.Min.X <= a.Max.X &&
		a.Min.Y <= b.Max.Y && b.Min.Y <= a.Max.Y &&
		a.Min.Z <= b.Max.Z && b.Min.Z <= a.Max.Z
}

// boxIntersection returns the overlap of two boxes. The result is only
// meaningful when boxesOverlap(a, b) holds.
func boxIntersection(a, b sdf.Box3) sdf.Box3 {
	return sdf.Box3{Min: a.Min.Max(b.Min), Max: a.Max.Min(b.Max)}
}

// padBox grows a box by pad on every side.
func padBox(b sdf.Box3, pad float64) sdf.Box3 {
	d := v3.Vec{X: pad, Y: pad, Z: pad}
	return sdf.Box3{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// triangleBox returns the bounding box of three points grown by pad.
func triangleBox(p [3]v3.Vec, pad float64) sdf.Box3 {
	bb := sdf.Box3{Min: p[0].Min(p[1]).Min(p[2]), Max: p[0].Max(p[1]).Max(p[2])}
	return padBox(bb, pad)
}

// plane is a triangle's supporting plane in unit-normal/offset form:
// points x on the plane satisfy normal.Dot(x) == offset.
type plane struct {
	normal v3.Vec
	offset float64
}

// trianglePlane returns the supporting plane of a, b, c. The second result
// is false for triangles of zero area.
func trianglePlane(a, b, c v3.Vec) (plane, bool) {
	n := b.Sub(a).Cross(c.Sub(a))
	l := n.Length()
	if l == 0 || math.IsNaN(l) {
		return plane{}, false
	}
	n = n.DivScalar(l)
	return plane{normal: n, offset: n.Dot(a)}, true
}

// triangleCoords expresses p in the basis (b-a, c-a) of the triangle with
// unit normal n: p ≈ a + x*(b-a) + y*(c-a). Points off the plane are
// projected along n. The second result is false for degenerate triangles.
func triangleCoords(p, a, b, c, n v3.Vec) (v2.Vec, bool) {
	ab := b.Sub(a)
	ac := c.Sub(a)
	pp := ac.Cross(n)
	qq := ab.Cross(n)
	dx := pp.Dot(ab)
	dy := qq.Dot(ac)
	if dx == 0 || dy == 0 {
		return v2.Vec{}, false
	}
	rel := p.Sub(a)
	return v2.Vec{X: pp.Dot(rel) / dx, Y: qq.Dot(rel) / dy}, true
}

// insideCoords reports whether triangle coordinates fall inside the
// triangle, boundary included.
func insideCoords(uv v2.Vec) bool {
	return uv.X >= 0 && uv.Y >= 0 && uv.X+uv.Y <= 1
}

// Tolerances for 3D predicates that do not scale with eps.
const (
	// parallelEps bounds the squared sine of the angle between two unit
	// normals treated as parallel.
	parallelEps = 1e-18
	// flatEps bounds 1-cos of the angle between neighbouring triangles
	// that continue one flat patch.
	flatEps = 1e-9
)

// distances returns the signed distances of p's corners from pl. Values
// within eps are snapped to zero.
func distances(p [3]v3.Vec, pl plane, eps float64) [3]float64 {
	var d [3]float64
	for i := range p {
		d[i] = pl.normal.Dot(p[i]) - pl.offset
		if math.Abs(d[i]) <= eps {
			d[i] = 0
		}
	}
	return d
}

// coplanar reports whether each triangle lies within eps of the other's
// plane.
func coplanar(a, b [3]v3.Vec, pa, pb plane, eps float64) bool {
	return distances(a, pb, eps) == [3]float64{} && distances(b, pa, eps) == [3]float64{}
}

// planeSection returns where triangle p meets pl: the corners on the plane
// and the points where edges cross it.
func planeSection(p [3]v3.Vec, pl plane, eps float64) []v3.Vec {
	d := distances(p, pl, eps)
	var out []v3.Vec
	for i := 0; i < 3; i++ {
		j := (i + 1) % 3
		if d[i] == 0 {
			out = append(out, p[i])
		}
		if d[i]*d[j] < 0 {
			s := d[i] / (d[i] - d[j])
			out = append(out, p[i].Add(p[j].Sub(p[i]).MulScalar(s)))
		}
	}
	return out
}

// linePoint is a point with its parameter along a line direction.
type linePoint struct {
	p v3.Vec
	t float64
}

// extent returns the points of ps with the lowest and highest projection
// onto dir.
func extent(ps []v3.Vec, dir v3.Vec) (lo, hi linePoint) {
	for i, p := range ps {
		lp := linePoint{p: p, t: dir.Dot(p)}
		if i == 0 || lp.t < lo.t {
			lo = lp
		}
		if i == 0 || lp.t > hi.t {
			hi = lp
		}
	}
	return lo, hi
}

// sectionSegment returns the segment shared by two triangles whose planes
// cross. Each triangle meets the other's plane in an interval of the
// planes' common line; the result is the overlap of the two intervals.
// Overlaps of length eps or less are dropped.
func sectionSegment(a, b [3]v3.Vec, pa, pb plane, eps float64) ([2]v3.Vec, bool) {
	dir := pa.normal.Cross(pb.normal)
	if dir.Length2() <= parallelEps {
		return [2]v3.Vec{}, false
	}
	dir = dir.Normalize()
	sa := planeSection(a, pb, eps)
	sb := planeSection(b, pa, eps)
	if len(sa) == 0 || len(sb) == 0 {
		return [2]v3.Vec{}, false
	}
	lo, hi := extent(sa, dir)
	loB, hiB := extent(sb, dir)
	if loB.t > lo.t {
		lo = loB
	}
	if hiB.t < hi.t {
		hi = hiB
	}
	if hi.t-lo.t <= eps {
		return [2]v3.Vec{}, false
	}
	return [2]v3.Vec{lo.p, hi.p}, true
}

// clipSegment clips p0-p1 to the triangle tri with unit normal n. The
// segment is assumed to lie in the triangle's plane. Each edge bounds a
// half-plane whose inward normal is n x (b-a); a segment running along an
// edge is kept. Results of length eps or less are dropped.
func clipSegment(p0, p1 v3.Vec, tri [3]v3.Vec, n v3.Vec, eps float64) ([2]v3.Vec, bool) {
	d := p1.Sub(p0)
	l := d.Length()
	if l <= eps {
		return [2]v3.Vec{}, false
	}
	lo, hi := 0.0, 1.0
	for k := 0; k < 3; k++ {
		a, b := tri[k], tri[(k+1)%3]
		m := n.Cross(b.Sub(a))
		ml := m.Length()
		if ml == 0 {
			return [2]v3.Vec{}, false
		}
		m = m.DivScalar(ml)
		g0 := m.Dot(p0.Sub(a))
		dg := m.Dot(d)
		if math.Abs(dg) <= paramEps*l {
			if g0 < -eps {
				return [2]v3.Vec{}, false
			}
			continue
		}
		s := -g0 / dg
		if dg > 0 {
			lo = math.Max(lo, s)
		} else {
			hi = math.Min(hi, s)
		}
	}
	if (hi-lo)*l <= eps {
		return [2]v3.Vec{}, false
	}
	return [2]v3.Vec{p0.Add(d.MulScalar(lo)), p0.Add(d.MulScalar(hi))}, true
}

// segmentDistance returns the distance from p to the segment a-b and the
// parameter of the closest point.
func segmentDistance(p, a, b v3.Vec) (dist, t float64) {
	d := b.Sub(a)
	dd := d.Length2()
	if dd == 0 {
		return p.Sub(a).Length(), 0
	}
	t = math.Max(0, math.Min(1, p.Sub(a).Dot(d)/dd))
	return p.Sub(a.Add(d.MulScalar(t))).Length(), t
}

// onTriangle reports whether p lies within eps of the triangle tri.
func onTriangle(p v3.Vec, tri [3]v3.Vec, pl plane, eps float64) bool {
	if math.Abs(pl.normal.Dot(p)-pl.offset) > eps {
		return false
	}
	for k := 0; k < 3; k++ {
		a, b := tri[k], tri[(k+1)%3]
		m := pl.normal.Cross(b.Sub(a))
		ml := m.Length()
		if ml == 0 || m.Dot(p.Sub(a))/ml < -eps {
			return false
		}
	}
	return true
}

// rayTriangle returns the ray parameter at which origin+t*dir meets the
// triangle. Hits on the triangle's boundary count.
func rayTriangle(origin, dir v3.Vec, tri [3]v3.Vec, pl plane) (float64, bool) {
	den := dir.Dot(pl.normal)
	if den == 0 {
		return 0, false
	}
	t := (pl.offset - origin.Dot(pl.normal)) / den
	hit := origin.Add(dir.MulScalar(t))
	uv, ok := triangleCoords(hit, tri[0], tri[1], tri[2], pl.normal)
	if !ok || !insideCoords(uv) {
		return 0, false
	}
	return t, true
}

// cross2 is the z component of the 3D cross product of two planar vectors.
func cross2(a, b v2.Vec) float64 {
	return a.X*b.Y - a.Y*b.X
}

func dot2(a, b v2.Vec) float64 {
	return a.X*b.X + a.Y*b.Y
}

func sub2(a, b v2.Vec) v2.Vec {
	return v2.Vec{X: a.X - b.X, Y: a.Y - b.Y}
}

// segmentsIntersect2D reports whether segments a0-a1 and b0-b1 share any
// point, endpoints included. Each segment is put in normal/offset form and
// the other's endpoints are solved against it; collinear segments
// intersect when their projections overlap.
func segmentsIntersect2D(a0, a1, b0, b1 v2.Vec) bool {
	da := sub2(a1, a0)
	db := sub2(b1, b0)
	la := math.Sqrt(dot2(da, da))
	lb := math.Sqrt(dot2(db, db))
	if la == 0 || lb == 0 {
		return false
	}
	na := v2.Vec{X: -da.Y / la, Y: da.X / la}
	nb := v2.Vec{X: -db.Y / lb, Y: db.X / lb}
	oa := dot2(na, a0)
	ob := dot2(nb, b0)

	den := dot2(nb, da)
	if math.Abs(den) <= paramEps*la {
		// Parallel: only collinear segments can meet.
		if math.Abs(dot2(na, b0)-oa) > collinearEps {
			return false
		}
		dd := dot2(da, da)
		t0 := dot2(sub2(b0, a0), da) / dd
		t1 := dot2(sub2(b1, a0), da) / dd
		return math.Max(t0, t1) >= 0 && math.Min(t0, t1) <= 1
	}
	s := (ob - dot2(nb, a0)) / den
	t := (oa - dot2(na, b0)) / dot2(na, db)
	return s >= 0 && s <= 1 && t >= 0 && t <= 1
}

// passesThrough reports whether p lies on the open segment a-b.
func passesThrough(p, a, b v2.Vec) bool {
	d := sub2(b, a)
	dd := dot2(d, d)
	if dd == 0 {
		return false
	}
	rel := sub2(p, a)
	t := dot2(rel, d) / dd
	if t <= paramEps || t >= 1-paramEps {
		return false
	}
	return math.Abs(cross2(d, rel))/math.Sqrt(dd) <= collinearEps
}
