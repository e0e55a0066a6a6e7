package csg

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chazu/carve/pkg/model"
)

// offset places the second cube so that no face, edge or vertex of one
// cube is coplanar with or touches one of the other.
var offset = v3.Vec{X: 0.5, Y: 0.31, Z: 0.17}

const overlap = 0.5 * 0.69 * 0.83

func unitCube(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.Box(v3.Vec{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)
	return m
}

func cubeInputs(t *testing.T, at v3.Vec) (Input, Input) {
	a := NewInput(unitCube(t))
	b := NewInput(unitCube(t))
	b.Transform = sdf.Translate3d(at)
	return a, b
}

// assertWatertight checks that every directed edge, keyed by exact
// position, is matched by one opposite edge.
func assertWatertight(t *testing.T, m *model.Model) {
	t.Helper()
	directed := make(map[[2]v3.Vec]int)
	for i := range m.Triangles {
		c := m.Corners(i)
		for k := 0; k < 3; k++ {
			directed[[2]v3.Vec{c[k], c[(k+1)%3]}]++
		}
	}
	for e, n := range directed {
		assert.Equal(t, 1, n, "directed edge %v used %d times", e, n)
		assert.Equal(t, 1, directed[[2]v3.Vec{e[1], e[0]}], "edge %v has no twin", e)
	}
}

// onBoxSurface reports whether p lies on the surface of the axis-aligned
// box [lo, lo+1]^3.
func onBoxSurface(p, lo v3.Vec) bool {
	const eps = 1e-9
	q := p.Sub(lo)
	c := [3]float64{q.X, q.Y, q.Z}
	onFace := false
	for _, x := range c {
		if x < -eps || x > 1+eps {
			return false
		}
		if math.Abs(x) <= eps || math.Abs(x-1) <= eps {
			onFace = true
		}
	}
	return onFace
}

func TestComputeDisjoint(t *testing.T) {
	tests := []struct {
		name       string
		op         Operation
		wantFirst  float64
		wantSecond float64
	}{
		{"union keeps both", Union, 1, 1},
		{"intersect keeps nothing", Intersect, 0, 0},
		{"subtract keeps the first", Subtract, 1, 0},
		{"identity keeps both", Identity, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := cubeInputs(t, v3.Vec{X: 3})
			b.InvertNormals = tt.op == Subtract
			res, err := Compute(a, b, tt.op)
			require.NoError(t, err)

			assert.InDelta(t, tt.wantFirst, res.First.SignedVolume(), 1e-12)
			assert.InDelta(t, tt.wantSecond, res.Second.SignedVolume(), 1e-12)
			assert.Zero(t, res.Stats.Pairs)
			assert.Empty(t, res.CutEdges)
			assert.Empty(t, res.CutPoints)
			if tt.wantFirst > 0 {
				assert.Equal(t, 12, res.First.TriangleCount())
				assertWatertight(t, res.First)
			} else {
				assert.True(t, res.First.IsEmpty())
			}
		})
	}
}

func TestComputeOverlappingCubes(t *testing.T) {
	tests := []struct {
		name   string
		op     Operation
		invert bool
		want   float64
	}{
		{"union", Union, false, 2 - overlap},
		{"intersect", Intersect, false, overlap},
		{"subtract", Subtract, true, 1 - overlap},
		{"identity", Identity, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := cubeInputs(t, offset)
			b.InvertNormals = tt.invert
			res, err := Compute(a, b, tt.op, WithLogger(zaptest.NewLogger(t)))
			require.NoError(t, err)
			require.NoError(t, res.First.Validate())
			require.NoError(t, res.Second.Validate())

			merged := model.Merge(res.First, res.Second)
			assert.InDelta(t, tt.want, merged.SignedVolume(), 1e-9)
			if tt.op != Identity {
				assertWatertight(t, merged)
			}

			assert.Positive(t, res.Stats.Pairs)
			assert.Positive(t, res.Stats.Segments)
			assert.Equal(t, 2, res.Stats.Regions[0])
			assert.Equal(t, 2, res.Stats.Regions[1])
		})
	}
}

func TestComputeCutDiagnostics(t *testing.T) {
	a, b := cubeInputs(t, offset)
	res, err := Compute(a, b, Union)
	require.NoError(t, err)

	require.NotEmpty(t, res.CutEdges)
	require.NotEmpty(t, res.CutPoints)
	for _, p := range res.CutPoints {
		assert.True(t, onBoxSurface(p, v3.Vec{}), "cut point %v is off the first cube", p)
		assert.True(t, onBoxSurface(p, offset), "cut point %v is off the second cube", p)
	}

	seen := make(map[v3.Vec]bool)
	for _, p := range res.CutPoints {
		assert.False(t, seen[p], "cut point %v repeated", p)
		seen[p] = true
	}
	for _, e := range res.CutEdges {
		assert.True(t, seen[e[0]] && seen[e[1]], "edge %v has an unlisted endpoint", e)
	}

	// The seam is a closed loop: every cut point ends exactly two edges.
	degree := make(map[v3.Vec]int)
	for _, e := range res.CutEdges {
		degree[e[0]]++
		degree[e[1]]++
	}
	for p, d := range degree {
		assert.Equal(t, 2, d, "cut point %v", p)
	}
}

func TestComputeDeterministic(t *testing.T) {
	a, b := cubeInputs(t, offset)
	first, err := Compute(a, b, Subtract)
	require.NoError(t, err)
	second, err := Compute(a, b, Subtract)
	require.NoError(t, err)
	assert.Equal(t, first.First, second.First)
	assert.Equal(t, first.CutEdges, second.CutEdges)
}

func TestComputeDoesNotMutateInputs(t *testing.T) {
	a, b := cubeInputs(t, offset)
	before := b.Model.Clone()
	_, err := Compute(a, b, Union)
	require.NoError(t, err)
	assert.Equal(t, before, b.Model)
}

func TestComputeContainedOperand(t *testing.T) {
	outer, err := model.Box(v3.Vec{X: 4, Y: 4, Z: 4})
	require.NoError(t, err)
	inner := NewInput(unitCube(t))
	inner.Transform = sdf.Translate3d(v3.Vec{X: 1.3, Y: 1.2, Z: 1.1})

	res, err := Compute(NewInput(outer), inner, Union)
	require.NoError(t, err)
	assert.Zero(t, res.Stats.Segments)
	assert.InDelta(t, 64, res.First.SignedVolume(), 1e-9)
	assert.True(t, res.Second.IsEmpty(), "an enclosed operand vanishes in a union")

	inner.InvertNormals = true
	res, err = Compute(NewInput(outer), inner, Subtract)
	require.NoError(t, err)
	assert.InDelta(t, 63, model.Merge(res.First, res.Second).SignedVolume(), 1e-9)
}

func TestComputeCustomClassifier(t *testing.T) {
	a, b := cubeInputs(t, offset)
	var regions int
	a.Classifier = ClassifierFunc(func(r *Region) Behavior {
		regions++
		assert.Equal(t, 0, r.Operand)
		assert.NotEmpty(t, r.Triangles)
		return Normal
	})
	b.Classifier = ClassifierFunc(func(r *Region) Behavior {
		return Delete
	})

	res, err := Compute(a, b, Intersect)
	require.NoError(t, err)
	assert.Equal(t, 2, regions)
	assert.InDelta(t, 1, res.First.SignedVolume(), 1e-9, "every piece of the first cube is kept")
	assertWatertight(t, res.First)
	assert.True(t, res.Second.IsEmpty())
	assert.Equal(t, 2, res.Stats.Kept[0])
	assert.Equal(t, 2, res.Stats.Deleted[1])
}

func TestRegionContains(t *testing.T) {
	r := &Region{Other: unitCube(t)}
	assert.True(t, r.Contains(v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}))
	assert.True(t, r.Contains(v3.Vec{X: 0.1, Y: 0.9, Z: 0.2}))
	assert.False(t, r.Contains(v3.Vec{X: 1.5, Y: 0.5, Z: 0.5}))
	assert.False(t, r.Contains(v3.Vec{X: 0.5, Y: 0.5, Z: -0.01}))

	empty := &Region{Other: &model.Model{}}
	assert.False(t, empty.Contains(v3.Vec{}))
}

func TestMajorityVote(t *testing.T) {
	inside := [3]v3.Vec{{X: 0.2, Y: 0.2, Z: 0.5}, {X: 0.8, Y: 0.2, Z: 0.5}, {X: 0.2, Y: 0.8, Z: 0.5}}
	outside := [3]v3.Vec{{X: 2, Y: 2, Z: 2}, {X: 3, Y: 2, Z: 2}, {X: 2, Y: 3, Z: 2}}
	mv := &MajorityVote{Rand: rand.New(rand.NewSource(7)), Inside: Flip, Outside: Delete}

	r := &Region{Other: unitCube(t), Triangles: [][3]v3.Vec{inside}}
	assert.Equal(t, Flip, mv.Classify(r))

	r = &Region{Other: unitCube(t), Triangles: [][3]v3.Vec{outside}}
	assert.Equal(t, Delete, mv.Classify(r))

	r = &Region{Other: unitCube(t)}
	assert.Equal(t, Delete, mv.Classify(r), "empty regions take the outside behavior")
}

func TestMajorityVoteOnSurface(t *testing.T) {
	up := [3]v3.Vec{{X: 0.2, Y: 0.2, Z: 1}, {X: 0.8, Y: 0.2, Z: 1}, {X: 0.2, Y: 0.8, Z: 1}}
	down := [3]v3.Vec{up[0], up[2], up[1]}
	mv := &MajorityVote{Inside: Delete, Outside: Delete, Same: Normal, Opposite: Flip}

	r := &Region{Other: unitCube(t), Triangles: [][3]v3.Vec{up}}
	assert.Equal(t, SideSame, r.Side(0))
	assert.Equal(t, Normal, mv.Classify(r))

	r = &Region{Other: unitCube(t), Triangles: [][3]v3.Vec{down}}
	assert.Equal(t, SideOpposite, r.Side(0))
	assert.Equal(t, Flip, mv.Classify(r))
}

func TestRegionSide(t *testing.T) {
	tri := func(z float64) [3]v3.Vec {
		return [3]v3.Vec{{X: 0.2, Y: 0.2, Z: z}, {X: 0.8, Y: 0.2, Z: z}, {X: 0.2, Y: 0.8, Z: z}}
	}
	r := &Region{Other: unitCube(t), Triangles: [][3]v3.Vec{tri(0.5), tri(2), tri(1), tri(0)}}
	assert.Equal(t, SideInside, r.Side(0))
	assert.Equal(t, SideOutside, r.Side(1))
	assert.Equal(t, SideSame, r.Side(2), "top face points up")
	assert.Equal(t, SideOpposite, r.Side(3), "bottom face points down")
	assert.InDelta(t, 1, r.Normal(0).Z, 1e-12)
}

func TestComputeSelfSubtract(t *testing.T) {
	// Every face of each cube lies on a same-facing face of the other, and
	// a subtraction keeps neither copy.
	a := NewInput(unitCube(t))
	b := NewInput(unitCube(t))
	b.InvertNormals = true
	res, err := Compute(a, b, Subtract)
	require.NoError(t, err)
	assert.True(t, res.First.IsEmpty())
	assert.True(t, res.Second.IsEmpty())
	assert.Equal(t, [2]int{6, 6}, res.Stats.Regions, "one region per face")
	assert.Equal(t, [2]int{6, 6}, res.Stats.Deleted)
	for _, p := range res.CutPoints {
		assert.True(t, onBoxSurface(p, v3.Vec{}), "cut point %v is off the cube", p)
	}
}

// boxEdges returns the twelve edges of the box [lo, hi].
func boxEdges(lo, hi v3.Vec) [][2]v3.Vec {
	pick := func(mask int) v3.Vec {
		p := lo
		if mask&1 != 0 {
			p.X = hi.X
		}
		if mask&2 != 0 {
			p.Y = hi.Y
		}
		if mask&4 != 0 {
			p.Z = hi.Z
		}
		return p
	}
	var out [][2]v3.Vec
	for axis := 0; axis < 3; axis++ {
		bit := 1 << axis
		for mask := 0; mask < 8; mask++ {
			if mask&bit == 0 {
				out = append(out, [2]v3.Vec{pick(mask), pick(mask | bit)})
			}
		}
	}
	return out
}

// seamLines merges collinear cut edges onto the given lines and returns,
// per line, the fraction of its length the seam covers. Cut edges lying
// on none of the lines are reported.
func seamLines(t *testing.T, edges []Segment, lines [][2]v3.Vec) []float64 {
	t.Helper()
	const tol = 1e-9
	spans := make([][][2]float64, len(lines))
	for _, e := range edges {
		found := false
		for i, l := range lines {
			d0, t0 := segmentDistance(e[0], l[0], l[1])
			d1, t1 := segmentDistance(e[1], l[0], l[1])
			if d0 <= tol && d1 <= tol {
				spans[i] = append(spans[i], [2]float64{math.Min(t0, t1), math.Max(t0, t1)})
				found = true
				break
			}
		}
		assert.True(t, found, "cut edge %v is off every expected seam line", e)
	}
	covered := make([]float64, len(lines))
	for i, s := range spans {
		sort.Slice(s, func(a, b int) bool { return s[a][0] < s[b][0] })
		for _, span := range s {
			if span[0] > covered[i]+tol {
				break
			}
			covered[i] = math.Max(covered[i], span[1])
		}
	}
	return covered
}

func TestComputeCoplanarCubes(t *testing.T) {
	// The cubes share four face planes. The overlap is the box
	// [0.5, 1] x [0, 1] x [0, 1].
	shift := v3.Vec{X: 0.5}
	tests := []struct {
		name   string
		op     Operation
		invert bool
		volume float64
		area   float64
	}{
		{"union", Union, false, 1.5, 8},
		{"intersect", Intersect, false, 0.5, 4},
		{"subtract", Subtract, true, 0.5, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := cubeInputs(t, shift)
			b.InvertNormals = tt.invert
			res, err := Compute(a, b, tt.op, WithLogger(zaptest.NewLogger(t)))
			require.NoError(t, err)

			merged := model.Merge(res.First, res.Second)
			require.NoError(t, merged.Validate())
			assert.InDelta(t, tt.volume, merged.SignedVolume(), 1e-9)
			assert.InDelta(t, tt.area, merged.SurfaceArea(), 1e-9)
			assertWatertight(t, merged)

			// Outside part, far end face and four shared-plane pieces.
			assert.Equal(t, [2]int{6, 6}, res.Stats.Regions)

			// The seam runs along all twelve edges of the overlap box: the
			// four edges parallel to the shift, where the shared planes
			// meet, and the two squares where each end face crosses the
			// other cube.
			lines := boxEdges(v3.Vec{X: 0.5}, v3.Vec{X: 1, Y: 1, Z: 1})
			covered := seamLines(t, res.CutEdges, lines)
			for i, l := range lines {
				assert.InDelta(t, 1, covered[i], 1e-9, "seam line %v", l)
			}
		})
	}
}

func TestComputeTouchingCubes(t *testing.T) {
	// Stacked cubes meet face to face with opposite normals.
	tests := []struct {
		name   string
		op     Operation
		invert bool
		volume float64
		empty  bool
	}{
		{"union", Union, false, 2, false},
		{"intersect", Intersect, false, 0, true},
		{"subtract", Subtract, true, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := cubeInputs(t, v3.Vec{Z: 1})
			b.InvertNormals = tt.invert
			res, err := Compute(a, b, tt.op)
			require.NoError(t, err)

			merged := model.Merge(res.First, res.Second)
			assert.Equal(t, tt.empty, merged.IsEmpty())
			assert.InDelta(t, tt.volume, merged.SignedVolume(), 1e-9)
			assertWatertight(t, merged)
			for _, e := range res.CutEdges {
				assert.InDelta(t, 1, e[0].Z, 1e-9, "cut edge %v leaves the shared face", e)
				assert.InDelta(t, 1, e[1].Z, 1e-9, "cut edge %v leaves the shared face", e)
			}
		})
	}
}

func TestComputeInterpolatesAttributes(t *testing.T) {
	a, b := cubeInputs(t, offset)
	res, err := Compute(a, b, Union)
	require.NoError(t, err)
	m := res.First
	for i, tri := range m.Triangles {
		fn := m.FaceNormal(i).Normalize()
		for k := 0; k < 3; k++ {
			n := m.Normals[tri.Normal[k]]
			assert.InDelta(t, 1, n.Length(), 1e-9)
			assert.InDelta(t, 1, fn.Dot(n), 1e-9, "flat faces keep their normal")
		}
	}
}

func TestInterpolateZeroNormal(t *testing.T) {
	// Corner normals that cancel leave no direction at the midpoint of the
	// first edge.
	bld := model.NewBuilder()
	p := [3]v3.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	bld.AddTriangle(
		model.Vertex{Position: p[0], Normal: v3.Vec{Z: 1}},
		model.Vertex{Position: p[1], Normal: v3.Vec{Z: -1}},
		model.Vertex{Position: p[2], Normal: v3.Vec{Z: 1}},
	)
	sheet := bld.Build()

	ar := newArena(DefaultEpsilon)
	ids := ar.addAll(sheet.Positions)
	mid := ar.add(v3.Vec{X: 0.5})
	asm := newAssembler(sheet, ar)

	assert.NotPanics(t, func() {
		asm.add(outTriangle{v: [3]int{ids[0], ids[1], ids[2]}, src: 0, cut: true}, Normal)
	})
	defer func() {
		r := recover()
		ie, ok := r.(invariantError)
		require.True(t, ok, "recovered %v", r)
		assert.True(t, errors.Is(ie.err, ErrZeroNormal))
	}()
	asm.add(outTriangle{v: [3]int{ids[0], mid, ids[2]}, src: 0, cut: true}, Normal)
}

func TestComputeInvalidInput(t *testing.T) {
	cube := unitCube(t)
	bad := cube.Clone()
	bad.Triangles[0].Vertex[1] = 99

	tests := []struct {
		name          string
		first, second *model.Model
	}{
		{"nil first", nil, cube},
		{"nil second", cube, nil},
		{"index out of range", bad, cube},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(Input{Model: tt.first}, Input{Model: tt.second}, Union)
			assert.ErrorIs(t, err, model.ErrInvalidModel)
		})
	}
}

func TestParseOperation(t *testing.T) {
	tests := []struct {
		in      string
		want    Operation
		wantErr bool
	}{
		{"union", Union, false},
		{"Intersection", Intersect, false},
		{"difference", Subtract, false},
		{"subtract", Subtract, false},
		{"identity", Identity, false},
		{"fo|si", Subtract, false},
		{"fi", KeepFirstInsideSecond, false},
		{" so | fo ", Union, false},
		{"xor", 0, true},
		{"fi|zz", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOperation(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownOperation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOperationString(t *testing.T) {
	assert.Equal(t, "union", Union.String())
	assert.Equal(t, "subtract", Subtract.String())
	assert.Equal(t, "fi|so", (KeepFirstInsideSecond | KeepSecondOutsideFirst).String())
	assert.Equal(t, "none", Operation(0).String())
}

func TestOperationInversions(t *testing.T) {
	tests := []struct {
		op            Operation
		first, second bool
	}{
		{Union, false, false},
		{Intersect, false, false},
		{Subtract, false, true},
		{KeepFirstInsideSecond | KeepSecondOutsideFirst, true, false},
		{Identity, false, false},
	}
	for _, tt := range tests {
		first, second := tt.op.Inversions()
		assert.Equal(t, tt.first, first, "%s first", tt.op)
		assert.Equal(t, tt.second, second, "%s second", tt.op)
	}
}

func TestOperationBehaviors(t *testing.T) {
	in, out := Subtract.behaviors(0, false)
	assert.Equal(t, Delete, in)
	assert.Equal(t, Normal, out)

	in, out = Subtract.behaviors(1, true)
	assert.Equal(t, Flip, in)
	assert.Equal(t, Delete, out)

	// Inversion is per operand.
	in, out = Union.behaviors(0, false)
	assert.Equal(t, Delete, in)
	assert.Equal(t, Normal, out)
}

func TestOperationSurfaceBehaviors(t *testing.T) {
	tests := []struct {
		op             Operation
		operand        int
		invert         bool
		same, opposite Behavior
	}{
		{Union, 0, false, Normal, Delete},
		{Union, 1, false, Delete, Delete},
		{Intersect, 0, false, Normal, Delete},
		{Intersect, 1, false, Delete, Delete},
		{Subtract, 0, false, Delete, Normal},
		{Subtract, 1, true, Delete, Delete},
		{KeepFirstInsideSecond | KeepSecondOutsideFirst, 0, true, Delete, Delete},
		{KeepFirstInsideSecond | KeepSecondOutsideFirst, 1, false, Delete, Normal},
		{Identity, 1, false, Normal, Normal},
		{0, 0, false, Delete, Delete},
	}
	for _, tt := range tests {
		same, opposite := tt.op.surfaceBehaviors(tt.operand, tt.invert)
		assert.Equal(t, tt.same, same, "%s operand %d same", tt.op, tt.operand)
		assert.Equal(t, tt.opposite, opposite, "%s operand %d opposite", tt.op, tt.operand)
	}
}
