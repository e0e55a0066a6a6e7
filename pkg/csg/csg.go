// Package csg computes Boolean combinations of two closed triangle meshes.
//
// Compute welds both operands into one vertex arena, finds candidate
// triangle pairs with a partition grid, cuts every triangle the other
// surface passes through, splits each operand into regions bounded by the
// intersection seam and keeps, flips or deletes each region according to
// the requested operation.
package csg

import (
	"fmt"
	"math/rand"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/chazu/carve/pkg/model"
)

// Input is one operand of a Boolean operation.
type Input struct {
	Model *model.Model
	// Transform places the model before the operation. The zero matrix is
	// treated as the identity.
	Transform sdf.M44
	// InvertNormals flips every kept region of this operand.
	InvertNormals bool
	// Classifier replaces the majority vote for this operand's regions.
	Classifier Classifier
}

// NewInput wraps m with the identity transform.
func NewInput(m *model.Model) Input {
	return Input{Model: m, Transform: sdf.Identity3d()}
}

func (in Input) transform() sdf.M44 {
	if in.Transform == (sdf.M44{}) {
		return sdf.Identity3d()
	}
	return in.Transform
}

// Segment is one edge of the intersection seam.
type Segment [2]v3.Vec

// Stats counts the work done by one invocation. Array fields are indexed
// by operand.
type Stats struct {
	Pairs        int
	Candidates   [2]int
	Segments     int
	Vertices     int
	CutTriangles [2]int
	Regions      [2]int
	Kept         [2]int
	Flipped      [2]int
	Deleted      [2]int
}

// Result holds the two output meshes and the seam diagnostics.
type Result struct {
	First  *model.Model
	Second *model.Model
	// CutEdges are the distinct seam edges of both operands.
	CutEdges []Segment
	// CutPoints are the distinct endpoints of CutEdges.
	CutPoints []v3.Vec
	Stats     Stats
}

type options struct {
	log      *zap.Logger
	rng      *rand.Rand
	samples  int
	maxDepth int
	eps      float64
}

// Option configures Compute.
type Option func(*options)

// WithLogger sets the logger for per-stage debug output.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRand sets the random source used by the majority vote.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithSamples sets the number of majority-vote samples per region.
func WithSamples(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.samples = n
		}
	}
}

// WithMaxDepth sets the subdivision depth of the partition grid.
func WithMaxDepth(d int) Option {
	return func(o *options) {
		if d >= 0 {
			o.maxDepth = d
		}
	}
}

// WithEpsilon sets the vertex weld distance.
func WithEpsilon(eps float64) Option {
	return func(o *options) {
		if eps > 0 {
			o.eps = eps
		}
	}
}

// Compute applies op to first and second. Each operand yields its own
// output mesh; merging them is left to the caller.
func Compute(first, second Input, op Operation, opts ...Option) (res *Result, err error) {
	o := options{
		log:      zap.NewNop(),
		samples:  DefaultSamples,
		maxDepth: DefaultMaxDepth,
		eps:      DefaultEpsilon,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(DefaultSeed))
	}

	in := [2]Input{first, second}
	for i := range in {
		if in[i].Model == nil {
			return nil, fmt.Errorf("csg: operand %d: %w: nil model", i, model.ErrInvalidModel)
		}
		if err := in[i].Model.Validate(); err != nil {
			return nil, fmt.Errorf("csg: operand %d: %w", i, err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(invariantError)
			if !ok {
				panic(r)
			}
			res, err = nil, fmt.Errorf("%s: %w", op, ie.err)
		}
	}()

	var ms [2]*model.Model
	for i := range in {
		ms[i] = in[i].Model.Transform(in[i].transform())
	}

	p := newPipeline(ms, op, o)
	for i := range in {
		p.invert[i] = in[i].InvertNormals
		p.classifier[i] = in[i].Classifier
	}
	return p.run(), nil
}

// pipeline carries the state of one Compute call.
type pipeline struct {
	ms         [2]*model.Model
	op         Operation
	o          options
	invert     [2]bool
	classifier [2]Classifier

	ar    *arena
	ids   [2][]int
	stats Stats
}

func newPipeline(ms [2]*model.Model, op Operation, o options) *pipeline {
	return &pipeline{ms: ms, op: op, o: o, ar: newArena(o.eps)}
}

func (p *pipeline) run() *Result {
	log := p.o.log.With(zap.Stringer("op", p.op))

	for i, m := range p.ms {
		p.ids[i] = p.ar.addAll(m.Positions)
	}

	var pairs []pair
	if !p.ms[0].IsEmpty() && !p.ms[1].IsEmpty() &&
		boxesOverlap(padBox(p.ms[0].Bounds(), p.o.eps), p.ms[1].Bounds()) {
		pairs = partition(p.ms[0], p.ms[1], p.o.maxDepth, p.o.eps)
	} else {
		log.Debug("bounds disjoint, skipping intersection")
	}
	p.stats.Pairs = len(pairs)
	log.Debug("partitioned", zap.Int("pairs", len(pairs)))

	first, second := candidates(pairs)
	p.stats.Candidates = [2]int{len(first), len(second)}
	var wm [2]*workMesh
	for i := range wm {
		wm[i] = buildWorkMesh(i, p.ms[i], p.ids[i], p.ar)
	}
	x := newIntersector(p.ar, p.o.eps)
	x.run(wm[0], wm[1], pairs)
	p.stats.Segments = x.segments
	log.Debug("intersected",
		zap.Ints("candidates", p.stats.Candidates[:]),
		zap.Int("segments", x.segments),
	)

	solids := [2]*solid{newSolid(p.ms[0], p.o.eps), newSolid(p.ms[1], p.o.eps)}
	var sliced []edgeKey
	var out [2]*model.Model
	for i := range out {
		soup, prohibited, seam := p.cut(i, wm[i])
		sliced = append(sliced, seam...)
		regions := buildRegions(soup, prohibited)
		p.stats.Regions[i] = len(regions)
		out[i] = p.trim(i, soup, regions, solids[1-i])
		log.Debug("trimmed",
			zap.Int("operand", i),
			zap.Int("cut", p.stats.CutTriangles[i]),
			zap.Int("regions", len(regions)),
			zap.Int("kept", p.stats.Kept[i]),
			zap.Int("flipped", p.stats.Flipped[i]),
			zap.Int("deleted", p.stats.Deleted[i]),
		)
	}
	p.stats.Vertices = p.ar.count()

	edges := lo.Uniq(sliced)
	points := lo.Uniq(lo.FlatMap(edges, func(k edgeKey, _ int) []int {
		return []int{k[0], k[1]}
	}))
	return &Result{
		First:  out[0],
		Second: out[1],
		CutEdges: lo.Map(edges, func(k edgeKey, _ int) Segment {
			return Segment{p.ar.at(k[0]), p.ar.at(k[1])}
		}),
		CutPoints: lo.Map(points, func(id int, _ int) v3.Vec {
			return p.ar.at(id)
		}),
		Stats: p.stats,
	}
}

// cut builds the output soup of one operand: untouched triangles pass
// through, triangles the seam reaches are replaced by their re-triangulation. It
// also returns the seam edges, which act as region barriers.
func (p *pipeline) cut(i int, wm *workMesh) ([]outTriangle, map[edgeKey]bool, []edgeKey) {
	m := p.ms[i]
	var soup []outTriangle
	prohibited := make(map[edgeKey]bool)
	var seam []edgeKey
	for t := range m.Triangles {
		v := triangleIDs(m, p.ids[i], t)
		if collapsed(v) {
			continue
		}
		wt := wm.tris[t]
		if wt == nil || !wt.ok || !wt.touched() {
			soup = append(soup, outTriangle{v: v, src: t})
			continue
		}
		c := cutWorkTriangle(wt, p.ar)
		p.stats.CutTriangles[i]++
		for _, tv := range c.triangles() {
			soup = append(soup, outTriangle{v: tv, src: t, cut: true})
		}
		for _, k := range c.sliced {
			prohibited[k] = true
		}
		seam = append(seam, c.sliced...)
	}
	return soup, prohibited, seam
}

// trim classifies each region and assembles the survivors.
func (p *pipeline) trim(i int, soup []outTriangle, regions [][]int, other *solid) *model.Model {
	cls := p.classifier[i]
	if cls == nil {
		inside, outside := p.op.behaviors(i, p.invert[i])
		same, opposite := p.op.surfaceBehaviors(i, p.invert[i])
		cls = &MajorityVote{
			Samples:  p.o.samples,
			Rand:     p.o.rng,
			Inside:   inside,
			Outside:  outside,
			Same:     same,
			Opposite: opposite,
		}
	}
	asm := newAssembler(p.ms[i], p.ar)
	for _, region := range regions {
		r := &Region{Operand: i, Other: p.ms[1-i], other: other}
		r.Triangles = make([][3]v3.Vec, len(region))
		for j, t := range region {
			v := soup[t].v
			r.Triangles[j] = [3]v3.Vec{p.ar.at(v[0]), p.ar.at(v[1]), p.ar.at(v[2])}
		}
		b := cls.Classify(r)
		switch b {
		case Normal:
			p.stats.Kept[i]++
		case Flip:
			p.stats.Flipped[i]++
		default:
			p.stats.Deleted[i]++
		}
		for _, t := range region {
			asm.add(soup[t], b)
		}
	}
	return asm.build()
}
