// Package tessellate walks a design graph and produces triangle meshes
// using a geometry kernel. One mesh is produced per part.
package tessellate

import (
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/chazu/carve/pkg/csg"
	"github.com/chazu/carve/pkg/graph"
	"github.com/chazu/carve/pkg/kernel"
	"github.com/chazu/carve/pkg/model"
)

// DefaultSegments is the facet count of round primitives that do not set
// their own.
const DefaultSegments = 32

// transformStack accumulates spatial transforms during graph traversal.
// Entries are outermost first.
type transformStack struct {
	entries []graph.TransformData
}

func newTransformStack() *transformStack {
	return &transformStack{}
}

func (ts *transformStack) push(td graph.TransformData) {
	ts.entries = append(ts.entries, td)
}

func (ts *transformStack) pop() {
	if len(ts.entries) > 0 {
		ts.entries = ts.entries[:len(ts.entries)-1]
	}
}

// apply places s in world space. The innermost transform applies first;
// within one transform the rotation applies before the translation.
func (ts *transformStack) apply(k kernel.Kernel, s kernel.Solid) kernel.Solid {
	for i := len(ts.entries) - 1; i >= 0; i-- {
		td := ts.entries[i]
		if r := td.Rotation; r != nil && *r != (graph.Vec3{}) {
			s = k.Rotate(s, r[0], r[1], r[2])
		}
		if t := td.Translation; t != nil && *t != (graph.Vec3{}) {
			s = k.Translate(s, t[0], t[1], t[2])
		}
	}
	return s
}

// combiner is implemented by kernels that accept any keep-flag operation.
type combiner interface {
	Combine(a, b kernel.Solid, op csg.Operation) (kernel.Solid, error)
}

// part is a named solid collected during the walk.
type part struct {
	name  string
	solid kernel.Solid
}

// Option configures Tessellate.
type Option func(*walker)

// WithSegments sets the facet count for round primitives that leave it 0.
func WithSegments(n int) Option {
	return func(w *walker) {
		if n >= model.MinSegments {
			w.segments = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *walker) {
		if l != nil {
			w.log = l
		}
	}
}

type walker struct {
	g        *graph.DesignGraph
	k        kernel.Kernel
	ts       *transformStack
	segments int
	log      *zap.Logger
}

// Tessellate walks the design graph and produces one triangle mesh per
// part using the provided geometry kernel. A part is a root, or a child of
// a group that is not itself a boolean operand. The tessellator is
// read-only and never mutates the graph.
func Tessellate(g *graph.DesignGraph, k kernel.Kernel, opts ...Option) ([]*kernel.Mesh, error) {
	if g == nil {
		return nil, nil
	}

	w := &walker{g: g, k: k, ts: newTransformStack(), segments: DefaultSegments, log: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}

	var parts []part
	for _, rootID := range g.Roots {
		root := g.Get(rootID)
		if root == nil {
			continue
		}
		collected, err := w.walk(root)
		if err != nil {
			return nil, fmt.Errorf("tessellate: error walking root %s: %w", rootID.Short(), err)
		}
		parts = append(parts, collected...)
	}

	meshes := make([]*kernel.Mesh, 0, len(parts))
	for _, p := range parts {
		mesh, err := k.ToMesh(p.solid)
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed for part %s: %w", p.name, err)
		}
		mesh.PartName = p.name
		meshes = append(meshes, mesh)
	}
	w.log.Debug("tessellated",
		zap.Int("parts", len(meshes)),
		zap.Strings("names", lo.Map(parts, func(p part, _ int) string { return p.name })),
	)
	return meshes, nil
}

// walk recursively traverses a node and its children, collecting parts.
func (w *walker) walk(n *graph.Node) ([]part, error) {
	switch n.Kind {
	case graph.NodePrimitive:
		s, err := w.primitive(n)
		if err != nil {
			return nil, err
		}
		return []part{{name: partName(n), solid: s}}, nil

	case graph.NodeTransform:
		td, ok := n.Data.(graph.TransformData)
		if !ok {
			return nil, fmt.Errorf("transform node %s has unexpected data type %T", n.ID.Short(), n.Data)
		}
		w.ts.push(td)
		defer w.ts.pop()
		return w.walkChildren(n)

	case graph.NodeGroup:
		return w.walkChildren(n)

	case graph.NodeBoolean:
		s, err := w.boolean(n)
		if err != nil {
			return nil, err
		}
		return []part{{name: partName(n), solid: s}}, nil

	default:
		return nil, fmt.Errorf("unknown node kind: %v", n.Kind)
	}
}

func (w *walker) walkChildren(n *graph.Node) ([]part, error) {
	var parts []part
	for _, child := range w.g.Children(n) {
		collected, err := w.walk(child)
		if err != nil {
			return nil, err
		}
		parts = append(parts, collected...)
	}
	return parts, nil
}

// operand collapses a boolean child into one solid; groups are unioned.
func (w *walker) operand(n *graph.Node) (kernel.Solid, error) {
	parts, err := w.walk(n)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("boolean operand %s produced no geometry", n.ID.Short())
	}
	s := parts[0].solid
	for _, p := range parts[1:] {
		if s, err = w.k.Union(s, p.solid); err != nil {
			return nil, fmt.Errorf("union of operand %s: %w", n.ID.Short(), err)
		}
	}
	return s, nil
}

// boolean evaluates both operands in world space and combines them.
func (w *walker) boolean(n *graph.Node) (kernel.Solid, error) {
	bd, ok := n.Data.(graph.BooleanData)
	if !ok {
		return nil, fmt.Errorf("boolean node %s has unexpected data type %T", n.ID.Short(), n.Data)
	}
	children := w.g.Children(n)
	if len(children) != 2 {
		return nil, fmt.Errorf("boolean node %s has %d children, want 2", n.ID.Short(), len(children))
	}
	a, err := w.operand(children[0])
	if err != nil {
		return nil, err
	}
	b, err := w.operand(children[1])
	if err != nil {
		return nil, err
	}

	var s kernel.Solid
	switch bd.Op {
	case csg.Union:
		s, err = w.k.Union(a, b)
	case csg.Intersect:
		s, err = w.k.Intersection(a, b)
	case csg.Subtract:
		s, err = w.k.Difference(a, b)
	default:
		c, ok := w.k.(combiner)
		if !ok {
			return nil, fmt.Errorf("boolean node %s: operation %s has no kernel equivalent", n.ID.Short(), bd.Op)
		}
		s, err = c.Combine(a, b, bd.Op)
	}
	if err != nil {
		return nil, fmt.Errorf("boolean node %s: %w", n.ID.Short(), err)
	}
	return s, nil
}

// primitive creates geometry for a primitive node, placed by the stack.
func (w *walker) primitive(n *graph.Node) (kernel.Solid, error) {
	data, ok := n.Data.(graph.PrimitiveData)
	if !ok {
		return nil, fmt.Errorf("primitive node %s has unsupported data type %T", n.ID.Short(), n.Data)
	}
	segments := data.Segments
	if segments == 0 {
		segments = w.segments
	}

	var (
		s   kernel.Solid
		err error
	)
	switch data.Shape {
	case graph.ShapeBox:
		if data.Round > 0 {
			s, err = w.k.RoundedBox(data.Size[0], data.Size[1], data.Size[2], data.Round)
		} else {
			s, err = w.k.Box(data.Size[0], data.Size[1], data.Size[2])
		}
	case graph.ShapeCylinder:
		s, err = w.k.Cylinder(data.Height, data.Radius, segments)
	case graph.ShapeSphere:
		s, err = w.k.Sphere(data.Radius, segments)
	default:
		return nil, fmt.Errorf("primitive node %s has unknown shape %s", n.ID.Short(), data.Shape)
	}
	if err != nil {
		return nil, fmt.Errorf("primitive node %s: %w", n.ID.Short(), err)
	}
	return w.ts.apply(w.k, s), nil
}

// partName prefers the node's Name and falls back to the short ID.
func partName(n *graph.Node) string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID.Short()
}
