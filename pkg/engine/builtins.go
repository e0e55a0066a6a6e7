package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/carve/pkg/csg"
	"github.com/chazu/carve/pkg/graph"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms carve Lisp source code before passing it to
// zygomys. It performs three transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: pin-hole -> pin_hole
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
//  3. Line comments: ; and ;; become //, which is what zygomys reads.
//
// All three respect string literal boundaries.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpPrimitive wraps a graph.PrimitiveData so it can be returned from
// `box`, `cylinder` and `sphere` and consumed by `defpart` or any builtin
// that takes a solid.
type sexpPrimitive struct {
	data graph.PrimitiveData
}

func (p *sexpPrimitive) SexpString(ps *zygo.PrintState) string {
	d := p.data
	switch d.Shape {
	case graph.ShapeBox:
		return fmt.Sprintf("(box %gx%gx%g)", d.Size[0], d.Size[1], d.Size[2])
	case graph.ShapeCylinder:
		return fmt.Sprintf("(cylinder h=%g r=%g)", d.Height, d.Radius)
	default:
		return fmt.Sprintf("(%s r=%g)", d.Shape, d.Radius)
	}
}
func (p *sexpPrimitive) Type() *zygo.RegisteredType { return nil }

// sexpNodeRef wraps a graph.NodeID so it can be passed between builtins.
type sexpNodeRef struct {
	id   graph.NodeID
	name string // human-readable name for error messages
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(noderef %q)", n.name)
	}
	return fmt.Sprintf("(noderef %s)", n.id.Short())
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a graph.Vec3.
type sexpVec3 struct {
	vec graph.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec[0], v.vec[1], v.vec[2])
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// arg returns the keyword argument name, or the positional argument at pos
// when the keyword is absent. pos < 0 disables the positional fallback.
func (pa kwArgs) arg(name string, pos int) (zygo.Sexp, bool) {
	if v, ok := pa.kw[name]; ok {
		return v, true
	}
	if pos >= 0 && pos < len(pa.positional) {
		return pa.positional[pos], true
	}
	return nil, false
}

// float reads an optional numeric argument into dst.
func (pa kwArgs) float(name string, pos int, dst *float64) error {
	v, ok := pa.arg(name, pos)
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = f
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer from a SexpInt.
func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_union) and plain strings ("union").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (graph.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return graph.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// ---------------------------------------------------------------------------
// Graph construction
// ---------------------------------------------------------------------------

// builder holds the graph under construction for one evaluation. Anonymous
// node IDs come from per-kind counters, so evaluating the same source twice
// yields the same IDs.
type builder struct {
	g     *graph.DesignGraph
	seq   map[string]int
	parts []graph.NodeID // defpart order
}

func newBuilder() *builder {
	return &builder{g: graph.New(), seq: make(map[string]int)}
}

// anonID returns the next anonymous ID for the given node kind.
func (b *builder) anonID(kind string) graph.NodeID {
	b.seq[kind]++
	return graph.NewNodeID(fmt.Sprintf("%s/_anon_%d", kind, b.seq[kind]))
}

// node resolves a solid argument to a node ID. Inline primitives become
// anonymous primitive nodes.
func (b *builder) node(s zygo.Sexp) (graph.NodeID, error) {
	switch v := s.(type) {
	case *sexpNodeRef:
		return v.id, nil
	case *sexpPrimitive:
		id := b.anonID(v.data.Shape.String())
		b.g.AddNode(&graph.Node{ID: id, Kind: graph.NodePrimitive, Data: v.data})
		return id, nil
	}
	return "", fmt.Errorf("expected solid or node reference, got %T (%s)", s, s.SexpString(nil))
}

// finish returns the graph. Without an explicit assembly, every defpart
// that no other node uses becomes a root.
func (b *builder) finish() *graph.DesignGraph {
	if len(b.g.Roots) > 0 {
		return b.g
	}
	used := make(map[graph.NodeID]bool)
	for _, n := range b.g.Nodes {
		for _, c := range n.Children {
			used[c] = true
		}
	}
	for _, id := range b.parts {
		if !used[id] {
			b.g.AddRoot(id)
		}
	}
	return b.g
}

// transform wraps child in a transform node.
func (b *builder) transform(kind string, child graph.NodeID, td graph.TransformData) *sexpNodeRef {
	id := b.anonID(kind)
	b.g.AddNode(&graph.Node{
		ID:       id,
		Kind:     graph.NodeTransform,
		Children: []graph.NodeID{child},
		Data:     td,
	})
	return &sexpNodeRef{id: id}
}

// boolean folds operands left to right: (union a b c) is (union (union a b) c).
func (b *builder) boolean(fn string, op csg.Operation, operands []zygo.Sexp) (zygo.Sexp, error) {
	if len(operands) < 2 {
		return zygo.SexpNull, fmt.Errorf("%s requires at least 2 solids, got %d", fn, len(operands))
	}
	acc, err := b.node(operands[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: operand 1: %w", fn, err)
	}
	for i, s := range operands[1:] {
		next, err := b.node(s)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", fn, i+2, err)
		}
		id := b.anonID(fn)
		b.g.AddNode(&graph.Node{
			ID:       id,
			Kind:     graph.NodeBoolean,
			Children: []graph.NodeID{acc, next},
			Data:     graph.BooleanData{Op: op},
		})
		acc = id
	}
	return &sexpNodeRef{id: acc}, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs all carve DSL builtins into a zygomys environment.
// The builtins operate on the builder's DesignGraph, populating it during
// evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {
	g := b.g

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}

		var v graph.Vec3
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			v[i] = f
		}
		return &sexpVec3{vec: v}, nil
	})

	// -----------------------------------------------------------------------
	// (box 100 60 5 :round 1) or (box :size (vec3 100 60 5))
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		pd := graph.PrimitiveData{Shape: graph.ShapeBox}

		if v, ok := pa.kw["size"]; ok {
			size, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
			}
			pd.Size = size
		} else {
			if len(pa.positional) != 3 {
				return zygo.SexpNull, fmt.Errorf("box requires :size or 3 dimensions, got %d", len(pa.positional))
			}
			for i, axis := range []string{"x", "y", "z"} {
				f, err := toFloat64(pa.positional[i])
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("box: %s: %w", axis, err)
				}
				pd.Size[i] = f
			}
		}
		if err := pa.float("round", -1, &pd.Round); err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}

		return &sexpPrimitive{data: pd}, nil
	})

	// -----------------------------------------------------------------------
	// (cylinder :height 20 :radius 4 :segments 24) or (cylinder 20 4)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		pd := graph.PrimitiveData{Shape: graph.ShapeCylinder}

		if err := pa.float("height", 0, &pd.Height); err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		if err := pa.float("radius", 1, &pd.Radius); err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		if err := segmentsArg(pa, &pd); err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}

		return &sexpPrimitive{data: pd}, nil
	})

	// -----------------------------------------------------------------------
	// (sphere :radius 10 :segments 32) or (sphere 10)
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		pd := graph.PrimitiveData{Shape: graph.ShapeSphere}

		if err := pa.float("radius", 0, &pd.Radius); err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: %w", err)
		}
		if err := segmentsArg(pa, &pd); err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: %w", err)
		}

		return &sexpPrimitive{data: pd}, nil
	})

	// -----------------------------------------------------------------------
	// (defpart "name" (box ...)) or (defpart "name" (difference ...))
	// -----------------------------------------------------------------------
	env.AddFunction("defpart", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("defpart requires a name and a body expression")
		}

		partName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defpart: name: %w", err)
		}
		if g.Lookup(partName) != nil {
			return zygo.SexpNull, fmt.Errorf("defpart: part %q already defined", partName)
		}

		var id graph.NodeID
		switch body := args[1].(type) {
		case *sexpPrimitive:
			id = graph.NewNodeID("defpart/" + partName)
			g.AddNode(&graph.Node{
				ID:   id,
				Kind: graph.NodePrimitive,
				Name: partName,
				Data: body.data,
			})
		case *sexpNodeRef:
			n := g.Get(body.id)
			if n == nil {
				return zygo.SexpNull, fmt.Errorf("defpart: body refers to a missing node")
			}
			if n.Name != "" {
				return zygo.SexpNull, fmt.Errorf("defpart: body is already part %q", n.Name)
			}
			n.Name = partName
			g.NameIndex[partName] = n.ID
			id = n.ID
		default:
			return zygo.SexpNull, fmt.Errorf("defpart: expected solid expression, got %T", args[1])
		}
		b.parts = append(b.parts, id)

		return &sexpNodeRef{id: id, name: partName}, nil
	})

	// -----------------------------------------------------------------------
	// (part "name")
	// -----------------------------------------------------------------------
	env.AddFunction("part", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("part requires a name argument")
		}

		partName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("part: name: %w", err)
		}

		n := g.Lookup(partName)
		if n == nil {
			return zygo.SexpNull, fmt.Errorf("part: no part named %q", partName)
		}

		return &sexpNodeRef{id: n.ID, name: partName}, nil
	})

	// -----------------------------------------------------------------------
	// (translate (part "pin") (vec3 30 20 -5)) or (translate s :by (vec3 ...))
	// (rotate (part "pin") (vec3 0 0 45))      degrees, X then Y then Z
	// -----------------------------------------------------------------------
	for _, fn := range []string{"translate", "rotate"} {
		fn := fn
		env.AddFunction(fn, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			if len(pa.positional) < 1 {
				return zygo.SexpNull, fmt.Errorf("%s requires a solid as first argument", fn)
			}
			child, err := b.node(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
			}
			v, ok := pa.arg("by", 1)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("%s requires a vec3 offset", fn)
			}
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: by: %w", fn, err)
			}

			var td graph.TransformData
			if fn == "rotate" {
				td.Rotation = &vec
			} else {
				td.Translation = &vec
			}
			return b.transform(fn, child, td), nil
		})
	}

	// -----------------------------------------------------------------------
	// (union a b ...) (difference a b ...) (intersection a b ...)
	// -----------------------------------------------------------------------
	for fn, op := range map[string]csg.Operation{
		"union":        csg.Union,
		"difference":   csg.Subtract,
		"intersection": csg.Intersect,
	} {
		fn, op := fn, op
		env.AddFunction(fn, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			return b.boolean(fn, op, args)
		})
	}

	// -----------------------------------------------------------------------
	// (boolean :op "fo|si" a b ...) selects the kept regions by raw flags.
	// -----------------------------------------------------------------------
	env.AddFunction("boolean", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		v, ok := pa.kw["op"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("boolean requires :op")
		}
		s, err := toKeywordString(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("boolean: op: %w", err)
		}
		op, err := csg.ParseOperation(s)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("boolean: %w", err)
		}
		return b.boolean("boolean", op, pa.positional)
	})

	// -----------------------------------------------------------------------
	// (assembly "name" (part "a") (translate ...) ...)
	// -----------------------------------------------------------------------
	env.AddFunction("assembly", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("assembly requires a name argument")
		}

		asmName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("assembly: name: %w", err)
		}

		var children []graph.NodeID
		for i := 1; i < len(args); i++ {
			id, err := b.node(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("assembly: child %d: %w", i, err)
			}
			children = append(children, id)
		}

		id := graph.NewNodeID("assembly/" + asmName)
		g.AddNode(&graph.Node{
			ID:       id,
			Kind:     graph.NodeGroup,
			Name:     asmName,
			Children: children,
			Data:     graph.GroupData{},
		})
		g.AddRoot(id)

		return &sexpNodeRef{id: id, name: asmName}, nil
	})
}

// segmentsArg reads the optional :segments keyword.
func segmentsArg(pa kwArgs, pd *graph.PrimitiveData) error {
	v, ok := pa.kw["segments"]
	if !ok {
		return nil
	}
	n, err := toInt(v)
	if err != nil {
		return fmt.Errorf("segments: %w", err)
	}
	pd.Segments = n
	return nil
}
