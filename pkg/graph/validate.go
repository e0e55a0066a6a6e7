package graph

import "fmt"

// ValidationSeverity indicates whether a validation finding blocks evaluation
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks evaluation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID.Short(), e.Message)
}

// Validate runs the structural checks on the design graph and returns a
// slice of findings. An empty slice means the graph is valid. This function
// is read-only and never mutates the graph.
func Validate(g *DesignGraph) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(g)...)
	errs = append(errs, validateReferences(g)...)
	errs = append(errs, validateNames(g)...)
	errs = append(errs, validateRoots(g)...)
	errs = append(errs, validateArity(g)...)
	errs = append(errs, validateDimensions(g)...)
	return errs
}

// HasErrors reports whether any finding is error-severity.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// validateDAG checks for cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = in current DFS path, black (2) = fully explored.
// If we encounter a gray node during traversal, we have found a cycle.
func validateDAG(g *DesignGraph) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[NodeID]int) // default zero = white
	var errs []ValidationError

	var visit func(id NodeID) bool // returns true if cycle found
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: node %s is part of a cycle", id.Short()),
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray

		node, ok := g.Nodes[id]
		if !ok {
			// Dangling reference; handled by validateReferences.
			color[id] = black
			return false
		}

		// Walk Children edges.
		for _, childID := range node.Children {
			if visit(childID) {
				return true
			}
		}

		color[id] = black
		return false
	}

	// Start DFS from every node to catch disconnected components.
	for id := range g.Nodes {
		if color[id] == white {
			if visit(id) {
				// One cycle error is sufficient; stop early.
				break
			}
		}
	}

	return errs
}

// validateReferences checks that every NodeID referenced anywhere in the graph
// points to a node that actually exists in g.Nodes.
func validateReferences(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	for _, node := range g.Nodes {
		// Check Children references.
		for _, childID := range node.Children {
			if _, ok := g.Nodes[childID]; !ok {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  fmt.Sprintf("child reference %s does not exist", childID.Short()),
					Severity: SeverityError,
				})
			}
		}
	}

	return errs
}

// validateNames checks that the NameIndex is injective (no two nodes share the
// same name) and that every entry in NameIndex points to an existing node.
func validateNames(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	// Check that every NameIndex entry references an existing node.
	for name, id := range g.NameIndex {
		if _, ok := g.Nodes[id]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("name index entry %q references non-existent node %s", name, id.Short()),
				Severity: SeverityError,
			})
		}
	}

	// Check injectivity: build a reverse map from NodeID to name, looking at
	// actual node Name fields. If two nodes share the same non-empty Name, error.
	nameToNodes := make(map[string][]NodeID)
	for id, node := range g.Nodes {
		if node.Name != "" {
			nameToNodes[node.Name] = append(nameToNodes[node.Name], id)
		}
	}
	for name, ids := range nameToNodes {
		if len(ids) > 1 {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("duplicate name %q assigned to %d nodes", name, len(ids)),
				Severity: SeverityError,
			})
		}
	}

	return errs
}

// validateRoots checks that every root ID references an existing node and
// warns about orphan nodes (nodes unreachable from any root).
func validateRoots(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	// Check that each root references an existing node.
	for _, rid := range g.Roots {
		if _, ok := g.Nodes[rid]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("root reference %s does not exist", rid.Short()),
				Severity: SeverityError,
			})
		}
	}

	// Orphan detection: BFS from all roots through Children edges.
	if len(g.Nodes) == 0 {
		return errs
	}

	reachable := make(map[NodeID]bool)
	queue := make([]NodeID, 0, len(g.Roots))
	for _, rid := range g.Roots {
		if _, ok := g.Nodes[rid]; ok {
			if !reachable[rid] {
				reachable[rid] = true
				queue = append(queue, rid)
			}
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.Nodes[current]
		if node == nil {
			continue
		}

		// Traverse Children edges.
		for _, childID := range node.Children {
			if !reachable[childID] {
				reachable[childID] = true
				queue = append(queue, childID)
			}
		}
	}

	// Report any unreachable nodes as warnings.
	for id, node := range g.Nodes {
		if !reachable[id] {
			name := node.Name
			if name == "" {
				name = id.Short()
			}
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("node %q is not reachable from any root (orphan)", name),
				Severity: SeverityWarning,
			})
		}
	}

	return errs
}

// validateArity checks child counts: booleans combine exactly two
// children, transforms wrap exactly one and primitives have none.
func validateArity(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	for _, node := range g.Nodes {
		want := -1
		switch node.Kind {
		case NodeBoolean:
			want = 2
		case NodeTransform:
			want = 1
		case NodePrimitive:
			want = 0
		}
		if want >= 0 && len(node.Children) != want {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("%s node has %d children, want %d", node.Kind, len(node.Children), want),
				Severity: SeverityError,
			})
		}
		if node.Kind == NodeGroup && len(node.Children) == 0 {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  "group node has no children",
				Severity: SeverityWarning,
			})
		}
	}

	return errs
}

// validateDimensions checks that primitive dimensions are positive and that
// a rounded box's radius fits inside it.
func validateDimensions(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	bad := func(node *Node, format string, args ...any) {
		errs = append(errs, ValidationError{
			NodeID:   node.ID,
			Message:  fmt.Sprintf(format, args...),
			Severity: SeverityError,
		})
	}

	for _, node := range g.Nodes {
		pd, ok := node.Data.(PrimitiveData)
		if !ok {
			continue
		}
		switch pd.Shape {
		case ShapeBox:
			for i, d := range pd.Size {
				if d <= 0 {
					bad(node, "box dimension %d must be positive, got %g", i, d)
				}
			}
			if pd.Round < 0 {
				bad(node, "box round must not be negative, got %g", pd.Round)
			}
			for _, d := range pd.Size {
				if d > 0 && 2*pd.Round > d {
					bad(node, "box round %g does not fit dimension %g", pd.Round, d)
					break
				}
			}
		case ShapeCylinder:
			if pd.Height <= 0 {
				bad(node, "cylinder height must be positive, got %g", pd.Height)
			}
			if pd.Radius <= 0 {
				bad(node, "cylinder radius must be positive, got %g", pd.Radius)
			}
		case ShapeSphere:
			if pd.Radius <= 0 {
				bad(node, "sphere radius must be positive, got %g", pd.Radius)
			}
		default:
			bad(node, "unknown shape %s", pd.Shape)
		}
		if pd.Segments < 0 {
			bad(node, "segments must not be negative, got %d", pd.Segments)
		}
	}

	return errs
}
