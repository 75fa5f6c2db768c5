package workflow

// Edge is a directed link from one node to the next. The target is
// either a literal node name (static) or computed from the current
// state (conditional). Exactly one of the two forms is set; Target
// resolves whichever applies.
type Edge struct {
	From string

	// to is the static target. Empty when resolve is set.
	to string

	// resolve computes the target from state. Nil for static edges.
	resolve func(*State) string
}

// Static creates an edge with a literal target node name.
func Static(from, to string) Edge {
	return Edge{From: from, to: to}
}

// Conditional creates an edge whose target is computed from state.
func Conditional(from string, resolve func(*State) string) Edge {
	return Edge{From: from, resolve: resolve}
}

// Computed reports whether this edge's target is state-dependent.
func (e Edge) Computed() bool { return e.resolve != nil }

// Target resolves the next node name for the given state.
func (e Edge) Target(s *State) string {
	if e.resolve != nil {
		return e.resolve(s)
	}
	return e.to
}

// StaticTarget returns the literal target for a static edge, or "" for
// a computed edge. Used by definition validation.
func (e Edge) StaticTarget() string { return e.to }
