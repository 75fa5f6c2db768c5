package workflow

import (
	"fmt"

	"github.com/openfield/cascade"
)

// Definition is an immutable workflow graph: an ordered set of nodes,
// the edges between them, and an entry point. Definitions are validated
// at construction so that a dangling edge or duplicate node name is a
// build-time failure, never a runtime surprise.
type Definition struct {
	name  string
	entry string
	nodes []Node
	index map[string]Node
	edges map[string]Edge
}

// NewDefinition builds and validates a workflow definition.
//
// Validation rules: node names must be unique and non-empty, the entry
// point must name a defined node, every edge's From must name a defined
// node, and a static edge's target must be a defined node or NodeEnd.
func NewDefinition(name, entry string, nodes []Node, edges []Edge) (*Definition, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty definition name", cascade.ErrInvalidDefinition)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: definition %q has no nodes", cascade.ErrInvalidDefinition, name)
	}

	index := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		nodeName := n.Name()
		if nodeName == "" || nodeName == NodeStart || nodeName == NodeEnd {
			return nil, fmt.Errorf("%w: definition %q has reserved or empty node name %q",
				cascade.ErrInvalidDefinition, name, nodeName)
		}
		if _, dup := index[nodeName]; dup {
			return nil, fmt.Errorf("%w: definition %q has duplicate node %q",
				cascade.ErrInvalidDefinition, name, nodeName)
		}
		index[nodeName] = n
	}

	if _, ok := index[entry]; !ok {
		return nil, fmt.Errorf("%w: definition %q entry point %q is not a defined node",
			cascade.ErrInvalidDefinition, name, entry)
	}

	edgeIndex := make(map[string]Edge, len(edges))
	for _, e := range edges {
		if _, ok := index[e.From]; !ok {
			return nil, fmt.Errorf("%w: definition %q edge from undefined node %q",
				cascade.ErrInvalidDefinition, name, e.From)
		}
		if _, dup := edgeIndex[e.From]; dup {
			return nil, fmt.Errorf("%w: definition %q has multiple edges from %q",
				cascade.ErrInvalidDefinition, name, e.From)
		}
		if !e.Computed() {
			to := e.StaticTarget()
			if _, ok := index[to]; !ok && to != NodeEnd {
				return nil, fmt.Errorf("%w: definition %q edge %q -> undefined node %q",
					cascade.ErrInvalidDefinition, name, e.From, to)
			}
		}
		edgeIndex[e.From] = e
	}

	return &Definition{
		name:  name,
		entry: entry,
		nodes: nodes,
		index: index,
		edges: edgeIndex,
	}, nil
}

// MustDefinition is like NewDefinition but panics on error. Use for
// definitions assembled from literals at program start.
func MustDefinition(name, entry string, nodes []Node, edges []Edge) *Definition {
	def, err := NewDefinition(name, entry, nodes, edges)
	if err != nil {
		panic(err)
	}
	return def
}

// Name returns the workflow type name.
func (d *Definition) Name() string { return d.name }

// EntryPoint returns the name of the first node to execute.
func (d *Definition) EntryPoint() string { return d.entry }

// Node returns the node with the given name.
func (d *Definition) Node(name string) (Node, bool) {
	n, ok := d.index[name]
	return n, ok
}

// Nodes returns the nodes in definition order.
func (d *Definition) Nodes() []Node { return d.nodes }

// Next resolves the node that follows current for the given state. A
// node with no outgoing edge routes to NodeEnd.
func (d *Definition) Next(current string, s *State) string {
	e, ok := d.edges[current]
	if !ok {
		return NodeEnd
	}
	return e.Target(s)
}
