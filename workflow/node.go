package workflow

import "context"

// Update is the partial state produced by one node execution. Data is
// shallow-merged into the instance's data bag; a non-zero Status lets a
// node override the instance status — setting StatusPaused is how a gate
// node requests suspension.
type Update struct {
	Data   map[string]any
	Status Status
}

// Pause returns an Update that merges data and suspends the instance.
func Pause(data map[string]any) Update {
	return Update{Data: data, Status: StatusPaused}
}

// Node is one named, sequential processing step in a workflow definition.
// Execute receives the current checkpoint state (a working copy — mutating
// it directly has no effect) and returns a partial update. Collaborator
// clients are injected into concrete node types at construction, never
// captured implicitly.
type Node interface {
	Name() string
	Execute(ctx context.Context, state *State) (Update, error)
}

// funcNode adapts a plain function to the Node interface.
type funcNode struct {
	name string
	fn   func(ctx context.Context, state *State) (Update, error)
}

// NewNode wraps a function as a named Node.
func NewNode(name string, fn func(ctx context.Context, state *State) (Update, error)) Node {
	return &funcNode{name: name, fn: fn}
}

func (n *funcNode) Name() string { return n.name }

func (n *funcNode) Execute(ctx context.Context, state *State) (Update, error) {
	return n.fn(ctx, state)
}
