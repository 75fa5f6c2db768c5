// Package workflow defines workflow definitions, nodes, edges, checkpointed
// state, and the workflow store interface.
//
// A Definition is an immutable directed graph: an ordered set of named
// Nodes, a set of Edges (static or computed from state), and an entry
// point. A State is the persisted checkpoint of one workflow instance —
// the record the engine reloads before every node execution and rewrites
// after it, which is what makes execution crash-safe and resumable.
package workflow
