// Package flows defines the built-in workflow definitions: document
// processing, land acquisition, and project lifecycle.
//
// Each definition is a constructor taking its collaborator clients and
// the review gate; nodes never reach for globals. The graphs follow the
// same shape: automated nodes enrich the data bag, gate nodes pause the
// instance for human approval, and conditional edges route on what the
// humans and collaborators decided.
package flows
