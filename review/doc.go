// Package review implements the human-in-the-loop interrupt surface:
// review request records, the gate that raises them while pausing the
// owning workflow, and the resolution service the approval UI calls to
// resolve a request and resume the workflow.
package review
