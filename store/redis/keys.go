package redis

// Redis key naming conventions for cascade data.
// All keys are prefixed with "cascade:" to avoid collisions.

const keyPrefix = "cascade:"

// ── Workflow keys ──

// stateKey returns the Hash key for a workflow checkpoint: cascade:wf:{id}
func stateKey(id string) string { return keyPrefix + "wf:" + id }

// stateIDsKey is the Set tracking all workflow IDs for enumeration.
const stateIDsKey = keyPrefix + "wf_ids"

// leaseKey returns the execution lease key for a workflow: cascade:lease:{id}
// The key value is the owning worker ID; Redis TTL enforces expiry.
func leaseKey(id string) string { return keyPrefix + "lease:" + id }

// ── Review keys ──

// reviewKey returns the Hash key for a review request: cascade:rev:{id}
func reviewKey(id string) string { return keyPrefix + "rev:" + id }

// reviewIDsKey is the Set tracking all review IDs for enumeration.
const reviewIDsKey = keyPrefix + "rev_ids"
