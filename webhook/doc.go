// Package webhook is a Cascade hook that delivers lifecycle events to an
// HTTP endpoint as JSON. Its main use is notifying reviewer-facing systems
// (inboxes, chat integrations, pagers) the moment a workflow pauses for a
// human decision.
//
// Deliveries are best-effort: a failed POST is logged and dropped, never
// retried, and never fails the workflow that triggered it.
//
//	h := webhook.New("https://hooks.example.com/cascade",
//	    webhook.WithEvents(webhook.EventReviewRaised, webhook.EventWorkflowFailed),
//	    webhook.WithHeader("Authorization", "Bearer "+token),
//	)
//	eng, _ := engine.New(store, registry, engine.WithHook(h))
package webhook
