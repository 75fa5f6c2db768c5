package flows

import (
	"context"

	"github.com/openfield/cascade/review"
	"github.com/openfield/cascade/workflow"
)

// WorkflowDocumentProcessing is the type name of the document
// processing workflow.
const WorkflowDocumentProcessing = "document_processing"

// confidenceThreshold is the minimum classification confidence that
// skips human review.
const confidenceThreshold = 0.9

// sensitiveCategories always require human review regardless of
// classification confidence: they bind the company contractually.
var sensitiveCategories = map[string]bool{
	"lease":    true,
	"ppa":      true,
	"easement": true,
	"option":   true,
}

// DocumentProcessing builds the document intake workflow:
//
//	classify → extract → validate → hitl_gate → complete
//
// Classification and extraction failures degrade into data fields
// rather than failing the instance, which routes the document to human
// review instead of losing it. The gate runs on every instance and
// falls through when validate decided no review is needed.
func DocumentProcessing(di DocumentIntelligence, gate *review.Gate) *workflow.Definition {
	classify := workflow.NewNode("classify", func(ctx context.Context, s *workflow.State) (workflow.Update, error) {
		// Pre-classified input (e.g. a re-submission) passes through.
		if s.Has("category") && s.Has("confidence") {
			return workflow.Update{Data: map[string]any{"classifiedBy": "input"}}, nil
		}

		c, err := di.Classify(ctx, s.String("documentId"))
		if err != nil {
			// Unknown at zero confidence forces the review path.
			return workflow.Update{Data: map[string]any{
				"category":      "unknown",
				"confidence":    0.0,
				"classifyError": err.Error(),
				"classifiedBy":  "service",
			}}, nil
		}
		return workflow.Update{Data: map[string]any{
			"category":     c.Category,
			"confidence":   c.Confidence,
			"classifiedBy": "service",
		}}, nil
	})

	extract := workflow.NewNode("extract", func(ctx context.Context, s *workflow.State) (workflow.Update, error) {
		fields, err := di.Extract(ctx, s.String("documentId"), s.String("category"))
		if err != nil {
			return workflow.Update{Data: map[string]any{
				"fields":       map[string]any{},
				"extractError": err.Error(),
			}}, nil
		}
		return workflow.Update{Data: map[string]any{"fields": fields}}, nil
	})

	validate := workflow.NewNode("validate", func(_ context.Context, s *workflow.State) (workflow.Update, error) {
		requires := s.Float("confidence") < confidenceThreshold ||
			sensitiveCategories[s.String("category")] ||
			s.Has("extractError")
		return workflow.Update{Data: map[string]any{"requiresHITL": requires}}, nil
	})

	hitlGate := workflow.NewNode("hitl_gate", func(ctx context.Context, s *workflow.State) (workflow.Update, error) {
		resp, ok := s.HITLResponse()
		if s.Bool("requiresHITL") && !ok {
			_, err := gate.Open(ctx, s, review.Raise{
				RequestType: "document_review",
				Urgency:     review.UrgencyForConfidence(s.Float("confidence")),
				Description: "document classification requires human review",
				Context: map[string]any{
					"documentId": s.String("documentId"),
					"category":   s.String("category"),
					"confidence": s.Float("confidence"),
				},
			})
			if err != nil {
				return workflow.Update{}, err
			}
			return workflow.Pause(map[string]any{"pendingReview": true}), nil
		}

		// No review needed, or the human already answered: the gate
		// falls through, defaulting to approved.
		approved := true
		data := map[string]any{}
		if ok {
			approved, _ = resp["approved"].(bool)
			data["pendingReview"] = false
			data[workflow.KeyHITLResponse] = nil // consumed
		}
		data["approved"] = approved
		return workflow.Update{Data: data}, nil
	})

	complete := workflow.NewNode("complete", func(_ context.Context, s *workflow.State) (workflow.Update, error) {
		outcome := "processed"
		if !s.Bool("approved") {
			outcome = "rejected"
		}
		return workflow.Update{Data: map[string]any{"outcome": outcome}}, nil
	})

	return workflow.MustDefinition(WorkflowDocumentProcessing, "classify",
		[]workflow.Node{classify, extract, validate, hitlGate, complete},
		[]workflow.Edge{
			workflow.Static("classify", "extract"),
			workflow.Static("extract", "validate"),
			workflow.Static("validate", "hitl_gate"),
			workflow.Static("hitl_gate", "complete"),
			workflow.Static("complete", workflow.NodeEnd),
		},
	)
}
