package flows

import (
	"context"

	"github.com/openfield/cascade/review"
	"github.com/openfield/cascade/workflow"
)

// WorkflowProjectLifecycle is the type name of the project lifecycle
// workflow.
const WorkflowProjectLifecycle = "project_lifecycle"

// ProjectLifecycle builds the development workflow that carries a
// project from prospecting to notice to proceed:
//
//	prospecting → site_control → development → construction_ready
//
// construction_ready is the final go/no-go and always requires a
// human. A rejection there is a data outcome, not a failure; the
// instance still completes so the decision trail survives.
func ProjectLifecycle(gate *review.Gate) *workflow.Definition {
	prospecting := workflow.NewNode("prospecting", func(_ context.Context, s *workflow.State) (workflow.Update, error) {
		return workflow.Update{Data: map[string]any{
			"phase":            "prospecting",
			"candidateParcels": float64(len(s.Slice("parcels"))),
		}}, nil
	})

	siteControl := workflow.NewNode("site_control", func(_ context.Context, s *workflow.State) (workflow.Update, error) {
		instruments := make([]any, 0)
		for _, p := range s.Slice("parcels") {
			parcel, _ := p.(map[string]any)
			pid, _ := parcel["parcelId"].(string)
			instruments = append(instruments, map[string]any{
				"parcelId":   pid,
				"instrument": "option",
			})
		}
		return workflow.Update{Data: map[string]any{
			"phase":              "site_control",
			"controlInstruments": instruments,
		}}, nil
	})

	development := workflow.NewNode("development", func(_ context.Context, s *workflow.State) (workflow.Update, error) {
		return workflow.Update{Data: map[string]any{
			"phase": "development",
			"milestones": []any{
				map[string]any{"name": "permitting", "complete": true},
				map[string]any{"name": "interconnection", "complete": true},
			},
		}}, nil
	})

	constructionReady := workflow.NewNode("construction_ready", func(ctx context.Context, s *workflow.State) (workflow.Update, error) {
		resp, ok := s.HITLResponse()
		if !ok {
			_, err := gate.Open(ctx, s, review.Raise{
				RequestType: "construction_approval",
				Urgency:     review.UrgencyCritical,
				Description: "notice to proceed awaiting final approval",
				Context: map[string]any{
					"projectId": s.String("projectId"),
					"phase":     s.String("phase"),
				},
			})
			if err != nil {
				return workflow.Update{}, err
			}
			return workflow.Pause(map[string]any{"pendingReview": true}), nil
		}

		approved, _ := resp["approved"].(bool)
		if !approved {
			notes, _ := resp["notes"].(string)
			return workflow.Update{Data: map[string]any{
				"ntpApproved":             false,
				"rejectionReason":         notes,
				"pendingReview":           false,
				workflow.KeyHITLResponse: nil, // consumed
			}}, nil
		}
		return workflow.Update{Data: map[string]any{
			"ntpApproved":             true,
			"phase":                   "construction",
			"pendingReview":           false,
			workflow.KeyHITLResponse: nil, // consumed
		}}, nil
	})

	return workflow.MustDefinition(WorkflowProjectLifecycle, "prospecting",
		[]workflow.Node{prospecting, siteControl, development, constructionReady},
		[]workflow.Edge{
			workflow.Static("prospecting", "site_control"),
			workflow.Static("site_control", "development"),
			workflow.Static("development", "construction_ready"),
			workflow.Static("construction_ready", workflow.NodeEnd),
		},
	)
}
