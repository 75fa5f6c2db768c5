package flows

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/openfield/cascade/review"
	"github.com/openfield/cascade/workflow"
)

// WorkflowLandAcquisition is the type name of the land acquisition
// workflow.
const WorkflowLandAcquisition = "land_acquisition"

// Recommendation thresholds on the overall site score.
const (
	scoreProceed = 70.0
	scoreCaution = 50.0
)

// scoreConcurrency bounds simultaneous advisory calls per site.
const scoreConcurrency = 4

// LandAcquisition builds the site acquisition workflow:
//
//	site_analysis → due_diligence → lease_negotiation → legal_review → execute_lease
//
// site_analysis scores every candidate parcel concurrently; a failing
// advisory call degrades into a per-parcel error entry rather than
// aborting the batch. legal_review always requires a human: the lease
// package binds the company no matter how well the site scored.
// execute_lease branches on the legal decision in its body — approval
// marks the parcels leased, rejection leaves them untouched.
func LandAcquisition(adv Advisor, gate *review.Gate) *workflow.Definition {
	siteAnalysis := workflow.NewNode("site_analysis", func(ctx context.Context, s *workflow.State) (workflow.Update, error) {
		parcels := s.Slice("parcels")

		var (
			mu     sync.Mutex
			scores = make([]any, 0, len(parcels))
			total  float64
			scored int
		)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(scoreConcurrency)
		for _, p := range parcels {
			parcel, _ := p.(map[string]any)
			g.Go(func() error {
				pid, _ := parcel["parcelId"].(string)
				ps, err := adv.ScoreParcel(gctx, parcel)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					// Degraded result; the batch carries on.
					scores = append(scores, map[string]any{
						"parcelId": pid,
						"error":    err.Error(),
					})
					return nil
				}
				scores = append(scores, map[string]any{
					"parcelId": ps.ParcelID,
					"score":    ps.Score,
					"factors":  ps.Factors,
				})
				total += ps.Score
				scored++
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return workflow.Update{}, err
		}

		overall := 0.0
		if scored > 0 {
			overall = total / float64(scored)
		}
		rec := "not_recommended"
		switch {
		case overall >= scoreProceed:
			rec = "proceed"
		case overall >= scoreCaution:
			rec = "proceed_with_caution"
		}
		return workflow.Update{Data: map[string]any{
			"parcelScores":   scores,
			"overallScore":   overall,
			"recommendation": rec,
		}}, nil
	})

	dueDiligence := workflow.NewNode("due_diligence", func(_ context.Context, s *workflow.State) (workflow.Update, error) {
		flagged := make([]any, 0)
		for _, v := range s.Slice("parcelScores") {
			m, _ := v.(map[string]any)
			pid, _ := m["parcelId"].(string)
			if msg, degraded := m["error"].(string); degraded {
				flagged = append(flagged, map[string]any{"parcelId": pid, "reason": msg})
				continue
			}
			if score, _ := m["score"].(float64); score < scoreCaution {
				flagged = append(flagged, map[string]any{"parcelId": pid, "reason": "suitability below threshold"})
			}
		}
		return workflow.Update{Data: map[string]any{
			"diligenceFlags":    flagged,
			"diligenceComplete": true,
		}}, nil
	})

	leaseNegotiation := workflow.NewNode("lease_negotiation", func(ctx context.Context, s *workflow.State) (workflow.Update, error) {
		raw := s.Slice("parcelScores")
		scored := make([]ParcelScore, 0, len(raw))
		for _, v := range raw {
			m, _ := v.(map[string]any)
			if _, degraded := m["error"]; degraded {
				continue
			}
			ps := ParcelScore{}
			ps.ParcelID, _ = m["parcelId"].(string)
			ps.Score, _ = m["score"].(float64)
			ps.Factors, _ = m["factors"].(map[string]any)
			scored = append(scored, ps)
		}
		terms, err := adv.SuggestTerms(ctx, scored)
		if err != nil {
			// Legal still reviews the package; the gap is visible in data.
			return workflow.Update{Data: map[string]any{"termsError": err.Error()}}, nil
		}
		return workflow.Update{Data: map[string]any{"proposedTerms": terms}}, nil
	})

	legalReview := workflow.NewNode("legal_review", func(ctx context.Context, s *workflow.State) (workflow.Update, error) {
		resp, ok := s.HITLResponse()
		if !ok {
			_, err := gate.Open(ctx, s, review.Raise{
				RequestType: "legal_review",
				Urgency:     review.UrgencyHigh,
				Description: "lease package awaiting legal sign-off",
				Context: map[string]any{
					"siteId":         s.String("siteId"),
					"recommendation": s.String("recommendation"),
					"overallScore":   s.Float("overallScore"),
				},
			})
			if err != nil {
				return workflow.Update{}, err
			}
			return workflow.Pause(map[string]any{"pendingReview": true}), nil
		}

		approved, _ := resp["approved"].(bool)
		return workflow.Update{Data: map[string]any{
			"legalApproved":           approved,
			"pendingReview":           false,
			workflow.KeyHITLResponse: nil, // consumed
		}}, nil
	})

	executeLease := workflow.NewNode("execute_lease", func(_ context.Context, s *workflow.State) (workflow.Update, error) {
		if !s.Bool("legalApproved") {
			return workflow.Update{Data: map[string]any{"phase": "rejected"}}, nil
		}
		leased := make([]any, 0)
		for _, p := range s.Slice("parcels") {
			parcel, _ := p.(map[string]any)
			marked := make(map[string]any, len(parcel)+1)
			for k, v := range parcel {
				marked[k] = v
			}
			marked["status"] = "leased"
			leased = append(leased, marked)
		}
		return workflow.Update{Data: map[string]any{
			"phase":         "executed",
			"leasedParcels": leased,
		}}, nil
	})

	return workflow.MustDefinition(WorkflowLandAcquisition, "site_analysis",
		[]workflow.Node{siteAnalysis, dueDiligence, leaseNegotiation, legalReview, executeLease},
		[]workflow.Edge{
			workflow.Static("site_analysis", "due_diligence"),
			workflow.Static("due_diligence", "lease_negotiation"),
			workflow.Static("lease_negotiation", "legal_review"),
			workflow.Static("legal_review", "execute_lease"),
			workflow.Static("execute_lease", workflow.NodeEnd),
		},
	)
}
