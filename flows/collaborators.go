package flows

import "context"

// Classification is the result of automated document classification.
type Classification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// DocumentIntelligence classifies documents and extracts structured
// fields from them. Implementations typically wrap an external ML
// service; tests use deterministic fakes.
type DocumentIntelligence interface {
	Classify(ctx context.Context, documentID string) (Classification, error)
	Extract(ctx context.Context, documentID, category string) (map[string]any, error)
}

// ParcelScore is the suitability assessment for one land parcel.
type ParcelScore struct {
	ParcelID string         `json:"parcelId"`
	Score    float64        `json:"score"`
	Factors  map[string]any `json:"factors,omitempty"`
}

// Advisor scores candidate parcels and drafts acquisition terms.
type Advisor interface {
	ScoreParcel(ctx context.Context, parcel map[string]any) (ParcelScore, error)
	SuggestTerms(ctx context.Context, parcels []ParcelScore) (map[string]any, error)
}
