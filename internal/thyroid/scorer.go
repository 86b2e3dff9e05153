package thyroid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Skufu/thyronet/internal/apperr"
)

const (
	// ModelVersion is reported with single predictions.
	ModelVersion = "ThyroNet-XAI v1.0 (Real Dataset)"

	// AbnormalThreshold separates "normal" from "abnormal"; equality is normal.
	AbnormalThreshold = 0.35

	PredictionNormal   = "normal"
	PredictionAbnormal = "abnormal"

	ImpactPositive = "positive"
	ImpactNegative = "negative"
)

// ErrDatasetUnavailable is returned when the reference dataset loads empty.
var ErrDatasetUnavailable = errors.New("unable to load dataset")

// RowLoader supplies the reference dataset. An empty result means the dataset
// could not be loaded.
type RowLoader interface {
	Load(ctx context.Context) []DatasetRow
}

// ModelOutputs mimics the per-model scores of an ensemble.
type ModelOutputs struct {
	RandomForest      float64 `json:"random_forest"`
	DeepNeuralNetwork float64 `json:"deep_neural_network"`
	HybridEnsemble    float64 `json:"hybrid_ensemble"`
}

// FeatureImportance is one entry of the explanation list.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
	Impact     string  `json:"impact"`
}

// PredictionResult is the response payload of a single prediction.
type PredictionResult struct {
	Prediction        string              `json:"prediction"`
	Confidence        float64             `json:"confidence"`
	RiskScore         float64             `json:"risk_score"`
	ModelOutputs      ModelOutputs        `json:"model_outputs"`
	FeatureImportance []FeatureImportance `json:"feature_importance"`
	ClinicalInsights  []string            `json:"clinical_insights"`
}

// RiskBreakdown holds the unrounded intermediate scores.
type RiskBreakdown struct {
	Clinical          float64
	Lab               float64
	NeighborhoodRatio float64
	Baseline          float64
	Adjustment        float64
	Final             float64
}

// Scorer produces heuristic risk predictions for single records.
type Scorer struct {
	rows   RowLoader
	jitter *Jitter
}

// NewScorer builds a Scorer. A nil jitter leaves model outputs noise-free.
func NewScorer(rows RowLoader, jitter *Jitter) *Scorer {
	return &Scorer{rows: rows, jitter: jitter}
}

// Predict scores record against the reference dataset.
func (s *Scorer) Predict(ctx context.Context, record PatientRecord) (*PredictionResult, error) {
	rows := s.rows.Load(ctx)
	if len(rows) == 0 {
		return nil, apperr.External("reference dataset unavailable", ErrDatasetUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	neighbors := Neighborhood(record, rows)
	risk := ComputeRisk(record, AbnormalRatio(neighbors), BaselineRisk(rows))

	return &PredictionResult{
		Prediction: Classify(risk.Final),
		Confidence: round2(Confidence(risk.Final)),
		RiskScore:  round2(risk.Final),
		ModelOutputs: ModelOutputs{
			RandomForest:      round2(clamp01(s.jitter.Apply(risk.Final))),
			DeepNeuralNetwork: round2(clamp01(s.jitter.Apply(risk.Final))),
			HybridEnsemble:    round2(risk.Final),
		},
		FeatureImportance: RankFeatures(record),
		ClinicalInsights:  Insights(record, risk),
	}, nil
}

// ComputeRisk combines clinical flags, lab thresholds and the neighborhood
// deviation from the dataset baseline into a score in [0,1].
func ComputeRisk(r PatientRecord, neighborhoodRatio, baseline float64) RiskBreakdown {
	clinical := r.Tumor*0.45 +
		r.ThyroidSurgery*0.35 +
		r.I131Treatment*0.30 +
		r.Goitre*0.25 +
		r.QueryHyperthyroid*0.15 +
		r.OnAntithyroidMedication*0.12 +
		r.Sick*0.08

	var lab float64
	switch {
	case r.TSH < 0.4:
		lab += 0.25
	case r.TSH > 4.5:
		lab += 0.20
	}
	switch {
	case r.T3 > 2.3:
		lab += 0.15
	case r.T3 < 0.8:
		lab += 0.10
	}
	switch {
	case r.TT4 > 140:
		lab += 0.15
	case r.TT4 < 70:
		lab += 0.12
	}

	adjustment := (neighborhoodRatio - baseline) * 0.3

	return RiskBreakdown{
		Clinical:          clinical,
		Lab:               lab,
		NeighborhoodRatio: neighborhoodRatio,
		Baseline:          baseline,
		Adjustment:        adjustment,
		Final:             clamp01(clinical*0.65 + lab*0.25 + adjustment*0.10),
	}
}

// Classify maps a risk score to a prediction class.
func Classify(score float64) string {
	if score > AbnormalThreshold {
		return PredictionAbnormal
	}
	return PredictionNormal
}

// Confidence grows with the distance from the decision threshold, capped at 0.95.
func Confidence(score float64) float64 {
	return math.Min(0.95, math.Abs(score-AbnormalThreshold)*2+0.1)
}

// RankFeatures returns the six explained features, most important first.
func RankFeatures(r PatientRecord) []FeatureImportance {
	tshImpact := ImpactNegative
	if r.TSH < 0.4 || r.TSH > 4.5 {
		tshImpact = ImpactPositive
	}
	t3Impact := ImpactNegative
	if r.T3 > 2.3 || r.T3 < 0.8 {
		t3Impact = ImpactPositive
	}

	features := []FeatureImportance{
		{"Tumor History", r.Tumor * 0.95, ImpactPositive},
		{"Thyroid Surgery", r.ThyroidSurgery * 0.9, ImpactPositive},
		{"TSH Level", math.Min(0.85, math.Abs(r.TSH-2.5)/3), tshImpact},
		{"Goitre Presence", r.Goitre * 0.8, ImpactPositive},
		{"I131 Treatment", r.I131Treatment * 0.75, ImpactPositive},
		{"T3 Levels", math.Min(0.7, math.Abs(r.T3-1.5)/2), t3Impact},
	}

	sort.SliceStable(features, func(i, j int) bool {
		return features[i].Importance > features[j].Importance
	})
	return features
}

// Insights lists the triggered clinical notes followed by one risk-tier summary.
func Insights(r PatientRecord, risk RiskBreakdown) []string {
	var insights []string

	if risk.NeighborhoodRatio > risk.Baseline*2 {
		insights = append(insights, fmt.Sprintf(
			"Patient profile matches %d%% abnormal cases in medical database",
			int(math.Round(risk.NeighborhoodRatio*100)),
		))
	}
	if r.Tumor != 0 {
		insights = append(insights, "Tumor history present - requires immediate clinical evaluation")
	}
	if r.ThyroidSurgery != 0 {
		insights = append(insights, "Previous thyroid surgery documented - ongoing monitoring indicated")
	}
	if r.TSH < 0.4 {
		insights = append(insights, "Suppressed TSH detected - possible hyperthyroid condition")
	}
	if r.TSH > 4.5 {
		insights = append(insights, "Elevated TSH found - hypothyroid evaluation recommended")
	}
	if r.Goitre != 0 && r.Tumor != 0 {
		insights = append(insights, "Combined goitre and tumor history - high priority assessment")
	}

	switch {
	case risk.Final > 0.7:
		insights = append(insights, "High-risk profile identified - urgent specialist referral recommended")
	case risk.Final > 0.4:
		insights = append(insights, "Moderate risk detected - follow-up within 3-6 months advised")
	default:
		insights = append(insights, "Low risk profile - routine monitoring appropriate")
	}

	return insights
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
