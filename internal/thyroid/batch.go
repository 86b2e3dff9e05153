package thyroid

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/Skufu/thyronet/internal/apperr"
)

// BatchModelVersion is reported with batch predictions.
const BatchModelVersion = "ThyroNet-XAI v1.0"

// BatchConfig controls pacing and limits of the batch scorer.
type BatchConfig struct {
	ChunkSize  int
	ChunkDelay time.Duration
	MaxRecords int
	Seed       int64
}

// DefaultBatchConfig mirrors the production pacing.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		ChunkSize:  10,
		ChunkDelay: 500 * time.Millisecond,
		MaxRecords: 1000,
	}
}

// BatchItem is the result for one record of a batch.
type BatchItem struct {
	ID         string  `json:"id"`
	Prediction string  `json:"prediction"`
	RiskScore  float64 `json:"risk_score"`
	Confidence float64 `json:"confidence"`
}

// BatchSummary aggregates a batch.
type BatchSummary struct {
	TotalProcessed   int     `json:"total_processed"`
	NormalCases      int     `json:"normal_cases"`
	AbnormalCases    int     `json:"abnormal_cases"`
	AverageRiskScore float64 `json:"average_risk_score"`
	HighRiskCases    int     `json:"high_risk_cases"`
}

// BatchResult is the outcome of BatchScorer.Score.
type BatchResult struct {
	Summary BatchSummary `json:"summary"`
	Results []BatchItem  `json:"results"`
}

// BatchScorer assigns simulated scores to many records, paced in chunks. Scores
// do not depend on record contents.
type BatchScorer struct {
	cfg   BatchConfig
	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBatchScorer builds a BatchScorer from cfg, filling zero values from
// DefaultBatchConfig.
func NewBatchScorer(cfg BatchConfig) *BatchScorer {
	def := DefaultBatchConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = def.MaxRecords
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 0
	}
	return &BatchScorer{
		cfg:   cfg,
		rng:   newRand(cfg.Seed),
		sleep: sleepContext,
	}
}

// Score validates the batch size and scores every record in order.
func (b *BatchScorer) Score(ctx context.Context, records []PatientRecord) (*BatchResult, error) {
	if len(records) == 0 {
		return nil, apperr.Validation("Invalid data format. Expected array of patient records.")
	}
	if len(records) > b.cfg.MaxRecords {
		return nil, apperr.Validation("Batch size too large. Maximum %d records allowed.", b.cfg.MaxRecords)
	}

	results := make([]BatchItem, 0, len(records))
	for start := 0; start < len(records); start += b.cfg.ChunkSize {
		if start > 0 && b.cfg.ChunkDelay > 0 {
			if err := b.sleep(ctx, b.cfg.ChunkDelay); err != nil {
				return nil, apperr.Internal(fmt.Sprintf("batch interrupted after %d records", start), err)
			}
		}

		end := min(start+b.cfg.ChunkSize, len(records))
		for i := start; i < end; i++ {
			results = append(results, b.scoreOne(records[i], i))
		}
	}

	return &BatchResult{Summary: summarize(results), Results: results}, nil
}

func (b *BatchScorer) scoreOne(r PatientRecord, index int) BatchItem {
	b.mu.Lock()
	score := b.rng.Float64()*0.6 + 0.2
	b.mu.Unlock()

	id := r.ID
	if id == "" {
		id = fmt.Sprintf("patient_%d", index+1)
	}

	prediction := PredictionNormal
	if score > 0.5 {
		prediction = PredictionAbnormal
	}

	return BatchItem{
		ID:         id,
		Prediction: prediction,
		RiskScore:  round2(score),
		Confidence: math.Round(math.Abs(score-0.5)*200) / 100,
	}
}

func summarize(results []BatchItem) BatchSummary {
	s := BatchSummary{TotalProcessed: len(results)}
	var sum float64
	for _, r := range results {
		if r.Prediction == PredictionAbnormal {
			s.AbnormalCases++
		}
		if r.RiskScore > 0.7 {
			s.HighRiskCases++
		}
		sum += r.RiskScore
	}
	s.NormalCases = s.TotalProcessed - s.AbnormalCases
	if len(results) > 0 {
		s.AverageRiskScore = round2(sum / float64(len(results)))
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
