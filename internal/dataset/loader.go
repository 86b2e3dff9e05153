package dataset

import (
	"context"
	"time"

	"github.com/Skufu/thyronet/internal/metrics"
	"github.com/Skufu/thyronet/internal/thyroid"
	"github.com/rs/zerolog/log"
)

// Loader adapts a Source to thyroid.RowLoader. It fails open: any error is
// logged and reported as an empty dataset.
type Loader struct {
	source  Source
	metrics *metrics.Metrics
}

// NewLoader builds a Loader. m may be nil.
func NewLoader(source Source, m *metrics.Metrics) *Loader {
	return &Loader{source: source, metrics: m}
}

func (l *Loader) Load(ctx context.Context) []thyroid.DatasetRow {
	start := time.Now()
	rows, err := l.source.Fetch(ctx)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		log.Ctx(ctx).Error().Err(err).Dur("elapsed", elapsed).Msg("error loading dataset")
		l.metrics.ObserveDatasetLoad("error", elapsed.Seconds())
		return nil
	case len(rows) == 0:
		log.Ctx(ctx).Warn().Dur("elapsed", elapsed).Msg("dataset loaded empty")
		l.metrics.ObserveDatasetLoad("empty", elapsed.Seconds())
	default:
		log.Ctx(ctx).Debug().Int("rows", len(rows)).Dur("elapsed", elapsed).Msg("dataset loaded")
		l.metrics.ObserveDatasetLoad("ok", elapsed.Seconds())
	}
	return rows
}
