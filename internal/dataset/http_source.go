package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Skufu/thyronet/internal/apperr"
	"github.com/Skufu/thyronet/internal/retry"
	"github.com/Skufu/thyronet/internal/thyroid"
	"github.com/rs/zerolog/log"
)

// DefaultURL is the public annthyroid snapshot.
const DefaultURL = "https://hebbkx1anhila5yf.public.blob.vercel-storage.com/annthyroid_unsupervised_anomaly_detection%20%281%29-sjO68MzKaASs0l6gSA10YZXwFeJh45.csv"

// Source fetches the full reference dataset.
type Source interface {
	Fetch(ctx context.Context) ([]thyroid.DatasetRow, error)
}

// HTTPSource downloads and parses the CSV on every Fetch.
type HTTPSource struct {
	url    string
	client *http.Client
	retry  retry.Config
}

// NewHTTPSource builds an HTTPSource. A zero timeout leaves requests bounded
// only by the caller's context.
func NewHTTPSource(url string, timeout time.Duration, attempts int) *HTTPSource {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = attempts
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
		retry:  cfg,
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]thyroid.DatasetRow, error) {
	var rows []thyroid.DatasetRow
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		var err error
		rows, err = s.fetchOnce(ctx)
		return err
	}, func(attempt int, err error, next time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", next).Msg("dataset download failed, retrying")
	})
	if err != nil {
		return nil, apperr.External("fetch dataset from "+s.url, err)
	}
	return rows, nil
}

func (s *HTTPSource) fetchOnce(ctx context.Context) ([]thyroid.DatasetRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return Parse(resp.Body)
}
