package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Skufu/thyronet/internal/apperr"
	"github.com/Skufu/thyronet/internal/metrics"
	"github.com/Skufu/thyronet/internal/thyroid"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	invalidBatchMessage   = "Invalid data format. Expected array of patient records."
	predictFailedMessage  = "Internal server error during prediction"
	batchFailedMessage    = "Internal server error during batch prediction"
	datasetFailedMessage  = "Internal server error while loading dataset"
	invalidPayloadMessage = "invalid payload"
	tooLargeMessage       = "request body too large"
)

type predictionHandler struct {
	scorer  *thyroid.Scorer
	batch   *thyroid.BatchScorer
	dataset thyroid.RowLoader
	metrics *metrics.Metrics
}

type batchRequest struct {
	Data json.RawMessage `json:"data"`
}

func (h *predictionHandler) Predict(c *gin.Context) {
	var input thyroid.PatientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err, invalidPayloadMessage)
		return
	}
	if err := input.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperr.ClientMessage(err, invalidPayloadMessage)})
		return
	}

	ctx := c.Request.Context()
	result, err := h.scorer.Predict(ctx, input.Record())
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("prediction error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": predictFailedMessage})
		return
	}
	h.metrics.ObservePrediction(result.Prediction)

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"data":          result,
		"timestamp":     timestamp(),
		"model_version": thyroid.ModelVersion,
	})
}

func (h *predictionHandler) PredictBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, invalidBatchMessage)
		return
	}

	var inputs []thyroid.PatientInput
	if len(req.Data) == 0 || json.Unmarshal(req.Data, &inputs) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidBatchMessage})
		return
	}

	records := make([]thyroid.PatientRecord, len(inputs))
	for i, in := range inputs {
		records[i] = in.Record()
	}

	ctx := c.Request.Context()
	result, err := h.batch.Score(ctx, records)
	if err != nil {
		if apperr.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": apperr.ClientMessage(err, invalidBatchMessage)})
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Int("records", len(records)).Msg("batch prediction error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": batchFailedMessage})
		return
	}
	h.metrics.ObserveBatch(result.Summary.TotalProcessed)

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"summary":       result.Summary,
		"results":       result.Results,
		"timestamp":     timestamp(),
		"model_version": thyroid.BatchModelVersion,
	})
}

func (h *predictionHandler) DatasetSummary(c *gin.Context) {
	rows := h.dataset.Load(c.Request.Context())
	if len(rows) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": datasetFailedMessage})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"data":      thyroid.Summarize(rows),
		"timestamp": timestamp(),
	})
}

// badRequest answers a body that could not be decoded. Bodies cut off by
// limitBodySize get 413.
func badRequest(c *gin.Context, err error, message string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": tooLargeMessage})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
