package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Skufu/thyronet/internal/metrics"
	"github.com/Skufu/thyronet/internal/thyroid"
	"github.com/gin-gonic/gin"
)

type fakeDB struct {
	err error
}

func (f fakeDB) Ping(ctx context.Context) error {
	return f.err
}

type fakeRows []thyroid.DatasetRow

func (f fakeRows) Load(ctx context.Context) []thyroid.DatasetRow {
	return f
}

func sampleRows() fakeRows {
	rows := make(fakeRows, 0, 20)
	for i := 0; i < 16; i++ {
		rows = append(rows, thyroid.DatasetRow{PatientRecord: thyroid.PatientRecord{TSH: 2, T3: 1.6, TT4: 100, FTI: 100}})
	}
	for i := 0; i < 4; i++ {
		rows = append(rows, thyroid.DatasetRow{
			PatientRecord: thyroid.PatientRecord{Tumor: 1, ThyroidSurgery: 1, TSH: 0.2, T3: 1, TT4: 100},
			Outlier:       1,
		})
	}
	return rows
}

func newTestRouter(rows thyroid.RowLoader, checks map[string]HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return setupRouter(Services{
		Scorer:  thyroid.NewScorer(rows, thyroid.NewJitter(1, 0.05)),
		Batch:   thyroid.NewBatchScorer(thyroid.BatchConfig{Seed: 1}),
		Dataset: rows,
		Metrics: metrics.New(),
		Checks:  checks,
	})
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

const tumorPatient = `{
	"age": 0.45, "sex": 0, "tumor": 1, "thyroid_surgery": 1,
	"TSH": 0.2, "T3_measured": 1.0, "TT4_measured": 100, "T4U_measured": 1.0, "FTI_measured": 100
}`

func TestPredict_Success(t *testing.T) {
	router := newTestRouter(sampleRows(), nil)

	w := doRequest(router, http.MethodPost, "/api/predict", tumorPatient)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success      bool                     `json:"success"`
		Data         thyroid.PredictionResult `json:"data"`
		Timestamp    string                   `json:"timestamp"`
		ModelVersion string                   `json:"model_version"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.ModelVersion != thyroid.ModelVersion {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	if _, err := time.Parse(time.RFC3339, resp.Timestamp); err != nil {
		t.Fatalf("timestamp not RFC3339: %q", resp.Timestamp)
	}
	if resp.Data.Prediction != thyroid.PredictionAbnormal {
		t.Fatalf("expected abnormal prediction, got %+v", resp.Data)
	}
	if resp.Data.ModelOutputs.HybridEnsemble != resp.Data.RiskScore {
		t.Fatalf("hybrid ensemble %v != risk score %v", resp.Data.ModelOutputs.HybridEnsemble, resp.Data.RiskScore)
	}
	if len(resp.Data.FeatureImportance) != 6 {
		t.Fatalf("expected 6 features, got %d", len(resp.Data.FeatureImportance))
	}
}

func TestPredict_MissingAge(t *testing.T) {
	router := newTestRouter(sampleRows(), nil)

	w := doRequest(router, http.MethodPost, "/api/predict", `{"sex": 1, "TSH": 1, "T3_measured": 1, "TT4_measured": 1, "T4U_measured": 1, "FTI_measured": 1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "age") {
		t.Fatalf("expected error naming age, got %s", w.Body.String())
	}
}

func TestPredict_InvalidJSON(t *testing.T) {
	router := newTestRouter(sampleRows(), nil)

	w := doRequest(router, http.MethodPost, "/api/predict", `{"age":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPredict_DatasetUnavailable(t *testing.T) {
	router := newTestRouter(fakeRows(nil), nil)

	w := doRequest(router, http.MethodPost, "/api/predict", tumorPatient)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), predictFailedMessage) {
		t.Fatalf("expected generic message, got %s", w.Body.String())
	}
}

func batchBody(n int) string {
	records := make([]string, n)
	for i := range records {
		records[i] = `{"age": 0.5, "TSH": "abc"}`
	}
	return `{"data": [` + strings.Join(records, ",") + `]}`
}

func TestPredictBatch_Sizes(t *testing.T) {
	router := newTestRouter(sampleRows(), nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty", batchBody(0), http.StatusBadRequest},
		{"one", batchBody(1), http.StatusOK},
		{"max", batchBody(1000), http.StatusOK},
		{"too many", batchBody(1001), http.StatusBadRequest},
		{"not an array", `{"data": {"age": 1}}`, http.StatusBadRequest},
		{"missing data", `{}`, http.StatusBadRequest},
		{"null data", `{"data": null}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/api/predict/batch", tt.body)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestPredictBatch_Summary(t *testing.T) {
	router := newTestRouter(sampleRows(), nil)

	w := doRequest(router, http.MethodPost, "/api/predict/batch", `{"data": [{"id": "a1"}, {}, {}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success      bool                 `json:"success"`
		Summary      thyroid.BatchSummary `json:"summary"`
		Results      []thyroid.BatchItem  `json:"results"`
		ModelVersion string               `json:"model_version"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 3 || resp.Summary.TotalProcessed != 3 {
		t.Fatalf("expected 3 results, got %+v", resp)
	}
	if resp.Summary.NormalCases+resp.Summary.AbnormalCases != resp.Summary.TotalProcessed {
		t.Fatalf("summary counts do not add up: %+v", resp.Summary)
	}
	if resp.Results[0].ID != "a1" || resp.Results[1].ID != "patient_2" {
		t.Fatalf("unexpected ids: %+v", resp.Results)
	}
	if resp.ModelVersion != thyroid.BatchModelVersion {
		t.Fatalf("unexpected model version %q", resp.ModelVersion)
	}
}

func TestDatasetSummary(t *testing.T) {
	w := doRequest(newTestRouter(sampleRows(), nil), http.MethodGet, "/api/dataset/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"abnormal_cases":4`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}

	w = doRequest(newTestRouter(fakeRows(nil), nil), http.MethodGet, "/api/dataset/summary", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for empty dataset, got %d", w.Code)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("ENABLE_DB", "true")
	t.Setenv("DATABASE_URL", "")
	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadConfigUsesDefaults(t *testing.T) {
	t.Setenv("ENABLE_DB", "false")
	t.Setenv("PORT", "")
	t.Setenv("DATASET_SOURCE", "")
	t.Setenv("DATASET_CACHE_TTL", "")
	t.Setenv("BATCH_CHUNK_DELAY", "")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DatasetSource != "http" || cfg.DatasetCacheTTL != 0 {
		t.Fatalf("expected uncached http dataset by default, got %+v", cfg)
	}
	if cfg.Batch.ChunkSize != 10 || cfg.Batch.ChunkDelay != 500*time.Millisecond || cfg.Batch.MaxRecords != 1000 {
		t.Fatalf("unexpected batch defaults: %+v", cfg.Batch)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("ENABLE_DB", "false")
	t.Setenv("DATASET_CACHE_TTL", "ten minutes")
	t.Setenv("DATASET_SOURCE", "postgres")

	_, err := loadConfig()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"DATASET_CACHE_TTL", "ENABLE_DB=true"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter(sampleRows(), nil)

	w := doRequest(router, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRouterReadyz(t *testing.T) {
	router := newTestRouter(sampleRows(), map[string]HealthChecker{"db": fakeDB{}, "cache": nil})
	w := doRequest(router, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"cache":"disabled"`) {
		t.Fatalf("unexpected readiness: %d %s", w.Code, w.Body.String())
	}

	router = newTestRouter(sampleRows(), map[string]HealthChecker{"db": fakeDB{err: errors.New("down")}})
	w = doRequest(router, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "degraded") {
		t.Fatalf("expected degraded readiness, got %d %s", w.Code, w.Body.String())
	}
}

func TestRouterMetrics(t *testing.T) {
	router := newTestRouter(sampleRows(), nil)
	doRequest(router, http.MethodPost, "/api/predict", tumorPatient)

	w := doRequest(router, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `thyronet_predictions_total{prediction="abnormal"} 1`) {
		t.Fatalf("prediction not counted: %s", w.Body.String())
	}
}

func TestPredictBatch_BodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := setupRouter(Services{
		Scorer:       thyroid.NewScorer(sampleRows(), nil),
		Batch:        thyroid.NewBatchScorer(thyroid.BatchConfig{Seed: 1}),
		Dataset:      sampleRows(),
		MaxBodyBytes: 256,
	})

	t.Run("within limit", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/predict/batch", batchBody(2))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("over limit", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/predict/batch", batchBody(50))
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestPredictBatch_NumericID(t *testing.T) {
	router := newTestRouter(sampleRows(), nil)

	w := doRequest(router, http.MethodPost, "/api/predict/batch", `{"data":[{"id":7,"age":0.5},{"age":0.4},{"id":[1]}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Results []thyroid.BatchItem `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}
	if resp.Results[0].ID != "7" || resp.Results[1].ID != "patient_2" || resp.Results[2].ID != "patient_3" {
		t.Fatalf("unexpected ids: %+v", resp.Results)
	}
}

func TestRouterServesStaticRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>ThyroNet</h1>"), 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log('thyronet')"), 0o600); err != nil {
		t.Fatalf("write app.js: %v", err)
	}

	gin.SetMode(gin.TestMode)
	router := setupRouter(Services{StaticRoot: detectStaticRoot(dir)})

	w := doRequest(router, http.MethodGet, "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ThyroNet") {
		t.Fatalf("expected index page, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/static/app.js", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "thyronet") {
		t.Fatalf("expected app.js, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(newTestRouter(sampleRows(), nil), http.MethodGet, "/", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a static root, got %d", w.Code)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- serve(ctx, server) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
