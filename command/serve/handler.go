package serve

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/itu-mlops/playtime-pipeline/forest"
	"github.com/itu-mlops/playtime-pipeline/internal/httprender"
	"github.com/itu-mlops/playtime-pipeline/metric"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type handler struct {
	model   *forest.Forest
	name    string
	stage   string
	version string
	metrics *metric.Metrics
}

func newHandler(model *forest.Forest, name, stage, version string, metrics *metric.Metrics) *handler {
	return &handler{
		model:   model,
		name:    name,
		stage:   stage,
		version: version,
		metrics: metrics,
	}
}

func (h *handler) routes() http.Handler {
	mux := chi.NewMux()

	mux.Use(loggerMiddleware)

	mux.Post("/predict", h.handlePredict)
	mux.Get("/healthz", h.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

type predictionResponse struct {
	Prediction float64 `json:"prediction"`
}

type predictionsResponse struct {
	Predictions []float64 `json:"predictions"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Model   string `json:"model"`
	Stage   string `json:"stage"`
	Version string `json:"version"`
}

// handlePredict accepts a single feature object or a list of feature
// objects and returns the model output for each.
func (h *handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.Latency.WithLabelValues(h.name).Observe(time.Since(start).Seconds())
	}()

	rows, single, err := decodeFeatures(r, h.model.Features)
	if err != nil {
		h.metrics.ErrorCount.WithLabelValues(h.name, "bad_request").Inc()
		httprender.BadRequest(w, err.Error())
		return
	}

	preds, err := h.model.PredictBatch(rows)
	if err != nil {
		h.metrics.ErrorCount.WithLabelValues(h.name, "predict").Inc()
		httprender.InternalError(w)
		return
	}
	h.metrics.PredictionCount.WithLabelValues(h.name, h.stage).Add(float64(len(preds)))

	if single {
		httprender.OK(w, &predictionResponse{Prediction: preds[0]})
		return
	}
	httprender.OK(w, &predictionsResponse{Predictions: preds})
}

func (h *handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	httprender.OK(w, &healthResponse{
		Status:  "ok",
		Model:   h.name,
		Stage:   h.stage,
		Version: h.version,
	})
}

// decodeFeatures turns the request body into feature vectors in the
// model's column order. Unknown keys are ignored, missing keys are an
// error.
func decodeFeatures(r *http.Request, features []string) (rows [][]float64, single bool, err error) {
	defer r.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, false, fmt.Errorf("malformed request body: %v", err)
	}

	var records []map[string]float64
	if err := json.Unmarshal(raw, &records); err != nil {
		record := map[string]float64{}
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, false, fmt.Errorf("expected a feature object or a list of feature objects")
		}
		records = []map[string]float64{record}
		single = true
	}
	if len(records) == 0 {
		return nil, false, fmt.Errorf("empty feature list")
	}

	rows = make([][]float64, len(records))
	for i, record := range records {
		row := make([]float64, len(features))
		for j, name := range features {
			v, ok := record[name]
			if !ok {
				return nil, false, fmt.Errorf("record %d: missing feature %q", i, name)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return rows, single, nil
}
