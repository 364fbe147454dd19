package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"loanscore/monitoring"
	"loanscore/predictor"
)

type handlers struct {
	svc     Predictor
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func RegisterHandlers(mux *http.ServeMux, h *handlers) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("GET /model-info", h.handleModelInfo)
	mux.Handle("GET /metrics", h.metrics.Handler())
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", ModelLoaded: h.svc != nil})
}

func (h *handlers) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(h.svc.ModelInfo())
}

func (h *handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.metrics.RecordPredictionFailure("invalid_input")
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.fail(w, r, predictor.WrapError(predictor.ErrInvalidInput, "read request", err))
		return
	}

	app, err := DecodeApplication(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	prediction, err := h.svc.Predict(r.Context(), app)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.metrics.RecordPrediction(prediction.RiskLevel, prediction.Approved)
	writeJSON(w, http.StatusOK, prediction)
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.metrics.RecordPredictionFailure(predictor.KindName(err))

	status := statusFor(err)
	if status == http.StatusBadRequest {
		writeError(w, status, err.Error())
		return
	}
	h.logger.Error("prediction failed",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Error(err),
	)
	writeError(w, status, "internal server error")
}

// statusFor 错误类型到HTTP状态码的映射
func statusFor(err error) int {
	if predictor.IsKind(err, predictor.ErrInvalidInput) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
