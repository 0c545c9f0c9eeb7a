package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/engine"
	"github.com/Veraticus/spence/internal/forecast"
	"github.com/Veraticus/spence/internal/service"
)

type predictRequest struct {
	UserID string `json:"userId"`
}

// defaultHistoricalMonths applies when a back-fill request omits months.
const defaultHistoricalMonths = 3

type historicalRequest struct {
	Months int `json:"months"`
}

type errorResponse struct {
	Error          string `json:"error"`
	Classification string `json:"classification,omitempty"`
}

type aggregationResponse struct {
	Errors         map[string]string `json:"errors,omitempty"`
	Start          string            `json:"start"`
	End            string            `json:"end"`
	Timestamp      string            `json:"timestamp"`
	DaysProcessed  int               `json:"days_processed"`
	DaysSkipped    int               `json:"days_skipped"`
	RecordsWritten int               `json:"records_written"`
	ZeroDaysFilled int               `json:"zero_days_filled"`
	Success        bool              `json:"success"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing 'userId' in request"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	prediction, err := s.engine.PredictNextMonth(ctx, req.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, prediction.Document)
}

func (s *Server) handleAggregateDaily(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	result, err := s.engine.AggregateDaily(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.aggregationResponse(result))
}

func (s *Server) handleAggregateHistorical(w http.ResponseWriter, r *http.Request) {
	req := historicalRequest{Months: defaultHistoricalMonths}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	result, err := s.engine.AggregateHistorical(ctx, req.Months, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.aggregationResponse(result))
}

func (s *Server) aggregationResponse(result *service.AggregationResult) aggregationResponse {
	return aggregationResponse{
		Success:        len(result.Errors) == 0,
		Start:          result.DateRange.Start.Format("2006-01-02"),
		End:            result.DateRange.End.Format("2006-01-02"),
		DaysProcessed:  result.DaysProcessed,
		DaysSkipped:    result.DaysSkipped,
		RecordsWritten: result.RecordsWritten,
		ZeroDaysFilled: result.ZeroDaysFilled,
		Errors:         result.Errors,
		Timestamp:      s.now().In(s.cfg.Location).Format(time.RFC3339),
	}
}

// writeError maps engine failures to status codes. Forecast failures carry
// their classification so callers can tell bad input from a failed fit.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	if kind, ok := forecast.KindOf(err); ok {
		resp.Classification = string(kind)
		if kind != forecast.KindModelFit {
			status = http.StatusBadRequest
		}
	} else if errors.Is(err, common.ErrInvalidRequest) {
		status = http.StatusBadRequest
	}

	var userErr *common.UserError
	if errors.As(err, &userErr) {
		resp.Error = userErr.UserMessage
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err, "classification", resp.Classification)
	} else {
		s.logger.Warn("Request rejected", "error", err, "classification", resp.Classification)
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", "error", err)
	}
}

var _ Engine = (*engine.Engine)(nil)
