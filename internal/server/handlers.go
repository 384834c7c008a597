package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hejijunhao/mailsort/internal/engine"
	"github.com/hejijunhao/mailsort/internal/model"
)

type predictRequest struct {
	Email *string `json:"email" binding:"required"`
}

type batchRequest struct {
	Emails []string `json:"emails" binding:"required"`
}

type healthResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	ModelLoaded bool   `json:"model_loaded"`
}

type batchResponse struct {
	Success     bool                     `json:"success"`
	Count       int                      `json:"count"`
	Predictions []model.PredictionResult `json:"predictions"`
}

type categoriesResponse struct {
	Success      bool              `json:"success"`
	Categories   []string          `json:"categories"`
	Descriptions map[string]string `json:"descriptions"`
}

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, errorResponse{
		Error:     message,
		RequestID: c.GetString(requestIDKey),
	})
}

// statusFor maps a failed prediction to its HTTP status.
func statusFor(res model.PredictionResult) int {
	err := res.Err()
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, engine.ErrModelNotLoaded), res.Kind == model.FailureModelNotLoaded:
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrEmptyInput), res.Kind == model.FailureEmptyInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// health handles GET /api/health. It reports 200 even when the model failed
// to load; model_loaded carries readiness.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:      "healthy",
		Message:     "Email Classification API is running!",
		ModelLoaded: s.engine.Ready(),
	})
}

// categories handles GET /api/categories.
func (s *Server) categories(c *gin.Context) {
	cat := s.engine.Catalog()
	c.JSON(http.StatusOK, categoriesResponse{
		Success:      true,
		Categories:   cat.Names(),
		Descriptions: cat.Descriptions(),
	})
}

// predict handles POST /api/predict.
func (s *Server) predict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, `request body must be {"email": "<text>"}`)
		return
	}
	if strings.TrimSpace(*req.Email) == "" {
		respondError(c, http.StatusBadRequest, "email must not be empty")
		return
	}

	res := s.engine.Predict(*req.Email)
	s.metrics.observe(res)
	c.JSON(statusFor(res), res)
}

// predictBatch handles POST /api/predict/batch. Failures are reported per
// element; the response is 200 whenever the request itself is valid.
func (s *Server) predictBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, `request body must be {"emails": ["<text>", ...]}`)
		return
	}
	switch {
	case len(req.Emails) == 0:
		respondError(c, http.StatusBadRequest, "no emails provided")
		return
	case len(req.Emails) > s.cfg.MaxBatch:
		respondError(c, http.StatusBadRequest, fmt.Sprintf("maximum %d emails per batch", s.cfg.MaxBatch))
		return
	}

	results := s.engine.PredictBatch(req.Emails)
	for _, res := range results {
		s.metrics.observe(res)
	}
	s.metrics.batchSize.Observe(float64(len(req.Emails)))

	c.JSON(http.StatusOK, batchResponse{
		Success:     true,
		Count:       len(results),
		Predictions: results,
	})
}
