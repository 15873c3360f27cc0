package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Skufu/medpredict/internal/predictor"
	"github.com/Skufu/medpredict/internal/store"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200

	unavailableMessage = "Model cannot run without the required artifact files."
)

// PredictRequest mirrors the form. Pointers let a zero value (Age=0,
// SleepHours=0) pass "required".
type PredictRequest struct {
	Age           *int     `json:"age" binding:"required"`
	Glucose       *float64 `json:"glucose" binding:"required"`
	BloodPressure *float64 `json:"bloodPressure" binding:"required"`
	BMI           *float64 `json:"bmi" binding:"required"`
	Cholesterol   *float64 `json:"cholesterol" binding:"required"`
	HbA1c         *float64 `json:"hba1c" binding:"required"`
	Triglycerides *float64 `json:"triglycerides" binding:"required"`
	DietScore     *int     `json:"dietScore" binding:"required"`
	StressLevel   *int     `json:"stressLevel" binding:"required"`
	SleepHours    *float64 `json:"sleepHours" binding:"required"`
}

func (r PredictRequest) features() predictor.FeatureVector {
	return predictor.FeatureVector{
		Age:           *r.Age,
		Glucose:       *r.Glucose,
		BloodPressure: *r.BloodPressure,
		BMI:           *r.BMI,
		Cholesterol:   *r.Cholesterol,
		HbA1c:         *r.HbA1c,
		Triglycerides: *r.Triglycerides,
		DietScore:     *r.DietScore,
		StressLevel:   *r.StressLevel,
		SleepHours:    *r.SleepHours,
	}
}

// requestKeys maps PredictRequest field names to the form keys.
var requestKeys = map[string]string{
	"Age":           "age",
	"Glucose":       "glucose",
	"BloodPressure": "bloodPressure",
	"BMI":           "bmi",
	"Cholesterol":   "cholesterol",
	"HbA1c":         "hba1c",
	"Triglycerides": "triglycerides",
	"DietScore":     "dietScore",
	"StressLevel":   "stressLevel",
	"SleepHours":    "sleepHours",
}

type PredictResponse struct {
	ID      string `json:"id,omitempty"`
	Class   int    `json:"class"`
	Label   string `json:"label"`
	Known   bool   `json:"known"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Fields  []predictor.FieldError `json:"fields,omitempty"`
}

type SchemaResponse struct {
	Groups   []string                `json:"groups"`
	Fields   []predictor.Field       `json:"fields"`
	Labels   map[int]string          `json:"labels"`
	Submit   string                  `json:"submit"`
	Defaults predictor.FeatureVector `json:"defaults"`
}

func (h *handler) schema(c *gin.Context) {
	c.JSON(http.StatusOK, SchemaResponse{
		Groups:   []string{predictor.GroupPatient, predictor.GroupLifestyle},
		Fields:   predictor.Fields(),
		Labels:   predictor.Labels(),
		Submit:   "Predict Medical Condition",
		Defaults: predictor.DefaultFeatures(),
	})
}

func (h *handler) status(c *gin.Context) {
	body := gin.H{"ready": h.predictor.Ready()}
	if err := h.predictor.LoadError(); err != nil {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

func (h *handler) predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error:   "validation_failed",
				Message: "all fields are required",
				Fields:  missingFields(verrs),
			})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_payload", Message: err.Error()})
		return
	}

	features := req.features()
	if err := features.Validate(); err != nil {
		var verr *predictor.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error:   "validation_failed",
				Message: err.Error(),
				Fields:  verr.Fields,
			})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_payload", Message: err.Error()})
		return
	}

	result, err := h.predictor.Predict(features)
	switch {
	case errors.Is(err, predictor.ErrServiceUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "service_unavailable", Message: unavailableMessage})
		return
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "prediction_failed",
			Message: "Prediction Error: Could not process inputs. Details: " + detail(err),
		})
		return
	}

	resp := PredictResponse{
		Class:   result.Class,
		Label:   result.Label,
		Known:   result.Known,
		Message: "Predicted Medical Condition: " + result.Label,
	}

	if h.history != nil {
		rec := store.NewRecord(features, result)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.history.Record(ctx, rec); err != nil {
			h.logger.Warn("record prediction", zap.Error(err))
		} else {
			resp.ID = rec.ID.String()
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *handler) recent(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "history_disabled", Message: store.ErrDisabled.Error()})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_limit", Message: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	recs, err := h.history.Recent(ctx, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "history_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": recs})
}

func missingFields(verrs validator.ValidationErrors) []predictor.FieldError {
	labels := make(map[string]string)
	for _, f := range predictor.Fields() {
		labels[f.Key] = f.Label
	}

	out := make([]predictor.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		key, ok := requestKeys[fe.Field()]
		if !ok {
			key = fe.Field()
		}
		label := labels[key]
		if label == "" {
			label = key
		}
		out = append(out, predictor.FieldError{Field: key, Message: label + " is required"})
	}
	return out
}

// detail strips the PredictionError prefix from err.
func detail(err error) string {
	var perr *predictor.PredictionError
	if errors.As(err, &perr) && perr.Err != nil {
		return perr.Err.Error()
	}
	return err.Error()
}
