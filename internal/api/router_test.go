package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/medpredict/internal/predictor"
	"github.com/Skufu/medpredict/internal/store"
)

const validBody = `{
	"age": 30, "glucose": 100, "bloodPressure": 120, "bmi": 25, "cholesterol": 180,
	"hba1c": 5.5, "triglycerides": 150, "dietScore": 5, "stressLevel": 5, "sleepHours": 7
}`

type fakePredictor struct {
	result  predictor.Prediction
	err     error
	loadErr error
	calls   int
	last    predictor.FeatureVector
}

func (f *fakePredictor) Predict(features predictor.FeatureVector) (predictor.Prediction, error) {
	f.calls++
	f.last = features
	return f.result, f.err
}

func (f *fakePredictor) Ready() bool { return f.loadErr == nil }
func (f *fakePredictor) LoadError() error { return f.loadErr }

type fakeRecorder struct {
	records []store.Record
	err     error
	pingErr error
}

func (f *fakeRecorder) Record(ctx context.Context, rec store.Record) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRecorder) Recent(ctx context.Context, limit int) ([]store.Record, error) {
	if limit > len(f.records) {
		limit = len(f.records)
	}
	return f.records[:limit], nil
}

func (f *fakeRecorder) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeRecorder) Close() {}

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

func newTestRouter(p Predictor, history store.Recorder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(p, Options{History: history})
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter(&fakePredictor{}, nil)

	w := serve(router, "GET", "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestPredictSuccess(t *testing.T) {
	fake := &fakePredictor{result: predictor.Prediction{Class: 0, Label: "Diabetes", Known: true}}
	router := newTestRouter(fake, nil)

	w := serve(router, "POST", "/api/predict", validBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp PredictResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Label != "Diabetes" || resp.Message != "Predicted Medical Condition: Diabetes" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if fake.last != predictor.DefaultFeatures() {
		t.Fatalf("request mapped to wrong features: %+v", fake.last)
	}
}

func TestPredictAcceptsZeroBoundaries(t *testing.T) {
	fake := &fakePredictor{result: predictor.Prediction{Class: 1, Label: "Healthy", Known: true}}
	router := newTestRouter(fake, nil)

	body := `{"age": 0, "glucose": 50, "bloodPressure": 60, "bmi": 10, "cholesterol": 100,
		"hba1c": 4, "triglycerides": 50, "dietScore": 0, "stressLevel": 0, "sleepHours": 0}`
	w := serve(router, "POST", "/api/predict", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for minimum values, got %d: %s", w.Code, w.Body.String())
	}

	body = `{"age": 120, "glucose": 300, "bloodPressure": 200, "bmi": 60, "cholesterol": 400,
		"hba1c": 14, "triglycerides": 500, "dietScore": 10, "stressLevel": 10, "sleepHours": 24}`
	w = serve(router, "POST", "/api/predict", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for maximum values, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPredictValidation(t *testing.T) {
	fake := &fakePredictor{}
	router := newTestRouter(fake, nil)

	body := strings.Replace(validBody, `"bloodPressure": 120`, `"bloodPressure": 250`, 1)
	w := serve(router, "POST", "/api/predict", body)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for validation failure, got %d", w.Code)
	}
	lower := strings.ToLower(w.Body.String())
	if !strings.Contains(lower, "validation_failed") || !strings.Contains(lower, "blood pressure") {
		t.Fatalf("expected validation error response, got %s", w.Body.String())
	}
	if fake.calls != 0 {
		t.Fatal("predictor called for invalid input")
	}
}

func TestPredictMissingField(t *testing.T) {
	router := newTestRouter(&fakePredictor{}, nil)

	w := serve(router, "POST", "/api/predict", `{"age": 30}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Sleep Hours is required") {
		t.Fatalf("expected missing field message, got %s", w.Body.String())
	}
}

func TestPredictRejectsFractionalInteger(t *testing.T) {
	router := newTestRouter(&fakePredictor{}, nil)

	body := strings.Replace(validBody, `"age": 30`, `"age": 30.5`, 1)
	w := serve(router, "POST", "/api/predict", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPredictUnavailable(t *testing.T) {
	fake := &fakePredictor{err: predictor.ErrServiceUnavailable, loadErr: errors.New("missing scaler.json")}
	router := newTestRouter(fake, nil)

	w := serve(router, "POST", "/api/predict", validBody)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "service_unavailable") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestPredictError(t *testing.T) {
	fake := &fakePredictor{err: &predictor.PredictionError{Err: errors.New("shape mismatch")}}
	router := newTestRouter(fake, nil)

	w := serve(router, "POST", "/api/predict", validBody)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Could not process inputs. Details: shape mismatch") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestReadyzReflectsModelState(t *testing.T) {
	router := newTestRouter(&fakePredictor{loadErr: errors.New("missing model.json")}, nil)
	w := serve(router, "GET", "/readyz", "")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "missing model.json") {
		t.Fatalf("expected degraded readiness, got %d: %s", w.Code, w.Body.String())
	}

	router = newTestRouter(&fakePredictor{}, &fakeRecorder{pingErr: errors.New("conn refused")})
	w = serve(router, "GET", "/readyz", "")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "conn refused") {
		t.Fatalf("expected degraded history, got %d: %s", w.Code, w.Body.String())
	}

	router = newTestRouter(&fakePredictor{}, &fakeRecorder{})
	w = serve(router, "GET", "/readyz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d: %s", w.Code, w.Body.String())
	}
}

func TestStatusAndSchema(t *testing.T) {
	router := newTestRouter(&fakePredictor{loadErr: errors.New("missing scaler.json")}, nil)

	w := serve(router, "GET", "/api/status", "")
	if !strings.Contains(w.Body.String(), `"ready":false`) || !strings.Contains(w.Body.String(), "missing scaler.json") {
		t.Fatalf("unexpected status body: %s", w.Body.String())
	}

	w = serve(router, "GET", "/api/schema", "")
	var schema SchemaResponse
	if err := json.Unmarshal(w.Body.Bytes(), &schema); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(schema.Fields) != predictor.NumFeatures || schema.Labels[6] != "Cancer" {
		t.Fatalf("unexpected schema: %+v", schema)
	}
}

func TestPredictRecordsHistory(t *testing.T) {
	rec := &fakeRecorder{}
	router := newTestRouter(&fakePredictor{result: predictor.Prediction{Class: 4, Label: "Hypertension", Known: true}}, rec)

	w := serve(router, "POST", "/api/predict", validBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(rec.records) != 1 || rec.records[0].Label != "Hypertension" {
		t.Fatalf("expected one recorded prediction, got %+v", rec.records)
	}
	if !strings.Contains(w.Body.String(), rec.records[0].ID.String()) {
		t.Fatalf("expected record id in response, got %s", w.Body.String())
	}

	w = serve(router, "GET", "/api/predictions?limit=5", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Hypertension") {
		t.Fatalf("unexpected history response %d: %s", w.Code, w.Body.String())
	}

	w = serve(router, "GET", "/api/predictions?limit=abc", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestHistoryFailureDoesNotFailPrediction(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	router := newTestRouter(&fakePredictor{result: predictor.Prediction{Class: 1, Label: "Healthy", Known: true}}, rec)

	w := serve(router, "POST", "/api/predict", validBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestPredictionsDisabled(t *testing.T) {
	router := newTestRouter(&fakePredictor{}, nil)
	w := serve(router, "GET", "/api/predictions", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRouterWithMissingArtifacts(t *testing.T) {
	dir := t.TempDir()
	svc := predictor.New(predictor.FileLoader{
		ScalerPath: filepath.Join(dir, "scaler.json"),
		ModelPath:  filepath.Join(dir, "model.json"),
	})
	svc.Load()
	router := newTestRouter(svc, nil)

	w := serve(router, "POST", "/api/predict", validBody)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

// Ensure limitBodySize middleware allows small payloads and blocks large ones.
func TestLimitBodySize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(limitBodySize(10))
	router.POST("/echo", func(c *gin.Context) {
		_, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too large"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	t.Run("within limit", func(t *testing.T) {
		w := serve(router, "POST", "/echo", "12345")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		w := serve(router, "POST", "/echo", "01234567890")
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d", w.Code)
		}
	})
}
