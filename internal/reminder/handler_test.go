package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskhub/internal/database"
	"taskhub/internal/logger"

	"github.com/gin-gonic/gin"
)

type fakeRunner struct {
	result Result
	err    error
	calls  int
}

func (r *fakeRunner) Run(ctx context.Context) (Result, error) {
	r.calls++
	return r.result, r.err
}

func setupRouter(runner Runner, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(runner, secret, logger.Discard()).RegisterRoutes(r.Group("/api/cron"))
	return r
}

func trigger(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/cron/reminders", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTriggerRejectsBadCredentials(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		auth   string
	}{
		{"secret unset", "", "Bearer "},
		{"secret unset with header", "", "Bearer anything"},
		{"missing header", "s3cret", ""},
		{"wrong secret", "s3cret", "Bearer wrong"},
		{"no scheme", "s3cret", "s3cret"},
		{"lowercase scheme", "s3cret", "bearer s3cret"},
		{"trailing space", "s3cret", "Bearer s3cret "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			w := trigger(setupRouter(runner, tt.secret), tt.auth)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
			if runner.calls != 0 {
				t.Error("runner called without authorization")
			}
		})
	}
}

func TestTriggerSuccess(t *testing.T) {
	runner := &fakeRunner{result: Result{DueSoonSent: 2, OverdueSent: 1, OverdueFailed: 1}}
	w := trigger(setupRouter(runner, "s3cret"), "Bearer s3cret")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["success"] != true || body["dueSoonSent"] != float64(2) || body["overdueSent"] != float64(1) {
		t.Errorf("body = %v", body)
	}
	if body["overdueFailed"] != float64(1) {
		t.Errorf("failure count missing: %v", body)
	}
}

func TestTriggerRunInProgress(t *testing.T) {
	runner := &fakeRunner{err: ErrRunInProgress}
	w := trigger(setupRouter(runner, "s3cret"), "Bearer s3cret")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestTriggerStorageFailure(t *testing.T) {
	runner := &fakeRunner{
		result: Result{DueSoonSent: 2},
		err:    database.StorageErr("list reminder candidates", errors.New("db down")),
	}
	w := trigger(setupRouter(runner, "s3cret"), "Bearer s3cret")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["success"] != false {
		t.Errorf("body = %v", body)
	}
	if body["dueSoonSent"] != float64(2) {
		t.Errorf("partial counts dropped: %v", body)
	}
}
