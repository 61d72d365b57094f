package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/database/mock"
	"github.com/kozaktomas/face-login/internal/messages"
	"github.com/kozaktomas/face-login/internal/web/middleware"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// testTokens creates a token issuer for handler tests
func testTokens(t *testing.T) *middleware.TokenIssuer {
	t.Helper()
	tokens, err := middleware.NewTokenIssuer(testSecret, "face-login-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}
	return tokens
}

// newTestFaceHandler creates a face handler backed by the given store
func newTestFaceHandler(t *testing.T, store database.DescriptorStore) *FaceHandler {
	t.Helper()
	h := NewFaceHandler(zap.NewNop(), messages.MustLoad(), testTokens(t))
	h.openStore = func(context.Context) (database.DescriptorStore, error) {
		return store, nil
	}
	return h
}

// axisVector returns a 128-dim vector with a single non-zero component
func axisVector(i int, scale float32) []float32 {
	v := make([]float32, 128)
	v[i] = scale
	return v
}

// descriptorJSON converts a vector into the JSON number list sent by clients
func descriptorJSON(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestAsUser attaches token claims for userID to the request context
func requestAsUser(r *http.Request, userID int64, role string) *http.Request {
	claims := &middleware.Claims{Role: role}
	claims.Subject = strconv.FormatInt(userID, 10)
	return r.WithContext(middleware.SetClaimsInContext(r.Context(), claims))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// seededStore returns a mock store where users[i] is enrolled on axis i with label "user-<id>"
func seededStore(users ...int64) *mock.MockDescriptorStore {
	store := mock.NewMockDescriptorStore()
	for i, id := range users {
		store.AddDescriptor(database.StoredDescriptor{
			UserID: id,
			Vector: axisVector(i, 1),
			Label:  "user-" + strconv.FormatInt(id, 10),
		})
	}
	return store
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// assertJSONCode checks the machine-readable code of a JSON error
func assertJSONCode(t *testing.T, recorder *httptest.ResponseRecorder, expectedCode string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["code"] != expectedCode {
		t.Errorf("expected code '%s', got '%s'", expectedCode, result["code"])
	}
}
