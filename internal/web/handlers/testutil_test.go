package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/facekiosk/facekiosk/internal/matcher"
	"github.com/go-chi/chi/v5"
)

// requestWithChiParams attaches chi route parameters to a request so a
// handler can be tested without a full router.
func requestWithChiParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func assertStatusCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Errorf("expected status %d, got %d (body: %s)", want, rec.Code, rec.Body.String())
	}
}

func assertContentType(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	if got := rec.Header().Get("Content-Type"); got != want {
		t.Errorf("expected content type %q, got %q", want, got)
	}
}

func parseJSONResponse(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse response JSON: %v (body: %s)", err, rec.Body.String())
	}
}

// assertErrorKind checks the error envelope's machine-readable kind tag.
func assertErrorKind(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	var resp errorResponse
	parseJSONResponse(t, rec, &resp)
	if resp.Error.Kind != want {
		t.Errorf("expected error kind %q, got %q", want, resp.Error.Kind)
	}
}

// fakeEncoder returns a scripted encoding or error.
type fakeEncoder struct {
	encoding []float32
	err      error
}

func (f *fakeEncoder) EncodeOne(ctx context.Context, frame []byte) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.encoding, nil
}

// fakeRecognizer returns a scripted match or error.
type fakeRecognizer struct {
	match *matcher.Match
	err   error
}

func (f *fakeRecognizer) Match(encoding []float32) (*matcher.Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.match, nil
}
