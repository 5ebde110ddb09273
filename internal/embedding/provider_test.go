package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/facekiosk/facekiosk/internal/config"
)

func testProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewProvider(&config.EmbeddingConfig{URL: srv.URL, Dim: 128})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return p
}

func encodingsBody(count int) []byte {
	encodings := make([][]float32, count)
	for i := range encodings {
		encodings[i] = make([]float32, 128)
	}
	body, _ := json.Marshal(encodeResponse{Encodings: encodings})
	return body
}

func TestPing(t *testing.T) {
	p := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("expected healthy service, got %v", err)
	}
}

func TestPing_Unhealthy(t *testing.T) {
	p := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	if err := p.Ping(context.Background()); err == nil {
		t.Error("expected error for unhealthy service")
	}
}

func TestEncodeOne(t *testing.T) {
	p := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/encode" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("unexpected content type %s", ct)
		}
		w.Write(encodingsBody(1))
	}))

	enc, err := p.EncodeOne(context.Background(), []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("expected encoding, got %v", err)
	}
	if len(enc) != 128 {
		t.Errorf("expected 128-dim encoding, got %d", len(enc))
	}
}

func TestEncodeOne_NoFace(t *testing.T) {
	p := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(encodingsBody(0))
	}))

	_, err := p.EncodeOne(context.Background(), []byte("jpeg-bytes"))
	if !errors.Is(err, ErrNoFace) {
		t.Errorf("expected ErrNoFace, got %v", err)
	}
}

func TestEncodeOne_MultipleFaces(t *testing.T) {
	p := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(encodingsBody(2))
	}))

	_, err := p.EncodeOne(context.Background(), []byte("jpeg-bytes"))
	if !errors.Is(err, ErrMultipleFaces) {
		t.Errorf("expected ErrMultipleFaces, got %v", err)
	}
}

func TestEncode_DimensionMismatch(t *testing.T) {
	p := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(encodeResponse{Encodings: [][]float32{make([]float32, 64)}})
		w.Write(body)
	}))

	_, err := p.Encode(context.Background(), []byte("jpeg-bytes"))
	if err == nil {
		t.Error("expected error for wrong encoding dimension")
	}
}

func TestEncode_ServiceError(t *testing.T) {
	p := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))

	_, err := p.Encode(context.Background(), []byte("jpeg-bytes"))
	if err == nil {
		t.Error("expected error for failing service")
	}
}

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestEncode_DownscalesBeforeUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("failed to read frame: %v", err)
		}
		img, _, err := image.Decode(bytes.NewReader(body))
		if err != nil {
			t.Fatalf("failed to decode uploaded frame: %v", err)
		}
		if img.Bounds().Dx() != 640 {
			t.Errorf("expected uploaded frame width 640, got %d", img.Bounds().Dx())
		}
		w.Write(encodingsBody(1))
	}))
	t.Cleanup(srv.Close)

	p, err := NewProvider(&config.EmbeddingConfig{URL: srv.URL, Dim: 128, MaxFrameWidth: 640})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	if _, err := p.Encode(context.Background(), testJPEG(t, 1280, 720)); err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
}

func TestEncode_UndecodableFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("undecodable frame must not reach the service")
	}))
	t.Cleanup(srv.Close)

	p, err := NewProvider(&config.EmbeddingConfig{URL: srv.URL, Dim: 128, MaxFrameWidth: 640})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	if _, err := p.Encode(context.Background(), []byte("not an image")); err == nil {
		t.Error("expected error for undecodable frame")
	}
}

func TestDownscaleFrame(t *testing.T) {
	frame := testJPEG(t, 1280, 720)

	scaled, err := DownscaleFrame(frame, 640)
	if err != nil {
		t.Fatalf("failed to downscale: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(scaled))
	if err != nil {
		t.Fatalf("failed to decode scaled frame: %v", err)
	}
	if img.Bounds().Dx() != 640 {
		t.Errorf("expected width 640, got %d", img.Bounds().Dx())
	}
	if img.Bounds().Dy() != 360 {
		t.Errorf("expected height 360, got %d", img.Bounds().Dy())
	}
}

func TestDownscaleFrame_SmallFrameUntouched(t *testing.T) {
	frame := testJPEG(t, 320, 240)

	scaled, err := DownscaleFrame(frame, 640)
	if err != nil {
		t.Fatalf("failed to downscale: %v", err)
	}
	if !bytes.Equal(frame, scaled) {
		t.Error("small frame should be returned untouched")
	}
}
