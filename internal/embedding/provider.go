// Package embedding talks to the face embedding service that turns camera
// frames into fixed-length encodings.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/facekiosk/facekiosk/internal/config"
)

var (
	// ErrNoFace is returned when the service finds no face in the frame.
	ErrNoFace = errors.New("no face detected")

	// ErrMultipleFaces is returned when exactly one face was required but
	// the frame contains several.
	ErrMultipleFaces = errors.New("multiple faces detected")
)

// Provider is an HTTP client for the embedding service.
type Provider struct {
	baseURL  *url.URL
	dim      int
	maxWidth int
	client   *http.Client
}

// NewProvider creates a Provider from config.
func NewProvider(cfg *config.EmbeddingConfig) (*Provider, error) {
	parsed, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid embedding service URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid embedding service URL scheme: %q", parsed.Scheme)
	}

	return &Provider{
		baseURL:  parsed,
		dim:      cfg.Dim,
		maxWidth: cfg.MaxFrameWidth,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Dim returns the encoding vector length the provider expects.
func (p *Provider) Dim() int {
	return p.dim
}

func (p *Provider) resolveURL(endpoint string) string {
	return p.baseURL.String() + "/" + strings.TrimLeft(endpoint, "/")
}

// Ping checks the embedding service health endpoint.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.resolveURL("health"), nil)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// encodeResponse is the service's answer to an encode request.
type encodeResponse struct {
	Encodings [][]float32 `json:"encodings"`
}

// Encode sends a JPEG frame and returns one encoding per detected face.
// Frames wider than the configured maximum are downscaled before the upload.
// Returns ErrNoFace when the frame contains none.
func (p *Provider) Encode(ctx context.Context, frame []byte) ([][]float32, error) {
	if p.maxWidth > 0 {
		scaled, err := DownscaleFrame(frame, p.maxWidth)
		if err != nil {
			return nil, fmt.Errorf("downscale frame: %w", err)
		}
		frame = scaled
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, p.resolveURL("encode"), bytes.NewReader(frame),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("encode failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	var result encodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}

	if len(result.Encodings) == 0 {
		return nil, ErrNoFace
	}
	for i, enc := range result.Encodings {
		if len(enc) != p.dim {
			return nil, fmt.Errorf("encoding %d has %d dimensions, expected %d", i, len(enc), p.dim)
		}
	}
	return result.Encodings, nil
}

// EncodeOne returns the encoding of exactly one face. Enrollment photos and
// kiosk frames both require a single subject.
func (p *Provider) EncodeOne(ctx context.Context, frame []byte) ([]float32, error) {
	encodings, err := p.Encode(ctx, frame)
	if err != nil {
		return nil, err
	}
	if len(encodings) > 1 {
		return nil, ErrMultipleFaces
	}
	return encodings[0], nil
}

// readErrorBody reads up to 1KB of an error response body for diagnostics.
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 1024))
	if err != nil {
		return "unable to read response body"
	}
	return string(body)
}
