package terminal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxFrameBytes bounds a single snapshot read.
const maxFrameBytes = 8 << 20

// HTTPFrameSource pulls JPEG snapshots from an IP camera snapshot URL.
type HTTPFrameSource struct {
	url    string
	client *http.Client
}

// NewHTTPFrameSource creates a frame source for the given snapshot URL.
func NewHTTPFrameSource(url string) *HTTPFrameSource {
	return &HTTPFrameSource{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Capture fetches one frame.
func (s *HTTPFrameSource) Capture(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("camera unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	frame, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return nil, fmt.Errorf("could not read frame: %w", err)
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("camera returned empty frame")
	}
	return frame, nil
}

// Verify interface compliance.
var _ FrameSource = (*HTTPFrameSource)(nil)
