package adapter

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/renameio/v2"

	"github.com/tvleaf/tvleaf/internal/domain"
)

const (
	imageTimeout    = 30 * time.Second
	transferBufSize = 128 << 10
	userAgent       = "tvleaf/1.0"
)

// DefaultProgressInterval is the minimum gap between progress callbacks.
const DefaultProgressInterval = 500 * time.Millisecond

// HTTPTransport implements domain.Transport over net/http. Downloads stream
// through a renameio pending file, so a cancelled or failed transfer never
// leaves a partial file at the destination.
type HTTPTransport struct {
	client           *http.Client
	progressInterval time.Duration
	logger           *slog.Logger
}

// NewHTTPTransport creates a transport. Transfers carry no overall timeout;
// they are bounded by the caller's context.
func NewHTTPTransport(progressInterval time.Duration, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	if progressInterval <= 0 {
		progressInterval = DefaultProgressInterval
	}
	return &HTTPTransport{
		client:           &http.Client{},
		progressInterval: progressInterval,
		logger:           logger,
	}
}

// Probe issues a HEAD request and returns the declared content length,
// 0 when the server does not report one.
func (t *HTTPTransport) Probe(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	if resp.ContentLength < 0 {
		return 0, nil
	}
	return resp.ContentLength, nil
}

// Download streams the URL to dest, reporting progress no more often than the
// configured interval plus always once on completion. The file appears at
// dest only after the transfer fully succeeds.
func (t *HTTPTransport) Download(ctx context.Context, url, dest string, sizeHint int64, onProgress domain.TransferProgress) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	// A freshly reported length takes priority over the caller's hint.
	expected := resp.ContentLength
	if expected <= 0 {
		expected = sizeHint
	}

	pending, err := renameio.NewPendingFile(dest)
	if err != nil {
		return 0, fmt.Errorf("create pending download file: %w", err)
	}
	defer func() {
		// No-op once committed; removes the temp file on error or cancel.
		if err := pending.Cleanup(); err != nil {
			t.logger.Debug("cleanup pending download file", "error", err)
		}
	}()

	var written int64
	lastReport := time.Now()
	buf := make([]byte, transferBufSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := pending.Write(buf[:n]); writeErr != nil {
				return written, fmt.Errorf("write download data: %w", writeErr)
			}
			written += int64(n)
			if onProgress != nil && time.Since(lastReport) >= t.progressInterval {
				lastReport = time.Now()
				onProgress(written, expected)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			return written, fmt.Errorf("read download data: %w", readErr)
		}
	}

	if onProgress != nil {
		onProgress(written, expected)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return written, fmt.Errorf("atomically replace download file: %w", err)
	}
	return written, nil
}

// FetchImage retrieves and decodes a remote image.
func (t *HTTPTransport) FetchImage(ctx context.Context, url string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, imageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	img, err := imaging.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
