package domain

import (
	"context"
	"image"
	"time"
)

// TransferProgress reports cumulative transfer state during a download.
// expected is the declared total byte count, 0 when unknown.
type TransferProgress func(downloaded, expected int64)

// Transport provides network operations for the download pipeline.
type Transport interface {
	// Probe issues a metadata-only request and returns the declared
	// content length, or 0 when the server does not report one.
	Probe(ctx context.Context, url string) (int64, error)

	// Download streams the URL to dest, invoking onProgress periodically
	// and always once on completion. A cancelled or failed transfer leaves
	// no file at dest. Returns the number of bytes written.
	Download(ctx context.Context, url, dest string, sizeHint int64, onProgress TransferProgress) (int64, error)

	// FetchImage retrieves and decodes a remote image.
	FetchImage(ctx context.Context, url string) (image.Image, error)
}

// FrameExtractor decodes a representative still frame from a media source.
// The source may be a remote URL or a local file path.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, source string, at time.Duration) (image.Image, error)
}
