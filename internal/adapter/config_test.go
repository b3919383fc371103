package adapter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tvleaf/tvleaf/internal/adapter"
)

func TestDefaultConfig(t *testing.T) {
	cfg := adapter.DefaultConfig()

	assert.Equal(t, "https://mediathekviewweb.de", cfg.Catalog.URL)
	assert.NotEmpty(t, cfg.Paths.Data)
	assert.NotEmpty(t, cfg.Paths.Downloads)
	assert.NotEmpty(t, cfg.Paths.Thumbnails)
	assert.Equal(t, 15, cfg.Downloads.ProbeTimeoutSeconds)
	assert.Equal(t, 500, cfg.Downloads.ProgressIntervalMs)
	assert.Equal(t, 200, cfg.Thumbnails.DiskBudgetMB)
	assert.Equal(t, 50, cfg.Thumbnails.MemoryBudgetMB)
	assert.Equal(t, "ffmpeg", cfg.Thumbnails.FFmpegBinary)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}
