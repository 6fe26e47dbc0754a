// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package export

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of an export session. All the timing
// values exist to keep a multi-hundred-item batch from starving the
// host; they are configuration, not magic numbers.
type Config struct {
	// ChunkSize is the number of attempted items grouped into one
	// archive file.
	ChunkSize int `env:"CHUNK_SIZE"`

	// ArchiveBase is the base name of flushed archive files.
	ArchiveBase string `env:"ARCHIVE_BASE"`

	// SettleDelay lets the renderer commit its current item before
	// capture.
	SettleDelay time.Duration `env:"SETTLE_DELAY"`

	// StepDelay decouples two consecutive items.
	StepDelay time.Duration `env:"STEP_DELAY"`

	// FontTimeout bounds the one-shot font preparation.
	FontTimeout time.Duration `env:"FONT_TIMEOUT"`

	// AssetTimeout bounds the first asset-readiness wait of an item.
	AssetTimeout time.Duration `env:"ASSET_TIMEOUT"`

	// RetryBackoff is the pause before a second capture attempt.
	RetryBackoff time.Duration `env:"RETRY_BACKOFF"`

	// RetryAssetTimeout bounds the asset wait preceding the second
	// capture attempt.
	RetryAssetTimeout time.Duration `env:"RETRY_ASSET_TIMEOUT"`

	// GCPauseInterval is the number of items between two pacing
	// pauses within a chunk. Zero disables pacing.
	GCPauseInterval int `env:"GC_PAUSE_INTERVAL"`

	// GCPauseDuration is the duration of one pacing pause.
	GCPauseDuration time.Duration `env:"GC_PAUSE_DURATION"`

	// InterChunkPause lets the delivery side settle after a chunk
	// flush.
	InterChunkPause time.Duration `env:"INTER_CHUNK_PAUSE"`

	// MinCaptureBytes is the smallest capture result considered
	// valid. Anything shorter triggers the retry policy.
	MinCaptureBytes int `env:"MIN_CAPTURE_BYTES"`
}

// NewConfig returns a [Config] with the default values.
func NewConfig() Config {
	return Config{
		ChunkSize:         40,
		ArchiveBase:       "cartes",
		SettleDelay:       50 * time.Millisecond,
		StepDelay:         50 * time.Millisecond,
		FontTimeout:       10 * time.Second,
		AssetTimeout:      5 * time.Second,
		RetryBackoff:      500 * time.Millisecond,
		RetryAssetTimeout: 3 * time.Second,
		GCPauseInterval:   10,
		GCPauseDuration:   150 * time.Millisecond,
		InterChunkPause:   1500 * time.Millisecond,
		MinCaptureBytes:   1000,
	}
}

// LoadConfig returns a [Config] with the default values, overridden
// by CF_EXPORT_* environment variables.
func LoadConfig() (Config, error) {
	cfg := NewConfig()
	err := env.ParseWithOptions(&cfg, env.Options{Prefix: "CF_EXPORT_"})
	return cfg, err
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.ChunkSize < 1 {
		return errors.New("chunk size must be at least 1")
	}
	if c.ArchiveBase == "" {
		return errors.New("archive base name is required")
	}
	if c.MinCaptureBytes < 0 {
		return errors.New("minimum capture size must not be negative")
	}
	return nil
}
