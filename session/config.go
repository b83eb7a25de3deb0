package session

import (
	"time"

	"github.com/spf13/viper"

	"github.com/lorsio/lors/internal/memsize"
)

// Config holds the options recognized by the session constructor. Zero
// value fields are replaced by DefaultConfig's defaults in New.
type Config struct {
	// BlockSize is the upload job granularity. Accepts a memsize.Size
	// directly, or is populated from a human-readable string ("5m",
	// "64KiB") via LoadConfig.
	BlockSize memsize.Size

	// Timeout bounds every individual driver call (MakeAllocation, Read,
	// Write, Copy). Zero or negative is replaced by the default (30s).
	Timeout time.Duration

	// Threads is the worker pool size. <= 0 is replaced by the default (4).
	Threads int

	// VizURL is the optional visualization sink endpoint. Empty disables
	// telemetry.
	VizURL string

	// Copies is the desired replica count per chunk for uploads.
	Copies int

	// Duration is the lifetime hint, in seconds, passed to
	// Driver.MakeAllocation.
	Duration int64

	// VerifyChecksums, when set, makes Upload compute a sha256 digest of
	// each chunk and store it on the allocation, and makes Download
	// verify it after each successful read.
	VerifyChecksums bool
}

// DefaultConfig returns the configuration applied for zero-valued fields.
func DefaultConfig() Config {
	return Config{
		BlockSize: 64 * memsize.KiB,
		Timeout:   30 * time.Second,
		Threads:   4,
		Copies:    1,
		Duration:  3600,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BlockSize <= 0 {
		c.BlockSize = d.BlockSize
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Threads <= 0 {
		c.Threads = d.Threads
	}
	if c.Copies <= 0 {
		c.Copies = d.Copies
	}
	if c.Duration <= 0 {
		c.Duration = d.Duration
	}
	return c
}

// LoadConfig reads session options from a viper instance, the way the
// teacher's command layer loads uplink configuration: keys are
// "block_size", "timeout_s", "threads", "viz_url", "copies", "duration",
// "verify_checksums". block_size accepts either an integer byte count or a
// human-readable string such as "5m".
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Timeout:         time.Duration(v.GetInt64("timeout_s")) * time.Second,
		Threads:         v.GetInt("threads"),
		VizURL:          v.GetString("viz_url"),
		Copies:          v.GetInt("copies"),
		Duration:        v.GetInt64("duration"),
		VerifyChecksums: v.GetBool("verify_checksums"),
	}

	if raw := v.GetString("block_size"); raw != "" {
		size, err := memsize.Parse(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.BlockSize = size
	}

	return cfg.withDefaults(), nil
}
