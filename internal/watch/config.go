package watch

import (
	"time"

	"github.com/dusk-indust/polydeps/internal/detect"
)

type Config struct {
	DebounceWindow time.Duration
	MaxBatchSize   int
	// IgnorePatterns are doublestar patterns over root-relative slash
	// paths. A pattern matching a directory also ignores everything below.
	IgnorePatterns []string
}

func DefaultConfig() Config {
	ignore := append([]string(nil), detect.DefaultSkipDirs...)
	ignore = append(ignore,
		"**/dist",
		"**/build",
		"**/*.egg-info",
		"**/.pnp.cjs",
		"**/.pnp.loader.mjs",
		"**/*.log",
		"**/.idea",
	)
	return Config{
		DebounceWindow: 300 * time.Millisecond,
		MaxBatchSize:   100,
		IgnorePatterns: ignore,
	}
}
