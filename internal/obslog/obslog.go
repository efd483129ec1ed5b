// Package obslog constructs the process-wide zap logger. The core never
// reaches for a global logger — every constructor that needs one takes it
// as an explicit argument — but something has to build the first one, and
// that is this package's only job.
package obslog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-configured zap logger, switching to debug level
// when verbose is set. JSON encoding, no sampling, matching how the CLI
// wants its own stderr output: one structured line per event.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("obslog: build logger: %w", err)
	}
	return logger, nil
}
