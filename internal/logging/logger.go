package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Format "console" selects the development
// encoder; anything else gets zap's production JSON config.
func New(level, format string) (*zap.Logger, error) {
	var c zap.Config
	if format == "console" {
		c = zap.NewDevelopmentConfig()
		c.DisableStacktrace = true
	} else {
		c = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	c.Level = zap.NewAtomicLevelAt(lvl)

	return c.Build()
}
