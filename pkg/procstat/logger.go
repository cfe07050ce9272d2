package procstat

import (
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	// Level is "debug", "info", "warn" or "error". Empty means "info".
	Level string
	// Format is "console" or "json". Empty means "console".
	Format string
	// Verbosity enables logr V-levels up to this value and overrides Level.
	Verbosity int
	// Output receives log lines. Nil means os.Stderr.
	Output io.Writer
}

// NewLogger builds a logr.Logger backed by zap. The returned function
// flushes buffered entries and should be called before exit.
//
// Example:
//
//	log, sync, err := procstat.NewLogger(procstat.LoggerOptions{Format: "json"})
//	if err != nil {
//		return err
//	}
//	defer sync()
//	m, err := procstat.New(ctx, procstat.Options{Logger: log})
func NewLogger(o LoggerOptions) (logr.Logger, func() error, error) {
	level := zapcore.InfoLevel
	if o.Level != "" {
		var err error
		if level, err = zapcore.ParseLevel(o.Level); err != nil {
			return logr.Discard(), nil, fmt.Errorf("invalid log level %q: %w", o.Level, err)
		}
	}
	if o.Verbosity > 0 {
		// logr V(n) logs at zap level -n.
		level = zapcore.Level(-o.Verbosity)
	}

	var encoder zapcore.Encoder
	switch o.Format {
	case "", "console":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	case "json":
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		return logr.Discard(), nil, fmt.Errorf("invalid log format %q", o.Format)
	}

	out := o.Output
	if out == nil {
		out = os.Stderr
	}
	core := zapcore.NewCore(encoder, zapcore.AddSync(out), zap.NewAtomicLevelAt(level))
	zl := zap.New(core)
	return zapr.NewLogger(zl), zl.Sync, nil
}
