package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It stays a no-op until InitLogger runs so
// library code and tests are silent by default.
var Log = zap.NewNop()

// InitLogger builds a production zap logger. level falls back to LOG_LEVEL
// and then to info; when logDir is set, output is also written to
// sentinel.log and sentinel_error.log inside it.
func InitLogger(level, logDir string) error {
	config := zap.NewProductionConfig()

	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		config.Level.SetLevel(lvl)
	}

	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return err
		}
		config.OutputPaths = append(config.OutputPaths, filepath.Join(logDir, "sentinel.log"))
		config.ErrorOutputPaths = append(config.ErrorOutputPaths, filepath.Join(logDir, "sentinel_error.log"))
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		return err
	}
	Log = logger
	zap.ReplaceGlobals(logger)
	return nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Debugf logs a formatted message at debug level
func Debugf(format string, args ...interface{}) {
	Log.Sugar().Debugf(format, args...)
}

// Infof logs a formatted message at info level
func Infof(format string, args ...interface{}) {
	Log.Sugar().Infof(format, args...)
}

// Sync flushes buffered log entries.
func Sync() error {
	return Log.Sync()
}
