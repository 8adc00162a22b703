// Package logger builds the process-wide zap logger.  Binaries call Init
// once at startup and pass Get() (or a Named child) into the components
// they construct.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iliyamo/hotel-reservation/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	log       *zap.Logger
	atomLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init configures the global logger.  env selects the default encoder:
// console for dev, JSON everywhere else, unless cfg.Format overrides it.
func Init(cfg config.LogConfig, env string) error {
	atomLevel.SetLevel(parseLevel(cfg.Level))

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch {
	case cfg.Format == "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case cfg.Format == "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case env == "dev" || env == "development":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	var ws zapcore.WriteSyncer
	switch cfg.Output {
	case "file":
		w, err := RotatingFile(cfg.FilePath)
		if err != nil {
			return err
		}
		ws = zapcore.AddSync(w)
	default:
		ws = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, ws, atomLevel)
	log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return nil
}

// RotatingFile returns a size-rotated writer for path, creating the
// directory if needed.
func RotatingFile(path string) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     7,
		Compress:   true,
	}, nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Get returns the global logger, or a no-op logger before Init.
func Get() *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// Named returns a child of the global logger.
func Named(name string) *zap.Logger { return Get().Named(name) }

func UpdateLevel(level string) {
	atomLevel.SetLevel(parseLevel(level))
}

// Sync flushes buffered entries.  Errors from syncing a terminal are
// ignored.
func Sync() error {
	if log == nil {
		return nil
	}
	if err := log.Sync(); err != nil {
		msg := err.Error()
		if !strings.Contains(msg, "inappropriate ioctl for device") &&
			!strings.Contains(msg, "invalid argument") &&
			!strings.Contains(msg, "bad file descriptor") {
			return err
		}
	}
	return nil
}
