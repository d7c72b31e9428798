package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the process logger. When logFolder is set the log is
// also written to a per-run file whose path is returned.
func newLogger(level, logFolder string) (*zap.Logger, string, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, "", err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var logPath string
	if logFolder != "" {
		if err := os.MkdirAll(logFolder, 0o755); err != nil {
			return nil, "", fmt.Errorf("create log folder: %w", err)
		}
		abs, err := filepath.Abs(filepath.Join(logFolder, time.Now().UTC().Format("20060102T150405.000000000")+".log"))
		if err != nil {
			return nil, "", err
		}
		logPath = abs
		cfg.OutputPaths = append(cfg.OutputPaths, logPath)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, "", err
	}
	return logger, logPath, nil
}
