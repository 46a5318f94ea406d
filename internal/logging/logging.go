package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/onsell/backoffice/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup installs the default logger. Records go to stdout as text and to the
// rotated application log in the log viewer's directory. The returned closer
// releases the log file.
func Setup(cfg *config.Config) (io.Closer, error) {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	if err := os.MkdirAll(cfg.Logs.Dir, 0o755); err != nil {
		return nil, err
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Logs.Dir, cfg.Logs.FileName),
		MaxSize:    cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
		MaxAge:     cfg.Logs.MaxAgeDays,
		LocalTime:  true,
	}
	handler := NewFanoutHandler(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
		NewLineHandler(rotator, cfg.AppEnv, level),
	)
	slog.SetDefault(slog.New(handler))
	return rotator, nil
}
