package logger

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"wallpaper/vipcenter/internal/config"
)

// New builds a zap logger from the log section of the config.
// Output always goes to stdout; when Filename is set it is also written to a
// rotated, buffered file. The returned cleanup flushes and stops the file
// buffer and must be called before exit.
func New(cfg config.LogConfig) (*zap.Logger, func(), error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, nil, err
		}
	}

	cleanup := func() {}

	core := zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(os.Stdout), level)
	if cfg.Filename != "" {
		fileSyncer := &zapcore.BufferedWriteSyncer{
			WS: zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.Filename,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			}),
			Size:          256 * 1024,
			FlushInterval: 5 * time.Second,
		}
		// Files are always JSON so they can be shipped as-is.
		fileCore := zapcore.NewCore(newEncoder("json"), fileSyncer, level)
		core = zapcore.NewTee(core, fileCore)
		// stdout is unbuffered and syncing it fails on pipes, so only the
		// file side is flushed.
		cleanup = func() { _ = fileSyncer.Stop() }
	}

	return zap.New(core, zap.AddCaller()), cleanup, nil
}

func newEncoder(format string) zapcore.Encoder {
	if format == "console" {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}
