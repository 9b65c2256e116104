package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls where the client logs.
type Options struct {
	Path     string // JSON log file; required
	Identity string
	Level    string // debug, info, warn, error; defaults to info
	Console  bool   // also write human-readable lines to stderr
}

// New creates a zap logger that writes JSON to opts.Path and, when
// opts.Console is set, to stderr. Identity and PID are included as initial fields.
func New(opts Options) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), level),
	}
	if opts.Console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(os.Stderr), level))
	}

	logger := zap.New(zapcore.NewTee(cores...),
		zap.Fields(
			zap.String("identity", opts.Identity),
			zap.Int("pid", os.Getpid()),
		),
	)

	return logger, nil
}
