package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options tune the daemon logger.
type Options struct {
	Profile string
	UserID  string
	Level   zapcore.Level
	// Quiet drops the stderr core; used by the TUI which owns the terminal.
	Quiet bool
}

// New creates a zap logger that writes JSON to the given log file path
// and also writes to stderr. Profile, user and PID are included as initial fields.
func New(logPath string, opts Options) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	jsonEncoder := zapcore.NewJSONEncoder(encoderCfg)
	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

	cores := []zapcore.Core{zapcore.NewCore(jsonEncoder, zapcore.AddSync(file), opts.Level)}
	if !opts.Quiet {
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), opts.Level))
	}

	fields := []zap.Field{
		zap.String("profile", opts.Profile),
		zap.Int("pid", os.Getpid()),
	}
	if opts.UserID != "" {
		fields = append(fields, zap.String("user", opts.UserID))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.Fields(fields...))

	return logger, nil
}
