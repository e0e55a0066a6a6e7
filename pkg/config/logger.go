package config

import (
	"fmt"
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger from the log section. With a file set,
// JSON lines go to a rotating lumberjack writer; otherwise a console
// encoder writes to stderr.
func NewLogger(l Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("config: log.level: %w", err)
	}

	var core zapcore.Core
	if l.File != "" {
		w := &lumberjack.Logger{
			Filename:   l.File,
			MaxSize:    l.MaxSizeMB,
			MaxBackups: l.MaxBackups,
		}
		core = zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(w),
			level,
		)
	} else {
		core = zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stderr),
			level,
		)
	}
	return zap.New(core), nil
}
