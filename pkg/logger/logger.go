package logger

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

// Init builds the process logger for one dashboard binary. Production logs
// are JSON with ISO8601 timestamps; everything else gets the colored console
// encoder. An empty level keeps zap's default for the environment. Every
// entry carries the app name.
func Init(app, environment, level string) error {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	built, err := config.Build()
	if err != nil {
		return err
	}
	log = built.With(zap.String("app", app))

	return nil
}

// Set replaces the process logger. Tests use it with zap.NewNop or zaptest.
func Set(l *zap.Logger) {
	log = l
}

func Get() *zap.Logger {
	if log == nil {
		log, _ = zap.NewDevelopment()
	}
	return log
}

func Sync() error {
	if log != nil {
		return log.Sync()
	}
	return nil
}

func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Get().Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Get().Fatal(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Get().Warn(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

// Err returns a zap.Field for error logging
func Err(err error) zap.Field {
	return zap.Error(err)
}

// String returns a zap.Field for string values
func String(key, val string) zap.Field {
	return zap.String(key, val)
}

// Int returns a zap.Field for int values
func Int(key string, val int) zap.Field {
	return zap.Int(key, val)
}

func Duration(key string, val time.Duration) zap.Field {
	return zap.Duration(key, val)
}

func Bool(key string, val bool) zap.Field {
	return zap.Bool(key, val)
}
