// Package logging is the structured logger every component receives. The
// only implementation is backed by zap; nothing outside this package imports
// zap directly.
package logging

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// Field is one key/value pair of a log entry.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, val string) Field                 { return Field{key, val} }
func Strings(key string, val []string) Field       { return Field{key, val} }
func Int(key string, val int) Field                { return Field{key, val} }
func Int64(key string, val int64) Field            { return Field{key, val} }
func Float64(key string, val float64) Field        { return Field{key, val} }
func Bool(key string, val bool) Field              { return Field{key, val} }
func Duration(key string, val time.Duration) Field { return Field{key, val} }
func Any(key string, val interface{}) Field        { return Field{key, val} }

// Err logs err under "error" as text; nil becomes "<nil>".
func Err(err error) Field {
	if err == nil {
		return Field{"error", "<nil>"}
	}
	return Field{"error", err.Error()}
}

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// Fatal exits the process after logging.
	Fatal(msg string, fields ...Field)

	With(fields ...Field) Logger
	// Named extends the logger name with a dot: "matsel" -> "matsel.http".
	Named(name string) Logger
}

// LogConfig is the log section of the configuration file.
type LogConfig struct {
	Level            string   `mapstructure:"level" yaml:"level" json:"level"`
	Format           string   `mapstructure:"format" yaml:"format" json:"format"` // json or console
	OutputPaths      []string `mapstructure:"output_paths" yaml:"output_paths" json:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths" yaml:"error_output_paths" json:"error_output_paths"`
}

// ParseLevel accepts debug, info, warn(ing) and error in any case. Anything
// else is info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

// NewLogger builds the zap logger described by cfg. Output goes to stdout
// and internal zap errors to stderr unless configured otherwise.
func NewLogger(cfg LogConfig) (Logger, error) {
	outs, errOuts := cfg.OutputPaths, cfg.ErrorOutputPaths
	if len(outs) == 0 {
		outs = []string{"stdout"}
	}
	if len(errOuts) == 0 {
		errOuts = []string{"stderr"}
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.Level))
	zc.OutputPaths, zc.ErrorOutputPaths = outs, errOuts
	zc.Sampling = nil
	if strings.EqualFold(cfg.Format, "console") {
		zc.Development = true
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigError, "cannot build logger").WithDetailf("outputs=%v", outs)
	}
	return zapLogger{z}, nil
}

// NewLoggerFromCore wraps core, mostly so tests can inspect what is written.
func NewLoggerFromCore(core zapcore.Core) Logger {
	return zapLogger{zap.New(core, zap.AddCallerSkip(1))}
}

type zapLogger struct{ z *zap.Logger }

func (l zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, zapFields(fields)...) }
func (l zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, zapFields(fields)...) }
func (l zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, zapFields(fields)...) }
func (l zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, zapFields(fields)...) }
func (l zapLogger) Fatal(msg string, fields ...Field) { l.z.Fatal(msg, zapFields(fields)...) }
func (l zapLogger) With(fields ...Field) Logger       { return zapLogger{l.z.With(zapFields(fields)...)} }
func (l zapLogger) Named(name string) Logger          { return zapLogger{l.z.Named(name)} }

func zapFields(fields []Field) []zap.Field {
	zf := make([]zap.Field, len(fields))
	for i, f := range fields {
		switch v := f.Value.(type) {
		case string:
			zf[i] = zap.String(f.Key, v)
		case []string:
			zf[i] = zap.Strings(f.Key, v)
		case int:
			zf[i] = zap.Int(f.Key, v)
		case int64:
			zf[i] = zap.Int64(f.Key, v)
		case float64:
			zf[i] = zap.Float64(f.Key, v)
		case bool:
			zf[i] = zap.Bool(f.Key, v)
		case time.Duration:
			zf[i] = zap.Duration(f.Key, v)
		case error:
			zf[i] = zap.NamedError(f.Key, v)
		default:
			zf[i] = zap.Any(f.Key, v)
		}
	}
	return zf
}

type nopLogger struct{}

// NewNopLogger discards every entry.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field)    {}
func (nopLogger) Info(string, ...Field)     {}
func (nopLogger) Warn(string, ...Field)     {}
func (nopLogger) Error(string, ...Field)    {}
func (nopLogger) Fatal(string, ...Field)    {}
func (n nopLogger) With(...Field) Logger    { return n }
func (n nopLogger) Named(string) Logger     { return n }
