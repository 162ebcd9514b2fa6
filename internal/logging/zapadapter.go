package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapCore forwards zap entries into a Logger so the optimization
// packages, which log through *zap.Logger, share one output stream
// with the HTTP layer.
type zapCore struct {
	logger *Logger
}

// NewZapLogger wraps a Logger in a *zap.Logger.
func NewZapLogger(logger *Logger) *zap.Logger {
	return zap.New(&zapCore{logger: logger})
}

func levelOf(l zapcore.Level) Level {
	switch l {
	case zapcore.DebugLevel:
		return DebugLevel
	case zapcore.WarnLevel:
		return WarnLevel
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel:
		return ErrorLevel
	case zapcore.FatalLevel:
		return FatalLevel
	default:
		return InfoLevel
	}
}

func (c *zapCore) Enabled(level zapcore.Level) bool {
	return c.logger.enabled(levelOf(level))
}

func (c *zapCore) With(fields []zapcore.Field) zapcore.Core {
	return &zapCore{logger: c.logger.WithFields(fieldsOf(fields))}
}

func (c *zapCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *zapCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	f := fieldsOf(fields)
	if ent.LoggerName != "" {
		f["component"] = ent.LoggerName
	}
	c.logger.write(levelOf(ent.Level), ent.Message, f)
	return nil
}

func (c *zapCore) Sync() error { return nil }

// fieldsOf flattens zap fields through an object encoder, which
// handles every field type without a manual switch.
func fieldsOf(fields []zapcore.Field) Fields {
	enc := zapcore.NewMapObjectEncoder()
	for _, field := range fields {
		field.AddTo(enc)
	}
	out := make(Fields, len(enc.Fields))
	for k, v := range enc.Fields {
		out[k] = v
	}
	return out
}
