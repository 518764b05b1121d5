package httpcore

import "go.uber.org/zap"

// Logger is the seam the dispatcher, transport selector, and reloading-TLS
// watcher log through. The two levels mirror zap.SugaredLogger's Debugw/
// Errorw: msg is a static string, keysAndValues are alternating field
// name/value pairs (stream_id, remote_addr, alpn, ...), never interpolated
// into the message itself.
type Logger interface {
	Debugw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

// zapLogger adapts a *zap.SugaredLogger to Logger. It is the default
// backing used when a Server/Dispatcher is not given an explicit Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps z as a Logger.
func NewZapLogger(z *zap.Logger) Logger {
	return &zapLogger{s: z.Sugar()}
}

func (l *zapLogger) Debugw(msg string, keysAndValues ...any) { l.s.Debugw(msg, keysAndValues...) }
func (l *zapLogger) Errorw(msg string, keysAndValues ...any) { l.s.Errorw(msg, keysAndValues...) }

var defaultLogger Logger

func init() {
	z, err := zap.NewProduction()
	if err != nil {
		// zap.NewProduction only fails on a broken encoder/sink config,
		// which the default config never exercises; fall back rather than
		// letting package init panic.
		z = zap.NewNop()
	}
	defaultLogger = NewZapLogger(z)
}
