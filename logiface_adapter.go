package kernel

import "github.com/joeycumines/logiface"

// LogifaceLogger adapts a constructed logiface logger to this package's
// narrow Logger interface, the same edge-adapter shape the teacher uses
// to keep its own core decoupled from any particular logging framework:
// depend on a small interface internally, bridge a richer one in at the
// boundary.
type LogifaceLogger struct {
	inner *logiface.Logger[logiface.Event]
}

// NewLogifaceLogger wraps l, typically built via:
//
//	logiface.New[E](logiface.WithEventFactory[E](factory), logiface.WithWriter[E](writer)).Logger()
func NewLogifaceLogger(l *logiface.Logger[logiface.Event]) *LogifaceLogger {
	return &LogifaceLogger{inner: l}
}

func toLogifaceLevel(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelDebug
	}
}

// IsEnabled reports whether level would actually reach the wrapped
// writer, without allocating or writing an event.
func (a *LogifaceLogger) IsEnabled(level LogLevel) bool {
	if a == nil || a.inner == nil {
		return false
	}
	return a.inner.Build(toLogifaceLevel(level)).Enabled()
}

// Log converts entry into a logiface event and writes it.
func (a *LogifaceLogger) Log(entry Entry) {
	if a == nil || a.inner == nil {
		return
	}
	b := a.inner.Build(toLogifaceLevel(entry.Level))
	if !b.Enabled() {
		return
	}
	if entry.Thread != "" {
		b = b.Str("thread", entry.Thread).Uint64("thread_id", entry.ThreadID)
	}
	b.Log(entry.Message)
}
