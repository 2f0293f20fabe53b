package event

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Sink records the diagnostics of one analysis session.
//
// Report never panics and never returns an error. The mutex only provides
// append semantics; a Sink belongs to a single session.
type Sink struct {
	target string
	logger *zap.Logger

	mu     sync.Mutex
	events []Event
	errors int
}

// NewSink returns a sink for target. Events are mirrored to logger.
func NewSink(target string, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		target: target,
		logger: logger.With(zap.String("component", "event_sink"), zap.String("target", target)),
	}
}

// Report records event. An empty Target is filled with the sink's target.
func (s *Sink) Report(event Event) {
	if s == nil {
		return
	}
	if event.Target == "" {
		event.Target = s.target
	}
	if len(event.Artifacts) > 0 {
		event.Artifacts = append([]string(nil), event.Artifacts...)
	}

	s.mu.Lock()
	s.events = append(s.events, event)
	if event.Severity >= SeverityError {
		s.errors++
	}
	s.mu.Unlock()

	fields := []zap.Field{zap.String("code", string(event.Code))}
	if len(event.Artifacts) > 0 {
		fields = append(fields, zap.Strings("artifacts", event.Artifacts))
	}
	switch event.Severity {
	case SeverityError:
		s.logger.Error(event.Message, fields...)
	case SeverityWarning:
		s.logger.Warn(event.Message, fields...)
	default:
		s.logger.Debug(event.Message, fields...)
	}
}

// Errorf reports an error-severity event.
func (s *Sink) Errorf(code Code, artifacts []string, format string, args ...any) {
	s.Report(Event{Severity: SeverityError, Code: code, Message: fmt.Sprintf(format, args...), Artifacts: artifacts})
}

// Warnf reports a warning-severity event.
func (s *Sink) Warnf(code Code, artifacts []string, format string, args ...any) {
	s.Report(Event{Severity: SeverityWarning, Code: code, Message: fmt.Sprintf(format, args...), Artifacts: artifacts})
}

// HasErrors reports whether any error-severity event was reported.
func (s *Sink) HasErrors() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors > 0
}

// Events returns a copy of the recorded events in reporting order.
func (s *Sink) Events() []Event {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
