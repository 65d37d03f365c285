package logging

import (
	"context"
	"sync"
)

// Entry is a message captured by a Recorder
type Entry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// Recorder is an in-memory Logger for tests
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	fields  []Field
	parent  *Recorder
}

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Entries returns a copy of everything logged so far
func (r *Recorder) Entries() []Entry {
	root := r.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	return append([]Entry(nil), root.entries...)
}

// Count returns the number of entries at level
func (r *Recorder) Count(level string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

func (r *Recorder) Debug(msg string, fields ...Field) { r.record("debug", msg, fields) }
func (r *Recorder) Info(msg string, fields ...Field) { r.record("info", msg, fields) }
func (r *Recorder) Warn(msg string, fields ...Field) { r.record("warn", msg, fields) }
func (r *Recorder) Error(msg string, fields ...Field) { r.record("error", msg, fields) }

func (r *Recorder) WithFields(fields ...Field) Logger {
	return &Recorder{
		fields: append(append([]Field(nil), r.fields...), fields...),
		parent: r.root(),
	}
}

func (r *Recorder) WithContext(ctx context.Context) Logger {
	if id, ok := RequestIDFromContext(ctx); ok {
		return r.WithFields(F("request_id", id))
	}
	return r
}

func (r *Recorder) LogSystemEvent(event string, data map[string]interface{}) {
	fields := []Field{F("event", event)}
	for k, v := range data {
		fields = append(fields, F(k, v))
	}
	r.record("info", "system event", fields)
}

func (r *Recorder) root() *Recorder {
	if r.parent != nil {
		return r.parent
	}
	return r
}

func (r *Recorder) record(level, msg string, fields []Field) {
	e := Entry{Level: level, Message: msg, Fields: make(map[string]interface{})}
	for _, f := range r.fields {
		e.Fields[f.Key] = f.Value
	}
	for _, f := range fields {
		e.Fields[f.Key] = f.Value
	}

	root := r.root()
	root.mu.Lock()
	root.entries = append(root.entries, e)
	root.mu.Unlock()
}
