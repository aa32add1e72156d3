// Package log is a small leveled logger organized around named sources.
//
// Every module registers a Source with a compiled (maximum) level. The
// runtime level of each source can be lowered or raised up to the
// compiled level, typically for all sources at once via Registry.SetLevel.
//
// Formatted lines go to Stdout and to every registered Sink, e.g. a daily
// log file (WriteDaily) or persistent flash storage.
package log

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/toon-format/toon-go"
)

// Sink receives formatted log lines. Errors are ignored by the logger:
// a failed sink must never affect the code that logs.
type Sink interface {
	WriteLog(d []byte) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(d []byte) error

func (f SinkFunc) WriteLog(d []byte) error {
	return f(d)
}

type Registry struct {
	// Stdout receives every formatted line, nil disables it
	Stdout io.Writer
	// Now returns current time, can be over-written in tests
	Now func() time.Time

	mu      sync.Mutex
	sources []*Source
	sinks   []Sink
}

// Default is used by package-level Register
var Default = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		Stdout: os.Stdout,
		Now:    time.Now,
	}
}

// Register returns a source with a given name, creating it if needed.
// A new source starts with runtime level equal to compiled level.
func (r *Registry) Register(name string, compiled Level) *Source {
	if compiled > MaxLevel {
		compiled = MaxLevel
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sources {
		if s.name == name {
			return s
		}
	}
	s := &Source{
		name:     name,
		compiled: compiled,
		reg:      r,
	}
	s.level.Store(uint32(compiled))
	r.sources = append(r.sources, s)
	return s
}

// Sources returns all registered sources in registration order
func (r *Registry) Sources() []*Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Source{}, r.sources...)
}

// Source returns a registered source or nil
func (r *Registry) Source(name string) *Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sources {
		if s.name == name {
			return s
		}
	}
	return nil
}

// SetLevel sets runtime level of every source and returns how many
// sources ended up at exactly that level (the rest are capped by their
// compiled level)
func (r *Registry) SetLevel(l Level) int {
	n := 0
	for _, s := range r.Sources() {
		if s.SetLevel(l) == l {
			n++
		}
	}
	return n
}

func (r *Registry) AddSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// RemoveSink removes a sink added with AddSink. s must be comparable
// (e.g. a pointer), SinkFunc values can't be removed.
func (r *Registry) RemoveSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s2 := range r.sinks {
		if s2 == s {
			r.sinks = append(r.sinks[:i:i], r.sinks[i+1:]...)
			return
		}
	}
}

func (r *Registry) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Registry) emit(line []byte) {
	r.mu.Lock()
	out := r.Stdout
	sinks := r.sinks
	r.mu.Unlock()

	if out != nil {
		_, _ = out.Write(line)
	}
	for _, s := range sinks {
		_ = s.WriteLog(line)
	}
}

// FormatLine formats a log line:
// [2025-01-02T15:04:05.000Z] <wrn> source: message\n
func FormatLine(t time.Time, l Level, source string, msg string) []byte {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	d := make([]byte, 0, len(ts)+len(source)+len(msg)+16)
	d = append(d, '[')
	d = append(d, ts...)
	d = append(d, "] <"...)
	d = append(d, l.tag()...)
	d = append(d, "> "...)
	d = append(d, source...)
	d = append(d, ": "...)
	d = append(d, msg...)
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		d = append(d, '\n')
	}
	return d
}

// Register registers a source in Default registry
func Register(name string, compiled Level) *Source {
	return Default.Register(name, compiled)
}

type Source struct {
	name     string
	compiled Level
	level    atomic.Uint32
	reg      *Registry
}

func (s *Source) Name() string {
	return s.name
}

// Level returns runtime level
func (s *Source) Level() Level {
	return Level(s.level.Load())
}

// CompiledLevel returns the most verbose level this source can log at
func (s *Source) CompiledLevel() Level {
	return s.compiled
}

// SetLevel sets runtime level, capped at compiled level.
// Returns the level that was set.
func (s *Source) SetLevel(l Level) Level {
	if l > s.compiled {
		l = s.compiled
	}
	s.level.Store(uint32(l))
	return l
}

// Enabled returns true if messages of level l are logged.
// Logging to a nil source is a no-op.
func (s *Source) Enabled(l Level) bool {
	if s == nil {
		return false
	}
	return l != LevelOff && l <= s.Level()
}

func (s *Source) logf(l Level, format string, args ...any) {
	if !s.Enabled(l) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	s.reg.emit(FormatLine(s.reg.now(), l, s.name, msg))
}

func (s *Source) Errf(format string, args ...any) {
	s.logf(LevelErr, format, args...)
}

func (s *Source) Wrnf(format string, args ...any) {
	s.logf(LevelWrn, format, args...)
}

func (s *Source) Inff(format string, args ...any) {
	s.logf(LevelInf, format, args...)
}

func (s *Source) Dbgf(format string, args ...any) {
	s.logf(LevelDbg, format, args...)
}

// simpleTypeToStr converts simple types to string
// returns false if v is of complex type
func simpleTypeToStr(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Array, reflect.Slice, reflect.Struct, reflect.Map, reflect.Chan, reflect.Interface, reflect.Pointer, reflect.Func:
		return "", false
	case reflect.String:
		return v.(string), true
	}
	return fmt.Sprint(v), true
}

// Event logs key/value pairs encoded in toon format at info level:
// <inf> source: event <name>\n<toon>
func (s *Source) Event(name string, vals ...any) error {
	n := len(vals)
	if n%2 != 0 {
		return fmt.Errorf("event: odd number of values (%d)", n)
	}
	if !s.Enabled(LevelInf) {
		return nil
	}
	m := map[string]any{}
	for i := 0; i < n; i += 2 {
		k, ok := simpleTypeToStr(vals[i])
		if !ok {
			return fmt.Errorf("event: key %d is of type %T", i/2, vals[i])
		}
		m[k] = vals[i+1]
	}
	msg := "event " + name
	if n > 0 {
		d, err := toon.Marshal(m)
		if err != nil {
			return err
		}
		msg += "\n" + string(d)
	}
	s.logf(LevelInf, "%s", msg)
	return nil
}
