// Package logging is launchpad's structured logger. Every entry is kept in an
// in-memory ring for tests and diagnostics and written as one logfmt style
// line to the configured output.
package logging

import (
	"io"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultBufferSize is the number of entries a LogBuffer keeps by default.
const DefaultBufferSize = 1000

type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// levels is ordered by severity.
var levels = []Level{LevelDebug, LevelInfo, LevelWarning, LevelError}

func severity(level Level) int {
	if index := slices.Index(levels, level); index >= 0 {
		return index
	}
	return 1
}

// ParseLevel accepts level names in any case, plus "warn".
func ParseLevel(value string) (Level, bool) {
	level := Level(strings.ToLower(strings.TrimSpace(value)))
	if level == "warn" {
		level = LevelWarning
	}
	if !slices.Contains(levels, level) {
		return "", false
	}
	return level, true
}

// LogEntry is one structured record. Context holds the merged logger and
// call fields.
type LogEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     Level             `json:"level"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
}

const (
	CategoryKey = "launchpad.category"
	SourceKey   = "launchpad.source"
)

// sink is shared by a logger and everything derived from it.
type sink struct {
	buffer *LogBuffer
	min    Level

	mu  sync.Mutex
	out io.Writer
}

type Logger struct {
	sink   *sink
	fields map[string]string
}

// NewLogger writes to stdout.
func NewLogger(buffer *LogBuffer, minLevel Level) *Logger {
	return NewLoggerWithOutput(buffer, minLevel, os.Stdout)
}

// NewLoggerWithOutput writes lines to output; a nil output keeps entries in
// the buffer only. Unknown levels mean info.
func NewLoggerWithOutput(buffer *LogBuffer, minLevel Level, output io.Writer) *Logger {
	if buffer == nil {
		buffer = NewLogBuffer(DefaultBufferSize)
	}
	if _, ok := ParseLevel(string(minLevel)); !ok {
		minLevel = LevelInfo
	}
	return &Logger{sink: &sink{buffer: buffer, min: minLevel, out: output}}
}

// Discard keeps every entry in memory and prints nothing.
func Discard() *Logger {
	return NewLoggerWithOutput(nil, LevelDebug, nil)
}

func (l *Logger) Buffer() *LogBuffer {
	if l == nil {
		return nil
	}
	return l.sink.buffer
}

// With returns a logger that adds fields to every entry.
func (l *Logger) With(fields map[string]string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{sink: l.sink, fields: merge(l.fields, fields)}
}

// Named tags entries with a component category. Nested names are joined
// with a dot, so Named("fleet").Named("runner") logs "fleet.runner".
func (l *Logger) Named(category string) *Logger {
	if l == nil {
		return nil
	}
	if parent := l.fields[CategoryKey]; parent != "" {
		category = parent + "." + category
	}
	return l.With(map[string]string{CategoryKey: category, SourceKey: "launchpad"})
}

func (l *Logger) Enabled(level Level) bool {
	return l != nil && severity(level) >= severity(l.sink.min)
}

func (l *Logger) Debug(message string, fields map[string]string) {
	l.emit(LevelDebug, message, fields)
}

func (l *Logger) Info(message string, fields map[string]string) {
	l.emit(LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]string) {
	l.emit(LevelWarning, message, fields)
}

func (l *Logger) Error(message string, fields map[string]string) {
	l.emit(LevelError, message, fields)
}

func (l *Logger) emit(level Level, message string, fields map[string]string) {
	if !l.Enabled(level) {
		return
	}
	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Context:   merge(l.fields, fields),
	}
	l.sink.buffer.Add(entry)
	if l.sink.out == nil {
		return
	}
	line := formatLine(entry)
	l.sink.mu.Lock()
	_, _ = io.WriteString(l.sink.out, line)
	l.sink.mu.Unlock()
}

// WithError returns a copy of fields carrying err under "error".
func WithError(fields map[string]string, err error) map[string]string {
	if err == nil {
		return merge(fields, nil)
	}
	return merge(fields, map[string]string{"error": err.Error()})
}

func merge(base, extra map[string]string) map[string]string {
	if len(base)+len(extra) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(extra))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range extra {
		merged[key] = value
	}
	return merged
}

// formatLine renders "<time> <LEVEL> <category>: <message> key=value ...".
// The category and source fields are folded into the prefix.
func formatLine(entry LogEntry) string {
	var b strings.Builder
	b.WriteString(entry.Timestamp.Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(string(entry.Level)))
	b.WriteByte(' ')
	if category := entry.Context[CategoryKey]; category != "" {
		b.WriteString(category)
		b.WriteString(": ")
	}
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Context))
	for key := range entry.Context {
		if key != CategoryKey && key != SourceKey {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(logfmtValue(entry.Context[key]))
	}
	b.WriteByte('\n')
	return b.String()
}

func logfmtValue(value string) string {
	if value == "" || strings.ContainsAny(value, " =\"\t\n") {
		return strconv.Quote(value)
	}
	return value
}
