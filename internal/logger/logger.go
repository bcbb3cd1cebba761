// Package logger builds the process logger. Every line goes to the
// configured output through zerolog and is also kept in a thread-safe
// in-memory ring that backs the activity endpoint.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Message represents a single log message
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Level     string    `json:"level"` // debug, info, warning, error
}

// Ring keeps the most recent log messages in memory
type Ring struct {
	mu       sync.RWMutex
	messages []Message
	maxSize  int
}

// NewRing creates a ring with specified max message count
func NewRing(maxSize int) *Ring {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Ring{
		messages: make([]Message, 0, maxSize),
		maxSize:  maxSize,
	}
}

// Log adds a new message to the ring
func (r *Ring) Log(level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := Message{
		Timestamp: time.Now(),
		Text:      text,
		Level:     level,
	}

	r.messages = append(r.messages, msg)

	// Keep only the last maxSize messages
	if len(r.messages) > r.maxSize {
		r.messages = r.messages[len(r.messages)-r.maxSize:]
	}
}

// Write implements io.Writer for lines without a level.
func (r *Ring) Write(p []byte) (int, error) {
	return r.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter. The JSON event is flattened to
// "message key=value ..." so the activity feed stays readable.
func (r *Ring) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.InfoLevel && level != zerolog.NoLevel {
		return len(p), nil
	}

	var fields map[string]any
	if err := json.Unmarshal(p, &fields); err != nil {
		r.Log(levelName(level), strings.TrimSpace(string(p)))
		return len(p), nil
	}

	text, _ := fields[zerolog.MessageFieldName].(string)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		switch k {
		case zerolog.MessageFieldName, zerolog.LevelFieldName, zerolog.TimestampFieldName:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(text)
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, fields[k])
	}

	r.Log(levelName(level), b.String())
	return len(p), nil
}

func levelName(level zerolog.Level) string {
	switch level {
	case zerolog.WarnLevel:
		return "warning"
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return "error"
	case zerolog.DebugLevel, zerolog.TraceLevel:
		return "debug"
	}
	return "info"
}

// GetRecent returns the most recent n messages (newest first)
func (r *Ring) GetRecent(n int) []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > len(r.messages) || n < 0 {
		n = len(r.messages)
	}

	result := make([]Message, n)
	for i := 0; i < n; i++ {
		result[i] = r.messages[len(r.messages)-1-i]
	}

	return result
}

// GetAll returns all messages (newest first)
func (r *Ring) GetAll() []Message {
	return r.GetRecent(-1)
}

// Options controls the process logger.
type Options struct {
	Level   string    // zerolog level name, defaults to info
	Buffer  int       // ring capacity
	Console bool      // human-readable output instead of JSON
	Output  io.Writer // defaults to os.Stderr
}

// New builds the process logger and the ring it feeds.
func New(opts Options) (zerolog.Logger, *Ring, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ring := NewRing(opts.Buffer)
	log := zerolog.New(zerolog.MultiLevelWriter(out, ring)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return log, ring, nil
}
