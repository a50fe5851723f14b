// Package logx provides leveled component logging with context-aware debug logging.
package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

type ctxKey string

// ComponentKey is the context key carrying the component (or instance) id used by Debug.
const ComponentKey ctxKey = "component"

// Logger writes single-line entries tagged with a component name.
type Logger struct {
	component string
}

// Entry is a captured log line kept in the in-memory buffer.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Component string `json:"component"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Domain    string `json:"domain,omitempty"`
}

type ringBuffer struct {
	mu      sync.RWMutex
	entries []Entry
	maxSize int
}

//nolint:gochecknoglobals // process-wide logging configuration
var (
	debugMu      sync.RWMutex
	debugEnabled bool
	debugDomains map[string]bool // nil = all domains

	writerMu sync.Mutex
	writer   io.Writer = os.Stderr

	buffer = &ringBuffer{maxSize: 500}
)

func init() { //nolint:gochecknoinits // env-driven debug configuration
	initDebugFromEnv()
}

func initDebugFromEnv() {
	debugMu.Lock()
	defer debugMu.Unlock()

	if v := os.Getenv("DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		debugEnabled = true
	}
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugDomains = parseDomains(strings.Split(domains, ","))
	}
}

func parseDomains(domains []string) map[string]bool {
	out := make(map[string]bool, len(domains))
	for _, d := range domains {
		if d = strings.TrimSpace(d); d != "" {
			out[d] = true
		}
	}
	return out
}

// NewLogger returns a logger for the named component.
func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

// SetOutput redirects all log output. Passing nil restores stderr.
func SetOutput(w io.Writer) {
	writerMu.Lock()
	defer writerMu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	writer = w
}

// SetDebug toggles debug logging and optionally restricts it to the given domains.
func SetDebug(enabled bool, domains ...string) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugEnabled = enabled
	if len(domains) == 0 {
		debugDomains = nil
		return
	}
	debugDomains = parseDomains(domains)
}

// IsDebugEnabledForDomain reports whether debug output is on for domain.
func IsDebugEnabledForDomain(domain string) bool {
	debugMu.RLock()
	defer debugMu.RUnlock()
	if !debugEnabled {
		return false
	}
	if debugDomains == nil {
		return true
	}
	return debugDomains[domain]
}

func (b *ringBuffer) add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	if len(b.entries) > b.maxSize {
		b.entries = b.entries[len(b.entries)-b.maxSize:]
	}
}

// RecentEntries returns buffered entries, newest last, optionally filtered by component.
func RecentEntries(component string) []Entry {
	buffer.mu.RLock()
	defer buffer.mu.RUnlock()

	out := make([]Entry, 0, len(buffer.entries))
	for i := range buffer.entries {
		if component != "" && !strings.EqualFold(buffer.entries[i].Component, component) {
			continue
		}
		out = append(out, buffer.entries[i])
	}
	return out
}

func emit(component string, level Level, domain, message string) {
	ts := time.Now().UTC().Format(timestampFormat)
	line := fmt.Sprintf("[%s] [%s] %s: %s", ts, component, level, message)
	if domain != "" {
		line = fmt.Sprintf("[%s] [%s] %s: [%s] %s", ts, component, level, domain, message)
	}

	writerMu.Lock()
	fmt.Fprintln(writer, line)
	writerMu.Unlock()

	buffer.add(Entry{
		Timestamp: ts,
		Component: component,
		Level:     string(level),
		Message:   message,
		Domain:    domain,
	})
}

// Component returns the logger's component name.
func (l *Logger) Component() string {
	return l.component
}

// With returns a logger for a sub-component, e.g. "workflow" -> "workflow/abc123".
func (l *Logger) With(suffix string) *Logger {
	return &Logger{component: l.component + "/" + suffix}
}

func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabledForDomain(l.component) {
		return
	}
	emit(l.component, LevelDebug, "", fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	emit(l.component, LevelInfo, "", fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	emit(l.component, LevelWarn, "", fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	emit(l.component, LevelError, "", fmt.Sprintf(format, args...))
}

// Debug logs a domain-scoped debug message. The component is taken from ctx
// (ComponentKey) when present.
//
//	DEBUG=1 DEBUG_DOMAINS=engine,workflow  # enable selected domains
func Debug(ctx context.Context, domain, format string, args ...any) {
	if !IsDebugEnabledForDomain(domain) {
		return
	}
	component := "unknown"
	if ctx != nil {
		if id, ok := ctx.Value(ComponentKey).(string); ok && id != "" {
			component = id
		}
	}
	emit(component, LevelDebug, domain, fmt.Sprintf(format, args...))
}

// DebugState logs a state transition for domain.
func DebugState(ctx context.Context, domain, action, state string) {
	Debug(ctx, domain, "State %s: %s", action, state)
}

// WithComponent stores the component id in ctx for Debug.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, ComponentKey, component)
}

var defaultLogger = NewLogger("system") //nolint:gochecknoglobals

// Wrap logs msg + ": " + err and returns fmt.Errorf("%s: %w", msg, err).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrapped.Error())
	return wrapped
}
