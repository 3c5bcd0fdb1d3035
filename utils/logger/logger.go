package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[int]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

var levelColors = map[int]string{
	LevelDebug: "\033[36m",
	LevelInfo:  "\033[32m",
	LevelWarn:  "\033[33m",
	LevelError: "\033[31m",
}

const colorReset = "\033[0m"

var (
	defaultOutMu sync.RWMutex
	defaultOut   io.Writer = os.Stdout
)

// SetDefaultWriter changes where loggers created with a nil writer print.
// main uses it to tee every package logger into the log file.
func SetDefaultWriter(w io.Writer) {
	defaultOutMu.Lock()
	defer defaultOutMu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	defaultOut = w
}

func defaultWriter() io.Writer {
	defaultOutMu.RLock()
	defer defaultOutMu.RUnlock()
	return defaultOut
}

type Logger struct {
	name  string
	level int
	out   io.Writer
	mu    sync.Mutex
}

func ParseLevel(level string) int {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func NewLogger(name string, level string, out io.Writer) *Logger {
	return &Logger{name: name, level: ParseLevel(level), out: out}
}

func (l *Logger) SetLevel(level string) {
	l.mu.Lock()
	l.level = ParseLevel(level)
	l.mu.Unlock()
}

func (l *Logger) writer() io.Writer {
	if l.out != nil {
		return l.out
	}
	return defaultWriter()
}

func colored(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (l *Logger) logf(level int, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	w := l.writer()
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	levelName := levelNames[level]
	if colored(w) {
		levelName = levelColors[level] + levelName + colorReset
	}
	msg := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(w, "[%s][%s][%s] %s\n", ts, levelName, l.name, msg)
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }
