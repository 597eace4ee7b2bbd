package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Level orders log messages by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (lv Level) String() string {
	switch lv {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// Logger writes leveled lines. Debug lines, and timestamps on every line,
// only appear in verbose mode.
type Logger struct {
	mu      sync.Mutex
	verbose bool
	out     io.Writer
	now     func() time.Time
}

// NewLogger returns a non-verbose logger writing to out, or os.Stderr when
// out is nil.
func NewLogger(out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}
	return &Logger{out: out, now: time.Now}
}

var std = NewLogger(nil)

// GetLogger returns the process-wide logger.
func GetLogger() *Logger {
	return std
}

// SetVerboseMode toggles verbose mode on the process-wide logger.
func SetVerboseMode(verbose bool) {
	std.SetVerbose(verbose)
}

// SetOutput redirects the process-wide logger. nil restores os.Stderr.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

func (l *Logger) SetVerbose(verbose bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = verbose
}

func (l *Logger) IsVerbose() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.verbose
}

// SetOutput redirects output. The TUI points it at the session log file
// while it owns the terminal.
func (l *Logger) SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// Log writes one line at the given level. Without args, msg is written
// as is, so a literal % is safe.
func (l *Logger) Log(lv Level, msg string, args ...any) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lv == LevelDebug && !l.verbose {
		return
	}
	if l.verbose {
		_, _ = fmt.Fprintf(l.out, "%s [%s] %s\n", l.now().Format("15:04:05"), lv, msg)
		return
	}
	_, _ = fmt.Fprintf(l.out, "[%s] %s\n", lv, msg)
}

func (l *Logger) Debug(msg string, args ...any) { l.Log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.Log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.Log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.Log(LevelError, msg, args...) }

func Debugf(format string, args ...any) { std.Log(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { std.Log(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { std.Log(LevelWarn, format, args...) }
func Errorf(format string, args ...any) { std.Log(LevelError, format, args...) }

// LogFile is the per-session log file the TUI writes to. A disabled or
// failed LogFile discards everything.
type LogFile struct {
	path string
	file *os.File
}

// SessionLogPath is where a session log for this process goes.
func SessionLogPath() string {
	return filepath.Join(os.TempDir(), "done-"+strconv.Itoa(os.Getpid())+".log")
}

// OpenSessionLog opens SessionLogPath when enabled, otherwise it returns a
// discarding LogFile.
func OpenSessionLog(enabled bool) (*LogFile, error) {
	if !enabled {
		return &LogFile{}, nil
	}
	return OpenLogFile(SessionLogPath())
}

// OpenLogFile appends to path. On error the returned LogFile is still
// usable and discards output.
func OpenLogFile(path string) (*LogFile, error) {
	lf := &LogFile{path: path}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return lf, fmt.Errorf("open log file: %w", err)
	}
	lf.file = f
	return lf, nil
}

func (lf *LogFile) Path() string { return lf.path }

func (lf *LogFile) Enabled() bool { return lf.file != nil }

// Writer returns the file, or io.Discard when disabled or closed.
func (lf *LogFile) Writer() io.Writer {
	if lf.file == nil {
		return io.Discard
	}
	return lf.file
}

// Close closes the file; later writes are discarded.
func (lf *LogFile) Close() error {
	if lf.file == nil {
		return nil
	}
	err := lf.file.Close()
	lf.file = nil
	return err
}
