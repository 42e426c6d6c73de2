// Package logging provides component-scoped file logging for protectclip.
// All components of one process append to the same run-scoped log file
// under ~/.protectclip/logs, falling back to stderr when the file cannot
// be opened. Credential values must be masked by the caller before they
// reach a logger (see pkg/credentials).
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	runID     string
	runIDOnce sync.Once

	logDir   string
	dirOnce  = new(sync.Once)
	dirError error
)

// RunID returns the identifier shared by all loggers of this process run.
func RunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

func ensureLogDir() (string, error) {
	dirOnce.Do(func() {
		if logDir != "" {
			return // overridden by tests
		}
		home, err := os.UserHomeDir()
		if err != nil {
			dirError = fmt.Errorf("resolving home directory: %w", err)
			return
		}
		logDir = filepath.Join(home, ".protectclip", "logs")
		if err := os.MkdirAll(logDir, 0750); err != nil {
			dirError = fmt.Errorf("creating log directory: %w", err)
		}
	})
	return logDir, dirError
}

// Logger writes timestamped, component-tagged lines to the run's log file.
// All methods write unconditionally; there is no level filtering.
type Logger struct {
	component string
	out       *log.Logger
	file      *os.File
	mu        sync.Mutex
	closeOnce sync.Once
	path      string
}

// New creates a logger for one component. When the log directory or file
// is unavailable it returns a stderr-backed logger together with the error,
// so startup can warn without losing logging altogether.
func New(component string) (*Logger, error) {
	dir, err := ensureLogDir()
	if err != nil {
		return fallback(component, err), err
	}

	path := filepath.Join(dir, RunID()+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		err = fmt.Errorf("opening log file: %w", err)
		return fallback(component, err), err
	}

	return &Logger{
		component: component,
		out:       log.New(file, "", 0),
		file:      file,
		path:      path,
	}, nil
}

func fallback(component string, cause error) *Logger {
	out := log.New(os.Stderr, "", 0)
	l := &Logger{component: component, out: out}
	l.Warnf("file logging unavailable, writing to stderr: %v", cause)
	return l
}

func (l *Logger) write(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	l.out.Printf("[%s] [%s] [%s] %s", ts, l.component, level, fmt.Sprintf(format, args...))
}

// Debugf logs a debug-level message.
func (l *Logger) Debugf(format string, args ...interface{}) { l.write("DEBUG", format, args...) }

// Infof logs an info-level message.
func (l *Logger) Infof(format string, args ...interface{}) { l.write("INFO", format, args...) }

// Warnf logs a warning-level message.
func (l *Logger) Warnf(format string, args ...interface{}) { l.write("WARN", format, args...) }

// Errorf logs an error-level message.
func (l *Logger) Errorf(format string, args ...interface{}) { l.write("ERROR", format, args...) }

// Path returns the log file path, or "" when logging to stderr.
func (l *Logger) Path() string { return l.path }

// Close closes the underlying file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
