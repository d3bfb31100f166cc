// Package logging provides structured logging for routebench.
//
// Components obtain a named logger and log either printf-style messages or
// messages with structured fields:
//
//	logger := logging.GetLogger("experiment")
//	logger.Info("starting run %d", run)
//	logger.InfoWithFields("query routed",
//	    logging.Field("routed_to", outcome.RoutedTo),
//	    logging.Field("latency_s", outcome.Latency.Seconds()),
//	)
//
// Output is written through zap. The console sink writes to stderr so that
// tables and reports on stdout stay clean. AddFileSink tees every entry into
// an additional file, which is how each experiment gets its timestamped log.
//
// Per-package log levels are supported with exact names or "prefix.*"
// patterns:
//
//	logging.Initialize("info", map[string]string{"routing.*": "debug"})
//
// Loggers are immutable; WithField, WithFields and WithContext return copies
// and are safe to share across goroutines.
package logging

import (
	"context"
	"fmt"
	"maps"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const rootName = "routebench"

var (
	globalLogger *Logger
	initOnce     sync.Once

	sinkMu sync.RWMutex
	// consoleCore is always present; fileCores are appended by AddFileSink.
	consoleCore zapcore.Core
	fileCores   []zapcore.Core
	base        *zap.Logger

	// exitFunc is called after a FATAL entry is written.
	// Defaults to os.Exit, overridden in tests.
	exitFunc = os.Exit
)

// Initialize initializes the global logger with the specified default level
// and optional per-package log level overrides.
// Unknown level strings fall back to INFO.
func Initialize(levelStr string, packageLevels ...map[string]string) error {
	level, err := parseLevel(levelStr)
	if err != nil {
		level = INFO
	}

	globalLogger = &Logger{
		level: level,
		name:  rootName,
	}

	sinkMu.Lock()
	if consoleCore == nil {
		consoleCore = zapcore.NewCore(newEncoder(true), zapcore.Lock(os.Stderr), zapcore.DebugLevel)
	}
	rebuildLocked()
	sinkMu.Unlock()

	if len(packageLevels) > 0 && packageLevels[0] != nil {
		if err := SetPackageLogLevels(packageLevels[0]); err != nil {
			return err
		}
	}

	return nil
}

// AddFileSink tees all subsequent log entries into the file at path.
// The returned function flushes and detaches the sink and closes the file.
func AddFileSink(path string) (func() error, error) {
	// #nosec G304 -- log file path is chosen by the operator
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	core := zapcore.NewCore(newEncoder(false), zapcore.AddSync(f), zapcore.DebugLevel)

	sinkMu.Lock()
	fileCores = append(fileCores, core)
	rebuildLocked()
	sinkMu.Unlock()

	return func() error {
		sinkMu.Lock()
		for i, c := range fileCores {
			if c == core {
				fileCores = append(fileCores[:i], fileCores[i+1:]...)
				break
			}
		}
		rebuildLocked()
		sinkMu.Unlock()

		_ = core.Sync()
		return f.Close()
	}, nil
}

// Sync flushes all sinks.
func Sync() {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	if base != nil {
		_ = base.Sync()
	}
}

// useCore replaces the console sink. Used by tests to observe output.
func useCore(core zapcore.Core) {
	sinkMu.Lock()
	consoleCore = core
	rebuildLocked()
	sinkMu.Unlock()
}

func rebuildLocked() {
	cores := make([]zapcore.Core, 0, 1+len(fileCores))
	if consoleCore != nil {
		cores = append(cores, consoleCore)
	}
	cores = append(cores, fileCores...)
	base = zap.New(zapcore.NewTee(cores...), zap.WithFatalHook(exitHook{}))
}

func zapLogger() *zap.Logger {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	return base
}

// exitHook defers process termination to exitFunc so Fatal stays testable.
type exitHook struct{}

func (exitHook) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {
	exitFunc(1)
}

func newEncoder(color bool) zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = encodeTime
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.ConsoleSeparator = " "
	return zapcore.NewConsoleEncoder(cfg)
}

// GetLogger returns a logger with the specified name.
func GetLogger(name string) *Logger {
	initOnce.Do(func() {
		if globalLogger == nil {
			_ = Initialize("info")
		}
	})
	return &Logger{
		level:  globalLogger.level,
		name:   name,
		fields: make(map[string]interface{}),
	}
}

// shouldLog checks per-package overrides first, then the logger's own level.
func (l *Logger) shouldLog(level LogLevel) bool {
	if pkgLevel := GetPackageLogLevel(l.name); pkgLevel >= 0 {
		return level >= pkgLevel
	}
	return level >= l.level
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.shouldLog(DEBUG) {
		l.logf(DEBUG, msg, args...)
	}
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	if l.shouldLog(INFO) {
		l.logf(INFO, msg, args...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.shouldLog(WARN) {
		l.logf(WARN, msg, args...)
	}
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	if l.shouldLog(ERROR) {
		l.logf(ERROR, msg, args...)
	}
}

// Fatal logs a fatal message and exits the program with code 1
func (l *Logger) Fatal(msg string, args ...interface{}) {
	if l.shouldLog(FATAL) {
		l.logf(FATAL, msg, args...)
	}
}

// ErrorWithErr logs an error message with an error object
func (l *Logger) ErrorWithErr(msg string, err error, args ...interface{}) {
	if l.shouldLog(ERROR) {
		l.logWithFields(ERROR, fmt.Sprintf(msg, args...), Field("error", err))
	}
}

// WithName returns a new logger with a custom name
func (l *Logger) WithName(name string) *Logger {
	return &Logger{
		level:  l.level,
		name:   name,
		fields: copyFields(l.fields),
		ctx:    l.ctx,
	}
}

// WithField adds a structured field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	newLogger := l.WithName(l.name)
	newLogger.fields[key] = value
	return newLogger
}

// WithFields adds multiple structured fields to the logger
func (l *Logger) WithFields(fields ...LogField) *Logger {
	newLogger := l.WithName(l.name)
	for _, f := range fields {
		newLogger.fields[f.Key] = f.Value
	}
	return newLogger
}

// WithContext returns a new logger that adds trace_id and span_id from ctx
// to every entry.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	newLogger := l.WithName(l.name)
	newLogger.ctx = ctx
	return newLogger
}

// DebugWithFields logs a debug message with structured fields
func (l *Logger) DebugWithFields(msg string, fields ...LogField) {
	if l.shouldLog(DEBUG) {
		l.logWithFields(DEBUG, msg, fields...)
	}
}

// InfoWithFields logs an info message with structured fields
func (l *Logger) InfoWithFields(msg string, fields ...LogField) {
	if l.shouldLog(INFO) {
		l.logWithFields(INFO, msg, fields...)
	}
}

// WarnWithFields logs a warning message with structured fields
func (l *Logger) WarnWithFields(msg string, fields ...LogField) {
	if l.shouldLog(WARN) {
		l.logWithFields(WARN, msg, fields...)
	}
}

// ErrorWithFields logs an error message with structured fields
func (l *Logger) ErrorWithFields(msg string, fields ...LogField) {
	if l.shouldLog(ERROR) {
		l.logWithFields(ERROR, msg, fields...)
	}
}

func (l *Logger) logf(level LogLevel, msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.logWithFields(level, msg)
}

// logWithFields merges fields with priority context < logger < call site.
func (l *Logger) logWithFields(level LogLevel, msg string, fields ...LogField) {
	merged := make(map[string]interface{}, len(l.fields)+len(fields)+2)
	for k, v := range extractContextFields(l.ctx) {
		merged[k] = v
	}
	for k, v := range l.fields {
		merged[k] = v
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}

	l.write(level, msg, merged)
}

func (l *Logger) write(level LogLevel, msg string, fields map[string]interface{}) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	zfields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			zfields = append(zfields, zap.NamedError(k, err))
			continue
		}
		zfields = append(zfields, zap.Any(k, fields[k]))
	}

	zl := zapLogger().Named(l.name)
	switch level {
	case DEBUG:
		zl.Debug(msg, zfields...)
	case INFO:
		zl.Info(msg, zfields...)
	case WARN:
		zl.Warn(msg, zfields...)
	case ERROR:
		zl.Error(msg, zfields...)
	case FATAL:
		zl.Fatal(msg, zfields...)
	}
}

// copyFields never returns nil so callers can add to the result.
func copyFields(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	maps.Copy(dst, src)
	return dst
}
