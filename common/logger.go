// Package common provides shared constants, types, and utilities
// used across the VPN settings backend.
package common

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// LogConfig holds configuration options for the logger.
type LogConfig struct {
	Level       string // trace, debug, info, warn, error
	JSON        bool
	Quiet       bool // drop console output, keep the log file
	EnableFile  bool
	MaxFileSize int64 // in bytes, default 5MB
	MaxBackups  int   // number of rotated files to keep, default 5
}

// AppLogger owns the root hclog logger and the optional log file behind it.
// Components derive their own loggers with Named.
type AppLogger struct {
	mu          sync.Mutex
	root        hclog.InterceptLogger
	fileSink    hclog.SinkAdapter
	logFile     *os.File
	filePath    string
	maxFileSize int64
	maxBackups  int
}

var (
	defaultLogger *AppLogger
	loggerOnce    sync.Once
)

const (
	defaultMaxFileSize = 5 * 1024 * 1024 // 5MB
	defaultMaxBackups  = 5
)

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}

// GetLogger returns the singleton logger instance.
func GetLogger() *AppLogger {
	loggerOnce.Do(func() {
		defaultLogger = &AppLogger{
			root: hclog.NewInterceptLogger(&hclog.LoggerOptions{
				Name:   "vpn-settings",
				Level:  hclog.Info,
				Output: os.Stderr,
			}),
			maxFileSize: defaultMaxFileSize,
			maxBackups:  defaultMaxBackups,
		}
	})
	return defaultLogger
}

// InitLogger initializes the logger with custom configuration.
// Should be called early in application startup.
func InitLogger(config LogConfig) error {
	logger := GetLogger()

	var output io.Writer = os.Stderr
	if config.Quiet {
		output = io.Discard
	}

	logger.mu.Lock()
	logger.root = hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:       "vpn-settings",
		Level:      parseLevel(config.Level),
		Output:     output,
		JSONFormat: config.JSON,
	})
	if config.MaxFileSize > 0 {
		logger.maxFileSize = config.MaxFileSize
	}
	if config.MaxBackups > 0 {
		logger.maxBackups = config.MaxBackups
	}
	logger.mu.Unlock()

	if config.EnableFile {
		return logger.EnableFileLogging()
	}
	return nil
}

func parseLevel(level string) hclog.Level {
	if level == "" {
		return hclog.Info
	}
	l := hclog.LevelFromString(level)
	if l == hclog.NoLevel {
		return hclog.Info
	}
	return l
}

// SetLevel sets the minimum log level.
func (l *AppLogger) SetLevel(level hclog.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.root.SetLevel(level)
}

// SetOutput replaces the root logger with one writing to w. Used by tests.
func (l *AppLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.root = hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:   "vpn-settings",
		Level:  l.root.GetLevel(),
		Output: w,
	})
}

// Logger returns the root logger.
func (l *AppLogger) Logger() hclog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.root
}

// EnableFileLogging adds a file sink next to the standard error output.
// The log file is rotated when it exceeds maxFileSize.
func (l *AppLogger) EnableFileLogging() error {
	logDir := GetLogDir()
	if logDir == "" {
		return fmt.Errorf("cannot resolve log directory")
	}

	if isSymlink(logDir) {
		return fmt.Errorf("security error: log directory is a symlink")
	}
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return err
	}

	logPath := filepath.Join(logDir, LogFileName)
	if isSymlink(logPath) {
		return fmt.Errorf("security error: log file is a symlink")
	}

	l.rotateIfNeeded(logPath)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileSink != nil {
		l.root.DeregisterSink(l.fileSink)
	}
	if l.logFile != nil {
		l.logFile.Close()
	}

	l.logFile = file
	l.filePath = logPath
	l.fileSink = hclog.NewSinkAdapter(&hclog.LoggerOptions{
		Level:  l.root.GetLevel(),
		Output: file,
	})
	l.root.RegisterSink(l.fileSink)
	return nil
}

func (l *AppLogger) rotateIfNeeded(logPath string) {
	info, err := os.Stat(logPath)
	if err != nil {
		return
	}
	if info.Size() < l.maxFileSize {
		return
	}
	l.rotate(logPath)
}

// rotate compresses the current log file and prunes old backups.
func (l *AppLogger) rotate(logPath string) {
	l.mu.Lock()
	if l.fileSink != nil {
		l.root.DeregisterSink(l.fileSink)
		l.fileSink = nil
	}
	if l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
	}
	l.mu.Unlock()

	timestamp := time.Now().Format("20060102-150405")
	rotatedPath := fmt.Sprintf("%s.%s.gz", logPath, timestamp)

	if err := compressFile(logPath, rotatedPath); err != nil {
		os.Rename(logPath, strings.TrimSuffix(rotatedPath, ".gz"))
	} else {
		os.Remove(logPath)
	}

	l.cleanupOldBackups(filepath.Dir(logPath))
}

func compressFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	gzWriter := gzip.NewWriter(dstFile)
	defer gzWriter.Close()

	_, err = io.Copy(gzWriter, srcFile)
	return err
}

func (l *AppLogger) cleanupOldBackups(logDir string) {
	matches, err := filepath.Glob(filepath.Join(logDir, LogFileName+".*"))
	if err != nil || len(matches) <= l.maxBackups {
		return
	}

	// oldest first
	sort.Slice(matches, func(i, j int) bool {
		infoI, _ := os.Stat(matches[i])
		infoJ, _ := os.Stat(matches[j])
		if infoI == nil || infoJ == nil {
			return false
		}
		return infoI.ModTime().Before(infoJ.ModTime())
	})

	for _, m := range matches[:len(matches)-l.maxBackups] {
		os.Remove(m)
	}
}

// GetLogDir returns the log directory path.
func GetLogDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", ConfigDirName, "logs")
}

// Close closes the log file. Should be called on application shutdown.
func (l *AppLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fileSink != nil {
		l.root.DeregisterSink(l.fileSink)
		l.fileSink = nil
	}
	if l.logFile != nil {
		err := l.logFile.Close()
		l.logFile = nil
		return err
	}
	return nil
}

// CloseLogger closes the default logger.
func CloseLogger() error {
	return GetLogger().Close()
}

// CheckRotation rotates the log file when it has grown too large.
// Long-running commands such as watch call it periodically.
func (l *AppLogger) CheckRotation() {
	l.mu.Lock()
	path := l.filePath
	l.mu.Unlock()
	if path == "" {
		return
	}
	l.rotateIfNeeded(path)
	l.mu.Lock()
	reopen := l.logFile == nil
	l.mu.Unlock()
	if reopen {
		l.EnableFileLogging()
	}
}

// Named returns a sub-logger for a component.
func Named(component string) hclog.Logger {
	return GetLogger().Logger().Named(component)
}

// LoggerOr returns l, or a named default logger when l is nil.
func LoggerOr(l hclog.Logger, component string) hclog.Logger {
	if l != nil {
		return l
	}
	return Named(component)
}

// LogDebug logs a debug message with key/value pairs to the default logger.
func LogDebug(msg string, args ...interface{}) {
	GetLogger().Logger().Debug(msg, args...)
}

// LogInfo logs an info message to the default logger.
func LogInfo(msg string, args ...interface{}) {
	GetLogger().Logger().Info(msg, args...)
}

// LogWarn logs a warning message to the default logger.
func LogWarn(msg string, args ...interface{}) {
	GetLogger().Logger().Warn(msg, args...)
}

// LogError logs an error message to the default logger.
func LogError(msg string, args ...interface{}) {
	GetLogger().Logger().Error(msg, args...)
}
