package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured logger
type Logger struct {
	logger zerolog.Logger
}

var (
	// Default is the default logger instance
	Default *Logger

	initOnce sync.Once
)

// Init initializes the default logger writing to stdout
func Init() {
	initOnce.Do(func() {
		Default = New(os.Stdout)
		Default.Info().
			Str("level", zerolog.GlobalLevel().String()).
			Msg("Logger initialized")
	})
}

// New creates a console logger writing to out
func New(out io.Writer) *Logger {
	level := getLogLevel()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    os.Getenv("PURCHASE_ENVIRONMENT") == "production",
	}

	return &Logger{logger: zerolog.New(output).With().Timestamp().Logger()}
}

// getLogLevel returns the log level from environment variable
func getLogLevel() zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		if os.Getenv("PURCHASE_ENVIRONMENT") == "production" {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// WithField creates a new logger with a single field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

// Debug returns a debug event
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info returns an info event
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn returns a warn event
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error returns an error event
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// Fatal returns a fatal event
func (l *Logger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}

// Global functions for backward compatibility

// Info logs an info message
func Info(format string, v ...interface{}) {
	Init()
	Default.Info().Msgf(format, v...)
}

// Warn logs a warning message
func Warn(format string, v ...interface{}) {
	Init()
	Default.Warn().Msgf(format, v...)
}

// ForSite creates a logger for a specific storefront site
func ForSite(site string) *Logger {
	Init()
	return Default.WithField("site", site)
}

// ForWorker creates a logger for the worker
func ForWorker() *Logger {
	return forComponent("worker")
}

// ForPublisher creates a logger for the publisher
func ForPublisher() *Logger {
	return forComponent("publisher")
}

// ForCache creates a logger for the cache
func ForCache() *Logger {
	return forComponent("cache")
}

// ForStore creates a logger for the document store
func ForStore() *Logger {
	return forComponent("store")
}

// ForServer creates a logger for the HTTP server
func ForServer() *Logger {
	return forComponent("server")
}

func forComponent(name string) *Logger {
	Init()
	return Default.WithField("component", name)
}

// LogError is a convenience method for logging errors with context
func LogError(component string, err error, format string, v ...interface{}) {
	Init()
	msg := fmt.Sprintf(format, v...)
	Default.Error().
		Str("component", component).
		Err(err).
		Msg(msg)
}
