package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog.Logger with file output and redaction.
type Logger struct {
	logger   zerolog.Logger
	file     *os.File
	redactor *Redactor
}

// Config holds logger configuration.
type Config struct {
	Level     string // debug, info, warn, error
	File      string // log file path
	Console   bool   // enable console output
	Pretty    bool   // pretty format for console
	Redaction bool   // enable sensitive data redaction
}

// New creates a new logger.
func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer

	if cfg.Console {
		var consoleWriter io.Writer = os.Stderr
		if cfg.Pretty {
			consoleWriter = zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.RFC3339,
			}
		}
		writers = append(writers, consoleWriter)
	}

	var file *os.File
	if cfg.File != "" {
		dir := filepath.Dir(cfg.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		writers = append(writers, file)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stderr
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	var redactor *Redactor
	if cfg.Redaction {
		redactor = NewRedactor()
		writer = redactor.Wrap(writer)
	}

	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Set global logger
	log.Logger = logger

	return &Logger{
		logger:   logger,
		file:     file,
		redactor: redactor,
	}, nil
}

// Close closes the logger and any open files.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// GetZerolog returns the underlying zerolog.Logger.
func (l *Logger) GetZerolog() zerolog.Logger {
	return l.logger
}

// DefaultConfig returns default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Console:   true,
		Pretty:    true,
		Redaction: true,
	}
}
