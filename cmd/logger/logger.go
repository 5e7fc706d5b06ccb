package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// LogLevel represents the log level
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration
type Config struct {
	Level  LogLevel `toml:"level"`
	Format string   `toml:"format"` // "json" or "text"
	Output string   `toml:"output"` // "stdout", "stderr", or file path
}

// NewFromConfigStruct creates a logger from a config struct with string level
func NewFromConfigStruct(level, format, output string) *Logger {
	return New(&Config{
		Level:  LogLevel(level),
		Format: format,
		Output: output,
	})
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: "json",
		Output: "stdout",
	}
}

// New creates a new logger instance. If config.Output names a file that
// cannot be opened the logger writes to stdout and says so once.
func New(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}

	output, err := openOutput(config.Output)
	l := NewWithWriter(config, output)
	if err != nil {
		l.Warn("log output unavailable, using stdout", slog.String("output", config.Output), slog.String("error", err.Error()))
	}
	return l
}

// openOutput resolves "stdout", "stderr" or a file path (opened for append)
func openOutput(dest string) (io.Writer, error) {
	switch dest {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	file, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return os.Stdout, err
	}
	return file, nil
}

// NewWithWriter creates a logger that writes to w regardless of config.Output
func NewWithWriter(config *Config, w io.Writer) *Logger {
	if config == nil {
		config = DefaultConfig()
	}

	opts := &slog.HandlerOptions{
		Level:       parseLevel(config.Level),
		ReplaceAttr: timestampAttr,
	}

	if config.Format == "text" {
		return &Logger{Logger: slog.New(slog.NewTextHandler(w, opts))}
	}
	return &Logger{Logger: slog.New(slog.NewJSONHandler(w, opts))}
}

// timestampAttr renames the top-level time attribute to an RFC3339 "timestamp"
func timestampAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey || len(groups) > 0 {
		return a
	}
	return slog.String("timestamp", a.Value.Time().Format(time.RFC3339))
}

func parseLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var (
	defaultMu     sync.Mutex
	defaultLogger *Logger
)

// Init replaces the process-wide logger used by Default and Info
func Init(config *Config) {
	l := New(config)

	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default returns the process-wide logger, creating an info/json/stdout one on first use
func Default() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLogger == nil {
		defaultLogger = New(DefaultConfig())
	}
	return defaultLogger
}

// Info logs on the process-wide logger
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// LogRequest logs a served HTTP request at debug level
func (l *Logger) LogRequest(method, path, userAgent string, duration time.Duration, statusCode int) {
	l.Debug("request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.String("user_agent", userAgent),
		slog.String("duration", duration.String()),
		slog.Int("status_code", statusCode),
	)
}

// LogStartup records the bind address, config source and build version
func (l *Logger) LogStartup(addr, configFile, version string) {
	l.Info("hello server starting",
		slog.String("addr", addr),
		slog.String("config_file", configFile),
		slog.String("version", version),
	)
}

// LogError logs a failed operation; context is appended as key/value pairs
func (l *Logger) LogError(operation string, err error, context ...any) {
	args := []any{
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	}
	args = append(args, context...)
	l.Error("operation failed", args...)
}

// LogConfig records where configuration came from
func (l *Logger) LogConfig(configPath string, loadedViaEnv, usingDefaults bool) {
	l.Info("configuration loaded",
		slog.String("config_path", configPath),
		slog.Bool("loaded_via_env", loadedViaEnv),
		slog.Bool("using_defaults", usingDefaults),
	)
}
