// Package logger provides structured logging with context propagation for the
// candle engine, built on the standard library's slog with component loggers
// and rotating file output.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mdthewzrd/candle-engine/internal/config"
)

// ContextKey types context values carried for logging.
type ContextKey string

const (
	// TraceIDKey is the context key for a trace ID.
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey is the context key for a pipeline run ID.
	RunIDKey ContextKey = "run_id"
	// SymbolKey is the context key for the ticker symbol being processed.
	SymbolKey ContextKey = "symbol"
	// TimeframeKey is the context key for the display timeframe.
	TimeframeKey ContextKey = "timeframe"
	// OperationKey is the context key for the operation name.
	OperationKey ContextKey = "operation"
)

// Manager owns the base logger and hands out component loggers.
type Manager struct {
	baseLogger *slog.Logger
	config     config.LoggingConfig
	writer     io.WriteCloser

	mu    sync.Mutex
	cache map[string]*slog.Logger
}

// NewManager builds a logging manager from configuration.
func NewManager(cfg config.LoggingConfig) (*Manager, error) {
	writer, err := createWriter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create log writer: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.Level == "debug",
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339Nano))
				}
			case slog.LevelKey:
				if level, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(strings.ToUpper(level.String()))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(writer, opts)
	default:
		handler = slog.NewJSONHandler(writer, opts)
	}

	baseAttrs := make([]slog.Attr, 0, len(cfg.ContextFields))
	for key, value := range cfg.ContextFields {
		baseAttrs = append(baseAttrs, slog.String(key, value))
	}
	if len(baseAttrs) > 0 {
		handler = handler.WithAttrs(baseAttrs)
	}

	return &Manager{
		baseLogger: slog.New(handler),
		config:     cfg,
		writer:     writer,
		cache:      make(map[string]*slog.Logger),
	}, nil
}

func createWriter(cfg config.LoggingConfig) (io.WriteCloser, error) {
	switch cfg.Output {
	case "stderr":
		return nopWriteCloser{os.Stderr}, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file path is required when output is 'file'")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		return &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}, nil
	default:
		return nopWriteCloser{os.Stdout}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Base returns the base logger.
func (m *Manager) Base() *slog.Logger {
	return m.baseLogger
}

// Component returns a logger tagged with the given component name. Loggers
// are cached per component.
func (m *Manager) Component(name string) *slog.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.cache[name]; ok {
		return cached
	}
	logger := m.baseLogger.With(slog.String("component", name))
	m.cache[name] = logger
	return logger
}

// WithContext returns the base logger enriched with any logging attributes
// present on the context.
func (m *Manager) WithContext(ctx context.Context) *slog.Logger {
	attrs := contextAttrs(ctx)
	if len(attrs) == 0 {
		return m.baseLogger
	}
	return m.baseLogger.With(attrs...)
}

// Close releases the log writer.
func (m *Manager) Close() error {
	if m.writer != nil {
		return m.writer.Close()
	}
	return nil
}

func contextAttrs(ctx context.Context) []any {
	var attrs []any
	for _, key := range []ContextKey{TraceIDKey, RunIDKey, SymbolKey, TimeframeKey, OperationKey} {
		if val, ok := ctx.Value(key).(string); ok && val != "" {
			attrs = append(attrs, slog.String(string(key), val))
		}
	}
	return attrs
}

// WithTraceID attaches a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRunID attaches a pipeline run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithSymbol attaches a ticker symbol to the context.
func WithSymbol(ctx context.Context, symbol string) context.Context {
	return context.WithValue(ctx, SymbolKey, symbol)
}

// WithTimeframe attaches a display timeframe to the context.
func WithTimeframe(ctx context.Context, timeframe string) context.Context {
	return context.WithValue(ctx, TimeframeKey, timeframe)
}

// WithOperation attaches an operation name to the context.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, OperationKey, operation)
}

// RunID extracts the pipeline run ID from context.
func RunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// TimedOperation runs fn and logs its outcome with duration.
func TimedOperation(logger *slog.Logger, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start)

	if err != nil {
		logger.Error("operation failed",
			slog.String("operation", operation),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return err
	}

	logger.Info("operation completed",
		slog.String("operation", operation),
		slog.Duration("duration", duration))
	return nil
}
