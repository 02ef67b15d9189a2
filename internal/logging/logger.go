package logging

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "LEDHTTPD_LOG_LEVEL"

var current atomic.Pointer[zap.Logger]

// Initialize builds the global logger for level. An empty level falls back
// to LEDHTTPD_LOG_LEVEL; if that is empty too, logging is silent. Output goes
// to stderr so it never interleaves with the terminal UI on stdout.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		SetLogger(nil)
		return nil
	}

	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoder := zap.NewDevelopmentEncoderConfig()
	encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         "console",
		EncoderConfig:    encoder,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	SetLogger(l)
	return nil
}

// SetLogger replaces the global logger. Tests use it to install an observer
// core. A nil logger silences logging.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

// GetLogger returns the global logger, silent until Initialize or SetLogger.
func GetLogger() *zap.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogStage logs a bring-up stage transition
func LogStage(stage string, event string, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("stage", stage),
		zap.String("event", event),
	}
	if elapsed > 0 {
		fields = append(fields, zap.Duration("elapsed", elapsed))
	}
	Info("Stage event", fields...)
}

// LogCleanup logs the outcome of a single cleanup action. Failures are
// logged at warn level and never escalate.
func LogCleanup(name string, err error) {
	if err != nil {
		Warn("Cleanup failed", zap.String("cleanup", name), zap.Error(err))
		return
	}
	Debug("Cleanup done", zap.String("cleanup", name))
}

// LogWebSocketMessage logs a frame on the events endpoint. Text payloads are
// included; other frames only by size.
func LogWebSocketMessage(remoteAddr string, direction string, messageType int, data []byte) {
	fields := []zap.Field{
		zap.String("remote_addr", remoteAddr),
		zap.String("direction", direction),
		zap.String("message_type", frameName(messageType)),
		zap.Int("length", len(data)),
	}
	if messageType == textFrame {
		fields = append(fields, zap.ByteString("content", data))
	}
	Debug("WebSocket message", fields...)
}

// RFC 6455 opcodes
const (
	textFrame   = 1
	binaryFrame = 2
	closeFrame  = 8
	pingFrame   = 9
	pongFrame   = 10
)

func frameName(opcode int) string {
	switch opcode {
	case textFrame:
		return "text"
	case binaryFrame:
		return "binary"
	case closeFrame:
		return "close"
	case pingFrame:
		return "ping"
	case pongFrame:
		return "pong"
	}
	return fmt.Sprintf("opcode(%d)", opcode)
}

// Sync flushes any buffered log entries
func Sync() {
	_ = GetLogger().Sync()
}
