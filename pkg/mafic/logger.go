package mafic

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging across the client.
type Logger struct {
	logger zerolog.Logger
}

// LogConfig configures the package logger.
type LogConfig struct {
	Level     zerolog.Level
	Pretty    bool
	Output    io.Writer
	AddSource bool
	Fields    map[string]any
}

// DefaultLogConfig returns the logging configuration used when none is given.
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:  zerolog.InfoLevel,
		Pretty: true,
		Output: os.Stdout,
		Fields: make(map[string]any),
	}
}

// NewLogger creates a structured logger from the given configuration.
func NewLogger(config *LogConfig) *Logger {
	if config == nil {
		config = DefaultLogConfig()
	}

	var logger zerolog.Logger
	if config.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        config.Output,
			TimeFormat: time.Kitchen,
		})
	} else {
		logger = zerolog.New(config.Output)
	}

	logger = logger.Level(config.Level).With().Timestamp().Logger()

	if config.AddSource {
		logger = logger.With().Caller().Logger()
	}
	if len(config.Fields) > 0 {
		logger = logger.With().Fields(config.Fields).Logger()
	}

	return &Logger{logger: logger}
}

// WithComponent adds a component field to the logger.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{logger: l.logger.With().Str("component", component).Logger()}
}

// WithLabel adds a node label field to the logger.
func (l *Logger) WithLabel(label string) *Logger {
	return &Logger{logger: l.logger.With().Str("label", label).Logger()}
}

// WithGuild adds a guild (room) field to the logger.
func (l *Logger) WithGuild(guildID int64) *Logger {
	return &Logger{logger: l.logger.With().Int64("guild", guildID).Logger()}
}

// WithField adds an arbitrary field to the logger.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithError adds an error field to the logger.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

func (l *Logger) Trace(msg string) { l.logger.Trace().Msg(msg) }
func (l *Logger) Debug(msg string) { l.logger.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.logger.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.logger.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.logger.Error().Msg(msg) }
func (l *Logger) Fatal(msg string) { l.logger.Fatal().Msg(msg) }

func (l *Logger) Tracef(format string, args ...any) { l.logger.Trace().Msgf(format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.logger.Debug().Msgf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logger.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logger.Warn().Msgf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logger.Error().Msgf(format, args...) }

// LogNodeEvent logs node lifecycle events with structured fields.
func (l *Logger) LogNodeEvent(event string, state ConnectionState, fields map[string]any) {
	l.logger.Info().
		Str("event_type", "node").
		Str("event", event).
		Str("state", string(state)).
		Fields(fields).
		Msg("Node event")
}

// LogMessageEvent logs inbound websocket message events.
func (l *Logger) LogMessageEvent(op string, fields map[string]any) {
	l.logger.Debug().
		Str("event_type", "message").
		Str("op", op).
		Fields(fields).
		Msg("Message event")
}

// LogStats logs a received stats snapshot and its derived weight.
func (l *Logger) LogStats(stats *NodeStats) {
	l.logger.Debug().
		Str("event_type", "stats").
		Int("players", stats.PlayerCount).
		Int("playing", stats.PlayingPlayerCount).
		Dur("uptime", stats.Uptime).
		Float64("weight", stats.Weight()).
		Msg("Node statistics")
}

// LogError logs a MaficError with its code and details.
func (l *Logger) LogError(err *MaficError) {
	l.logger.Error().
		Str("error_code", err.Code).
		Fields(err.Details).
		Msg(err.Message)
}

var globalLogger = NewLogger(DefaultLogConfig())

// GetGlobalLogger returns the package-wide logger instance.
func GetGlobalLogger() *Logger { return globalLogger }

// SetGlobalLogger replaces the package-wide logger instance.
func SetGlobalLogger(logger *Logger) { globalLogger = logger }
