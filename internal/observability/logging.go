/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package observability provides structured logging for the relay server.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string
	// Format is the log output format: "json" or "console".
	Format string
}

// NewLogger creates a structured logger from the given logging configuration.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(LogDate)
	zapCfg.DisableStacktrace = level > zapcore.DebugLevel

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// LogDate is the timestamp layout used in every log line.
const LogDate = `2006-01-02T15:04:05.000-07:00`

// Scope is the upper-case tag that opens a log message, e.g. "SERVE: listening".
type Scope string

const (
	Start Scope = "START"
	Stop  Scope = "STOP"
	Serve Scope = "SERVE"
	Cards Scope = "CARDS"
	Rooms Scope = "ROOMS"
)

// Msg prefixes msg with the scope tag.
func (s Scope) Msg(msg string) string {
	return string(s) + ": " + msg
}
