/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/Seednode/trivia/internal/observability"
)

// newLogger builds the process logger. --verbose wins over --log-level.
func newLogger(cfg *Config) (*zap.Logger, error) {
	level := cfg.logLevel
	if cfg.verbose {
		level = "debug"
	}

	return observability.NewLogger(observability.LoggingConfig{
		Level:  level,
		Format: cfg.logFormat,
	})
}

// drainErrors logs errors reported by handlers until errs is closed.
func drainErrors(logger *zap.Logger, errs <-chan error) {
	for err := range errs {
		logger.Warn(observability.Serve.Msg("handler error"), zap.Error(err))
	}
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", html.EscapeString(title)))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", html.EscapeString(body)))

	return htmlBody.String()
}
