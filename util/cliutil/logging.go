package cliutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type LogOptions struct {
	// text|json
	LogFormat string

	// info|debug|warn|error
	LogLevel string

	// defaults to stdout
	Output io.Writer
}

func firstenv(envVarNames ...string) string {
	for _, name := range envVarNames {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

// SetupSlog integrates passed in options and env vars, and sets the result as the slog default.
//
// passing default cliutil.LogOptions{} is ok.
//
// MODBOT_LOG_LEVEL=info|debug|warn|error (or LOG_LEVEL)
//
// MODBOT_LOG_FMT=text|json; LOG_JSON=true is equivalent to json
func SetupSlog(options LogOptions) (*slog.Logger, error) {
	var hopts slog.HandlerOptions
	if options.LogLevel == "" {
		options.LogLevel = firstenv("MODBOT_LOG_LEVEL", "LOG_LEVEL")
	}
	switch strings.ToLower(options.LogLevel) {
	case "", "info":
		hopts.Level = slog.LevelInfo
	case "debug":
		hopts.Level = slog.LevelDebug
		hopts.AddSource = true
	case "warn", "warning":
		hopts.Level = slog.LevelWarn
	case "error":
		hopts.Level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %#v", options.LogLevel)
	}

	if options.LogFormat == "" {
		options.LogFormat = os.Getenv("MODBOT_LOG_FMT")
	}
	if options.LogFormat == "" && strings.EqualFold(os.Getenv("LOG_JSON"), "true") {
		options.LogFormat = "json"
	}
	out := options.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler
	switch strings.ToLower(options.LogFormat) {
	case "", "text":
		handler = slog.NewTextHandler(out, &hopts)
	case "json":
		handler = slog.NewJSONHandler(out, &hopts)
	default:
		return nil, fmt.Errorf("invalid log format: %#v", options.LogFormat)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
