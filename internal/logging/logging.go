// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global logger's level and sink. An empty sinkPath
// logs to stderr; otherwise the given file is opened for append,
// matching the daemon's normal deployment. Only the run subcommand
// calls Init.
func Init(level zerolog.Level, sinkPath string) error {
	var writer io.Writer = os.Stderr
	if sinkPath != "" {
		logFile, err := os.OpenFile(sinkPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		writer = logFile
	}

	multi := zerolog.MultiLevelWriter(writer)
	log.Logger = zerolog.New(multi).Level(level).With().Timestamp().Logger()

	if level == zerolog.DebugLevel {
		log.Debug().Msg("log level set to debug")
	}
	return nil
}

// ParseLevel maps a config string onto a zerolog.Level.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
