package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the process-wide logger. LOG_LEVEL selects the level
// (debug, info, warn, error; default info). On a terminal events are
// pretty-printed to stderr; inside Lambda the default JSON output is
// kept for CloudWatch.
func Init() {
	zerolog.SetGlobalLevel(parseLevel(os.Getenv("LOG_LEVEL")))

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") == "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// parseLevel maps a LOG_LEVEL value onto a zerolog level. Unknown or
// empty values fall back to info.
func parseLevel(level string) zerolog.Level {
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
