package logging

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// New returns a text logger writing to w. DEBUG=true enables debug output;
// otherwise LOG_LEVEL (e.g. "warn") sets the level, defaulting to info.
func New(w io.Writer) *log.Logger {
	logger := log.New()
	logger.SetOutput(w)
	logger.SetFormatter(&log.TextFormatter{
		DisableColors:    true,
		FullTimestamp:    true,
		DisableQuote:     true,
		QuoteEmptyFields: true,
	})
	logger.SetLevel(levelFromEnv())
	return logger
}

func levelFromEnv() log.Level {
	if os.Getenv("DEBUG") == "true" {
		return log.DebugLevel
	}
	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		return lvl
	}
	return log.InfoLevel
}
