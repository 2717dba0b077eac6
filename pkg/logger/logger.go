package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Level        string `split_words:"true" default:"info"`
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
}

var DefaultConfig = &Config{
	Level:        "info",
	Debug:        false,
	PrettyFormat: false,
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// Init replaces the global zerolog logger. Logs go to stderr so the console
// session on stdout stays readable.
func Init(opts ...Config) {
	log.Logger = New(os.Stderr, *safe(opts...))
}

func New(w io.Writer, conf Config) zerolog.Logger {
	var logger zerolog.Logger
	if conf.PrettyFormat {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(w).With().Timestamp().Logger()
	}

	logger = logger.Level(level(conf))
	return logger.With().Caller().Stack().Logger()
}

func level(conf Config) zerolog.Level {
	if conf.Debug {
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(conf.Level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
