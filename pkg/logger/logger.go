package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	Level        string `split_words:"true"`
	Service      string `split_words:"true" default:"trip-planner"`
}

var DefaultConfig = &Config{
	Debug:        false,
	PrettyFormat: false,
	Service:      "trip-planner",
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// Init replaces the global zerolog logger. Level, when set, wins over Debug.
func Init(opts ...Config) {
	conf := safe(opts...)
	log.Logger = New(os.Stdout, *conf)
}

func New(w io.Writer, conf Config) zerolog.Logger {
	if conf.PrettyFormat {
		w = zerolog.ConsoleWriter{Out: w}
	}

	ctx := zerolog.New(w).With().Timestamp()
	if s := strings.TrimSpace(conf.Service); s != "" {
		ctx = ctx.Str("service", s)
	}
	logger := ctx.Logger().Level(resolveLevel(conf))
	return logger.With().Caller().Stack().Logger()
}

func resolveLevel(conf Config) zerolog.Level {
	if raw := strings.ToLower(strings.TrimSpace(conf.Level)); raw != "" {
		if lvl, err := zerolog.ParseLevel(raw); err == nil {
			return lvl
		}
	}
	if conf.Debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
