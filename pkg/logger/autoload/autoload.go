// Package autoload initializes the global logger from LOG_* environment
// variables when imported for side effects.
package autoload

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	logx "github.com/tanpawarit/Chative-Trip-Planner/pkg/logger"
)

func init() {
	conf := *logx.DefaultConfig
	if err := envconfig.Process("LOG", &conf); err != nil {
		logx.Init()
		log.Warn().Err(err).Msg("logger_config_invalid")
		return
	}
	logx.Init(conf)
}
