// Package autoload initialises the global logger from LOG_* process
// environment variables when imported. It does not read .env files or flags,
// so it is safe to import before flag parsing.
package autoload

import (
	"github.com/kelseyhightower/envconfig"

	logx "github.com/tanpawarit/quote-assistant/pkg/logger"
)

func init() {
	var conf logx.Config
	if err := envconfig.Process("LOG", &conf); err != nil {
		logx.Init()
		return
	}
	logx.Init(conf)
}
