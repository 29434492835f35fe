package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	logger     *slog.Logger
	closeLog   func() error
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

// ensureConfig loads the configuration and builds the logger once per process.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = *c.logLevelFlag
		}

		logger, closeLog, err := logging.New(logging.OptionsFromSettings(cfg.Logging))
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.logger = logger
		c.closeLog = closeLog
	})
	return c.config, c.configErr
}

func (c *commandContext) log() *slog.Logger {
	if c.logger == nil {
		return logging.Discard()
	}
	return c.logger
}

func (c *commandContext) close() error {
	if c.closeLog == nil {
		return nil
	}
	return c.closeLog()
}
