package main

import (
	"strings"
	"sync"

	"meeple/internal/config"
	"meeple/internal/engine"
	"meeple/internal/hashcache"
	"meeple/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	engineOnce sync.Once
	engine     *engine.Engine
	cache      *hashcache.Cache
	engineErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureEngine builds the engine once per invocation: config, logger, and
// hash cache wired together.
func (c *commandContext) ensureEngine() (*engine.Engine, error) {
	c.engineOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.engineErr = err
			return
		}
		logger, err := logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
		if err != nil {
			c.engineErr = err
			return
		}
		cache, err := hashcache.Open(cfg.Paths.CachePath, hashcache.WithLogger(logger))
		if err != nil {
			c.engineErr = err
			return
		}
		c.cache = cache
		c.engine = engine.New(cfg,
			engine.WithLogger(logger),
			engine.WithCache(cache),
		)
	})
	return c.engine, c.engineErr
}

func (c *commandContext) cacheValue() (*hashcache.Cache, error) {
	if _, err := c.ensureEngine(); err != nil {
		return nil, err
	}
	return c.cache, nil
}
