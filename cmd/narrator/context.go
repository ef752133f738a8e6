package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/book-expert/logger"

	"github.com/book-expert/narration-pipeline/internal/app"
	"github.com/book-expert/narration-pipeline/internal/config"
)

const logFileName = "narrator.log"

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	log *logger.Logger
	app *app.App
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := ""
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}

		if path == "" {
			cfg := config.Default()
			cfg.ApplyEnv(os.LookupEnv)

			if err := cfg.Validate(); err != nil {
				c.configErr = err

				return
			}

			c.config = &cfg

			return
		}

		c.config, c.configErr = config.LoadFile(path)
	})

	return c.config, c.configErr
}

// ensureApp wires the pipeline on first use.
func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Paths.BaseLogsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", cfg.Paths.BaseLogsDir, err)
	}

	log, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return nil, err
	}

	application, err := app.Build(ctx, cfg, log)
	if err != nil {
		_ = log.Close()

		return nil, err
	}

	c.log = log
	c.app = application

	return application, nil
}

func (c *commandContext) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}

	if c.log != nil {
		_ = c.log.Close()
		c.log = nil
	}
}
