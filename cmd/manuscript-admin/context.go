package main

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"manuscript-workflow-api/config"
	"manuscript-workflow-api/services"
)

// commandContext lazily opens the config, logger and database shared by
// every subcommand.
type commandContext struct {
	verbose bool

	once   sync.Once
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	sqlDB  *sql.DB
	err    error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensure() error {
	c.once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.err = err
			return
		}
		c.cfg = cfg

		logCfg := cfg.Log
		logCfg.Format = "console"
		if c.verbose {
			logCfg.Level = "debug"
		}
		logger, err := config.NewLogger(logCfg, zapcore.Lock(os.Stderr))
		if err != nil {
			c.err = err
			return
		}
		c.logger = logger

		db, err := config.InitDB(cfg.Database, logger)
		if err != nil {
			c.err = err
			return
		}
		sqlDB, err := db.DB()
		if err != nil {
			c.err = fmt.Errorf("failed to get sql.DB: %w", err)
			return
		}
		c.db = db
		c.sqlDB = sqlDB
	})
	return c.err
}

func (c *commandContext) close() {
	if c.sqlDB != nil {
		c.sqlDB.Close()
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

func (c *commandContext) queryService() (*services.QueryService, error) {
	if err := c.ensure(); err != nil {
		return nil, err
	}
	return services.NewQueryService(services.NewManuscriptRepository(c.db), c.cfg.Workflow.PageSize), nil
}

func (c *commandContext) staffDirectory() (*services.GormStaffDirectory, error) {
	if err := c.ensure(); err != nil {
		return nil, err
	}
	return services.NewStaffDirectory(c.db), nil
}
