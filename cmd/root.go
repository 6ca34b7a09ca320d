package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/lemos/y7converter/internal/config"
	"github.com/lemos/y7converter/internal/errs"
	"github.com/lemos/y7converter/internal/service"
	"github.com/lemos/y7converter/pkg/log"
)

type commandContext struct {
	configFlag string
	debugFlag  bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	fileLogger *log.FileLogger

	// pipelineOpts are appended to every pipeline the commands build.
	pipelineOpts []service.PipelineOption
}

func newRootCommand() (*cobra.Command, *commandContext) {
	cc := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "y7converter",
		Short:         "Generate subtitles from media files and translate SRT subtitles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			_, err := cc.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cc.configFlag, "config", "c", "", "Configuration file path (default config.yaml or $CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVar(&cc.debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newGenerateCommand(cc))
	rootCmd.AddCommand(newTranslateCommand(cc))
	rootCmd.AddCommand(newWatchCommand(cc))
	rootCmd.AddCommand(newHistoryCommand(cc))

	return rootCmd, cc
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.configFlag), func(cfg *config.Config) {
			if c.debugFlag {
				cfg.App.Debug = true
			}
		})
		if err != nil {
			c.configErr = errs.Wrap(err, errs.Config, "failed to load configuration")
			return
		}
		if err := c.setupLogger(cfg.App); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) setupLogger(app config.AppConfig) error {
	level := log.ParseLevel(app.LogLevel)
	if app.Debug {
		level = log.LevelDebug
	}

	if app.LogFile == "" {
		log.InitLogger(level)
		return nil
	}

	fl, err := log.NewFileLogger(app.LogFile, level)
	if err != nil {
		return errs.Wrap(err, errs.FileIO, fmt.Sprintf("failed to open log file %s", app.LogFile))
	}
	c.fileLogger = fl
	log.SetLogger(fl.Logger)
	return nil
}

func (c *commandContext) pipeline(cfg config.Config) *service.Pipeline {
	return service.NewPipeline(cfg, c.pipelineOpts...)
}

func (c *commandContext) close() {
	if c.fileLogger != nil {
		_ = c.fileLogger.Close()
	}
}
