// Command mailroute classifies incoming email with a language model and
// forwards it to the responsible department.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/mailroute/internal/app"
	"github.com/nhle/mailroute/internal/credential"
	"github.com/nhle/mailroute/internal/history"
	"github.com/nhle/mailroute/internal/logging"
	"github.com/nhle/mailroute/internal/model"
	"github.com/nhle/mailroute/internal/ui"
)

// cli carries state shared by all subcommands.
type cli struct {
	configPath string
	verbose    bool

	cfg    *model.AppConfig
	logger *zap.Logger
	app    *app.App
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := &cli{}
	root := c.rootCmd()
	err := root.ExecuteContext(ctx)
	c.teardown()
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError(err))
		os.Exit(1)
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mailroute",
		Short:         "Classify email with a language model and forward it to the right department",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Run(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", model.DefaultConfigPath(), "path to the config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "also write logs to stderr")

	root.AddCommand(
		c.runCmd(),
		c.fetchCmd(),
		c.checkCmd(),
		c.classifyCmd(),
		c.modelsCmd(),
		c.secretCmd(),
		c.historyCmd(),
	)
	return root
}

// setup loads .env, configuration, logging, the keyring and the audit
// store, then builds the App.
func (c *cli) setup(ctx context.Context) error {
	loadDotEnv()

	cfg, err := model.LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	logger, err := logging.New(cfg.Logging, logging.Options{Stderr: c.verbose})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	c.logger = logger

	opts := []app.Option{app.WithOutput(os.Stdout)}

	store, err := credential.OpenStore(filepath.Dir(c.configPath))
	if err != nil {
		logger.Warn("keyring unavailable, using environment only", zap.Error(err))
	} else {
		opts = append(opts, app.WithKeyring(store))
	}

	if cfg.History.Enabled {
		hist, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Warn("routing history unavailable", zap.String("path", cfg.History.Path), zap.Error(err))
		} else {
			opts = append(opts, app.WithHistory(hist))
		}
	}

	a, err := app.New(ctx, cfg, c.configPath, logger, opts...)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

func (c *cli) teardown() {
	if c.app != nil {
		if err := c.app.Close(); err != nil {
			c.logger.Warn("closing app", zap.Error(err))
		}
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// loadDotEnv reads .env from the working directory if present. Existing
// environment variables win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}
