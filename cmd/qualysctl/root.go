package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/Sternrassler/qualys-api-client/internal/config"
	"github.com/Sternrassler/qualys-api-client/pkg/client"
	"github.com/Sternrassler/qualys-api-client/pkg/logging"
	"github.com/Sternrassler/qualys-api-client/pkg/metrics"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app holds what subcommands share once configuration is loaded.
type app struct {
	cfg    *config.Config
	client *client.Client
	api    *client.API
	redis  *redis.Client
	logger zerolog.Logger
}

func (a *app) Close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile  string
		envFile  string
		logLevel string
		pretty   bool
	)
	a := &app{}

	root := &cobra.Command{
		Use:   "qualysctl",
		Short: "Import hosts, asset groups and knowledge base data from Qualys",
		Long: `qualysctl pulls data from the Qualys XML API and either prints it as
JSON lines or stores it in a local bbolt database.

Credentials come from the config file or QUALYS_API_USERNAME and
QUALYS_API_PASSWORD, which may be placed in a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Shell completion needs no credentials
			if cmd.Name() == "help" || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
				return nil
			}

			// Step 1: .env is optional
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}

			// Step 2: Config file and environment
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if cmd.Flags().Changed("pretty") {
				cfg.Log.Pretty = pretty
			}

			// Step 3: Logging
			lc := cfg.LoggingConfig()
			lc.Output = cmd.ErrOrStderr()
			logging.Setup(lc)
			a.logger = logging.NewLogger("qualysctl")

			// Step 4: Client
			if opts := cfg.RedisOptions(); opts != nil {
				a.redis = redis.NewClient(opts)
				if err := a.redis.Ping(cmd.Context()).Err(); err != nil {
					return fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
				}
			}
			c, err := client.New(cfg.ClientConfig(a.redis))
			if err != nil {
				return fmt.Errorf("create client: %w", err)
			}
			a.cfg, a.client, a.api = cfg, c, client.NewAPI(c)

			// Step 5: Metrics endpoint for long imports
			if cfg.MetricsAddr != "" {
				go func(ctx context.Context) {
					if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
						a.logger.Error().Err(err).Msg("Metrics server failed")
					}
				}(cmd.Context())
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: ./qualysctl.yaml or ~/.config/qualysctl/qualysctl.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with QUALYS_* variables")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable console logs")

	root.Version = "0.1.0-dev"

	root.AddCommand(newHostsCmd(a), newGroupsCmd(a), newKBCmd(a), newScansCmd(a), newReportCmd(a))
	return root
}
