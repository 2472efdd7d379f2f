package cli

import (
	"fmt"
	"os"

	"github.com/harun/recbridge/internal/config"
	"github.com/harun/recbridge/internal/daemon"
	"github.com/harun/recbridge/internal/logger"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recbridge daemon in the foreground",
	Long: `Run the recbridge daemon in the foreground.
The daemon serves the gateway until it receives SIGINT or SIGTERM, and reloads
the log level and rate limits when the config file changes.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := newDaemonLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	configPath := config.NewLoader(cfgFile).GetConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if err := d.WatchConfig(configPath); err != nil {
			log.Warn().Err(err).Str("path", configPath).Msg("Config hot reload disabled")
		}
	}

	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "recbridge listening on %s\n", d.Status().Addr)
	d.Wait()
	return nil
}

func newDaemonLogger(cfg *config.Config) (*logger.Logger, error) {
	var secrets []string
	if cfg.Gateway.SharedSecret != "" {
		secrets = append(secrets, cfg.Gateway.SharedSecret)
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
		Secrets:   secrets,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}
