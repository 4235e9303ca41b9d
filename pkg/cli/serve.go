package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/withgalaxy/devbridge/pkg/config"
	"github.com/withgalaxy/devbridge/pkg/logging"
	"github.com/withgalaxy/devbridge/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"start", "dev"},
	Short:   "Start the development server",
	Long:    `Start the HMR endpoint and the debugger proxy`,
	RunE:    runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "port to listen on")
	serveCmd.Flags().String("host", "", "host to bind to")
	serveCmd.Flags().String("entry", "", "default bundle entry file")
	serveCmd.Flags().Bool("no-hmr", false, "disable the HMR endpoint")
	serveCmd.Flags().Bool("no-debugger", false, "disable the debugger proxy")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("entry", serveCmd.Flags().Lookup("entry"))
	_ = viper.BindPFlag("hmr.disabled", serveCmd.Flags().Lookup("no-hmr"))
	_ = viper.BindPFlag("debugger.disabled", serveCmd.Flags().Lookup("no-debugger"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: string(cfg.Log.Format),
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	srv, err := server.NewDevServer(cfg, logger, verbose)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting dev server",
		zap.String("root", cfg.Root),
		zap.String("addr", cfg.Addr()),
		zap.Bool("hmr", cfg.HMR.Enabled),
		zap.Bool("debugger", cfg.Debugger.Enabled))

	return srv.Start(ctx)
}

// loadConfig reads the config file, then applies flag and environment
// overrides on top of it.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		dir := rootDir
		if dir == "" {
			if dir, err = os.Getwd(); err != nil {
				return nil, err
			}
		}
		cfg, err = config.LoadFromDir(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := applyOverrides(cfg); err != nil {
		return nil, err
	}

	if abs, err := filepath.Abs(cfg.Root); err == nil {
		cfg.Root = abs
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config) error {
	if cfgFile != "" && rootDir != "" {
		cfg.Root = rootDir
	}
	if viper.IsSet("server.port") {
		cfg.Server.Port = viper.GetInt("server.port")
	}
	if viper.IsSet("server.host") {
		cfg.Server.Host = viper.GetString("server.host")
	}
	if viper.IsSet("entry") {
		cfg.Entry = viper.GetString("entry")
	}
	if viper.GetBool("hmr.disabled") {
		cfg.HMR.Enabled = false
	}
	if viper.GetBool("debugger.disabled") {
		cfg.Debugger.Enabled = false
	}
	if viper.IsSet("log.level") {
		cfg.Log.Level = viper.GetString("log.level")
	}
	if viper.IsSet("log.format") {
		cfg.Log.Format = config.LogFormat(viper.GetString("log.format"))
	}
	if verbose && !viper.IsSet("log.level") {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}
