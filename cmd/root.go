package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/regprobe/internal/config"
	"github.com/xkilldash9x/regprobe/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// rootOptions holds the persistent flag values for one command tree.
type rootOptions struct {
	cfgFile string
	debug   bool
}

// NewRootCommand builds a fresh command tree. Each call is independent, so
// tests and repeated invocations never share flag state.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "regprobe",
		Short:         "regprobe validates a web application's registration workflow in a real browser.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize(cmd, opts)
		},
	}
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	cmd.PersistentFlags().Bool("headless", true, "run the browser without a visible window")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newRenderCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the command tree with the given signal-aware context.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		observability.Sync()
		return err
	}
	observability.Sync()
	return nil
}

// initialize loads .env, the config file and the environment, then sets up
// logging and stores the validated config in the command's context.
func initialize(cmd *cobra.Command, opts *rootOptions) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	config.SetDefaults(v)
	if err := initializeConfig(v, opts.cfgFile); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	if err := v.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
		return err
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "regprobe"})
		return fmt.Errorf("failed to load or validate config: %w", err)
	}
	observability.InitializeLogger(cfg.Logger)
	if opts.debug {
		observability.SetLevel(zapcore.DebugLevel)
	}
	observability.GetLogger().Debug("Configuration loaded.",
		zap.String("version", Version),
		zap.String("base_url", cfg.Target.BaseURL),
		zap.Bool("headless", cfg.Browser.Headless),
		zap.Bool("ci", cfg.CI),
	)

	cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
	return nil
}

// initializeConfig reads in the config file and environment variables.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("REGPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// getConfigFromContext returns the config stored by the root command.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not initialized")
	}
	return cfg, nil
}
