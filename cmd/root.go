package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mimic/internal/config"
	"github.com/xkilldash9x/mimic/internal/observability"
)

// NewRootCommand builds a fresh command tree. Each invocation gets its own
// instance so flag state never leaks between runs.
func NewRootCommand() *cobra.Command {
	var cfgFile string
	loaded := &config.Config{}

	rootCmd := &cobra.Command{
		Use:     "mimic",
		Short:   "Mimic drives a browser with human-like session behavior.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
			} else {
				v.AddConfigPath(".")
				v.SetConfigName("config")
				v.SetConfigType("yaml")
			}
			v.SetEnvPrefix("MIMIC")
			v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
			v.AutomaticEnv()

			if err := v.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					return fmt.Errorf("error reading config file: %w", err)
				}
				// No config file; defaults and env vars carry the day.
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{
					Level: "info", Format: "console", ServiceName: "mimic",
				})
				return err
			}
			*loaded = *cfg

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Info("Starting mimic", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newSimulateCommand(loaded))
	return rootCmd
}

// Execute runs the CLI under the given context and logs terminal failures.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		return err
	}
	return nil
}
