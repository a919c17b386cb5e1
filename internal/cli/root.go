package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"quizdeck/internal/config"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quizdeck",
		Short:         "Timed multiple-choice quiz server with resumable attempts",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "config/config.yaml", "path to YAML config")
	flags.String("port", "", "port to listen on")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")
	flags.String("storage", "", "storage driver (memory, sqlite, postgres)")
	flags.String("sqlite-path", "", "SQLite database file")
	flags.String("postgres-url", "", "Postgres DSN")
	flags.String("redis-addr", "", "Redis address; enables the Redis cache and attempt registry")
	flags.String("time-limit", "", "per-attempt countdown, e.g. 10m; 0 disables it")
	flags.String("lang", "", "default language for result messages")

	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSeedCmd())
	return cmd
}

// viperForCmd binds a command's flags and QUIZDECK_* environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	v.SetEnvPrefix("QUIZDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads the YAML file named by --config and applies flag and env overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v := viperForCmd(cmd)
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return cfg, err
	}
	overrides := []struct {
		key    string
		target *string
	}{
		{"port", &cfg.Server.Port},
		{"lang", &cfg.Server.Lang},
		{"log-level", &cfg.Log.Level},
		{"log-format", &cfg.Log.Format},
		{"storage", &cfg.Storage.Driver},
		{"sqlite-path", &cfg.Storage.SQLite.Path},
		{"postgres-url", &cfg.Postgres.URL},
		{"redis-addr", &cfg.Redis.Addr},
		{"time-limit", &cfg.Quiz.TimeLimit},
	}
	for _, o := range overrides {
		if val := v.GetString(o.key); val != "" {
			*o.target = val
		}
	}
	return cfg, cfg.Validate()
}
