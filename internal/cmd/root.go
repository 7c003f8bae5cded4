// Package cmd wires the itc command-line interface: a session monitor,
// a plan document watcher, a workflow stage controller, and a dashboard
// over all three.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petestewart/iterm-controller-sub000/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "itc",
	Short: "Terminal session supervisor with plan-driven workflow automation",
	Long: `itc supervises long-lived terminal sessions, classifies whether each
one is working, idle, or waiting for input, keeps a markdown plan
document in sync with task progress, and advances a plan-to-merge
workflow stage machine with optional per-stage automation.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/itc/config.yaml)")
	rootCmd.PersistentFlags().StringP("project", "p", ".", "project directory")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ITC")
	// Replace dots with underscores for nested keys in env vars
	// e.g., ITC_MONITOR_POLL_INTERVAL_MS for monitor.poll_interval_ms
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
