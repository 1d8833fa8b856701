package main

import (
	"fmt"
	"os"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"
	"nuha.dev/loctrack/internal/config"
)

var v = config.New()

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "loctrackd",
	Short: "Background location tracking agent",
	Long: `loctrackd keeps location tracking running across restarts:
it persists the tracking intent, resumes tracking at boot and on SIGHUP,
and forwards fixes to applications over the location channel.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "info", "trace, debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "json", "json or console")
	rootCmd.PersistentFlags().String("channel-address", ":3333", "location channel listen address")
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag("channel_address", rootCmd.PersistentFlags().Lookup("channel-address"))

	rootCmd.AddCommand(runCmd, startCmd, stopCmd, statusCmd, hashTokenCmd)
}

func setupLog(c *config.Config) {
	logger := log.Logger{Level: log.ParseLevel(c.LogLevel)}
	if c.LogFormat == "console" {
		logger.Writer = &log.ConsoleWriter{ColorOutput: true, QuoteString: true}
	} else {
		logger.Writer = &log.IOWriter{Writer: os.Stderr}
	}
	log.DefaultLogger = logger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
