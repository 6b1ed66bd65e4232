package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harunnryd/kuroko/internal/config"
	"github.com/harunnryd/kuroko/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kuroko",
	Short: "Kuroko conversational agent",
	Long:  `Kuroko is a terminal agent that drives a local Ollama model and augments it with file, shell, todo and search tools.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Server.LogLevel)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.kuroko/config.yaml)")
	rootCmd.PersistentFlags().String("server.log_level", config.DefaultServerLogLevel, "log level (debug, info, warn, error)")
}

// applyCommonFlags folds the user-facing flags into the loaded config.
func applyCommonFlags(cmd *cobra.Command) {
	if v, err := cmd.Flags().GetString("model"); err == nil && v != "" {
		cfg.Model.Name = v
	}
	if v, err := cmd.Flags().GetString("host"); err == nil && v != "" {
		cfg.Model.Host = v
	}
	if v, err := cmd.Flags().GetString("workspace"); err == nil && v != "" {
		cfg.Session.Workspace = v
	}
	if ok, err := cmd.Flags().GetBool("no-tools"); err == nil && ok {
		cfg.Orchestrator.NoTools = true
	}
	if ok, err := cmd.Flags().GetBool("stateless"); err == nil && ok {
		cfg.Session.Save = false
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("model", "m", "", "model name to use")
	cmd.Flags().String("host", "", "model server host:port")
	cmd.Flags().StringP("workspace", "w", "", "target workspace ID")
	cmd.Flags().Bool("no-tools", false, "disable tools for conversation only")
	cmd.Flags().Bool("stateless", false, "disable session persistence")
}
