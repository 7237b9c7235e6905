// ABOUTME: Entry point for coven-operator, a chat relay for local coding agents
// ABOUTME: Cobra command tree: serve, init, providers, history, version

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-operator/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  ___ _____   _____ _ __         ___  _ __   ___ _ __ __ _| |_ ___  _ __
 / __/ _ \ \ / / _ \ '_ \ _____ / _ \| '_ \ / _ \ '__/ _' | __/ _ \| '__|
| (_| (_) \ V /  __/ | | |_____| (_) | |_) |  __/ | | (_| | || (_) | |
 \___\___/ \_/ \___|_| |_|      \___/| .__/ \___|_|  \__,_|\__\___/|_|
                                     |_|
`

var configPath string

var rootCmd = &cobra.Command{
	Use:   "coven-operator",
	Short: "Relay chat messages to local coding agent CLIs",
	Long: `coven-operator bridges Matrix rooms to Claude, Codex and Gemini CLIs
running on this machine. Each room picks a provider and model, keeps a
resumable agent session, and sees a live status message while the agent
works.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("Config file (default: $%s or $XDG_CONFIG_HOME/coven/operator.yaml)", config.ConfigEnv))

	rootCmd.AddCommand(serveCmd, initCmd, providersCmd, historyCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// resolveConfigPath returns the --config flag or the default location.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the config file, falling back to defaults when it is absent.
func loadConfig() (*config.Config, string, error) {
	path := resolveConfigPath()
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config from %s: %w", path, err)
	}
	return cfg, path, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "coven-operator %s\n", version)
	},
}
