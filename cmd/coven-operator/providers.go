// ABOUTME: providers command: reports which agent CLIs are installed
// ABOUTME: Shows the resolved binary path and configured models per provider

package main

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Check which agent CLIs are available",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		gray := color.New(color.FgHiBlack)

		missing := 0
		for _, name := range cfg.ProviderNames() {
			path := cfg.ResolveProviderPath(name)
			resolved, lookErr := exec.LookPath(path)
			if lookErr != nil {
				missing++
				red.Fprint(out, "    ✗ ")
				fmt.Fprintf(out, "%-8s not found (%s)\n", name, path)
			} else {
				green.Fprint(out, "    ✓ ")
				fmt.Fprintf(out, "%-8s %s\n", name, resolved)
			}
			models := strings.Join(cfg.Providers[name].Models, ", ")
			if name == cfg.DefaultProvider {
				gray.Fprintf(out, "             models: %s (default provider)\n", models)
			} else {
				gray.Fprintf(out, "             models: %s\n", models)
			}
		}

		if missing == len(cfg.ProviderNames()) {
			return fmt.Errorf("no agent CLI found on PATH")
		}
		return nil
	},
}
