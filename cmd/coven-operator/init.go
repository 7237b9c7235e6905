// ABOUTME: init command: writes a commented default config file
// ABOUTME: Refuses to overwrite an existing config unless --force is given

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-operator/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := resolveConfigPath()
		if err := config.WriteTemplate(path, initForce); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		green := color.New(color.FgGreen)
		green.Fprintf(out, "    ✓ Config written to %s\n", path)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "    Next steps:")
		fmt.Fprintln(out, "    1. Fill in the matrix section (homeserver and credentials)")
		fmt.Fprintln(out, "    2. Run: coven-operator providers")
		fmt.Fprintln(out, "    3. Run: coven-operator serve")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config")
}
