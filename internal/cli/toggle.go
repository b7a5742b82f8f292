package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var enableCmd = &cobra.Command{
	Use:   "enable <extension-id>",
	Short: "Enable a loaded extension",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle(cmd, args[0], true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <extension-id>",
	Short: "Disable a loaded extension without unloading it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle(cmd, args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}

func runToggle(cmd *cobra.Command, id string, enabled bool) error {
	m, _, cleanup, err := buildManager()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := m.Sync(cmd.Context()); err != nil {
		return err
	}

	if err := m.SetEnabled(cmd.Context(), id, enabled); err != nil {
		return err
	}

	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Extension %s %s\n", id, state)
	return nil
}
