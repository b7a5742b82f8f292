package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <extension-id>",
	Short: "Remove a user-installed extension",
	Long: `Unload an extension from the browsing session and delete its directory
from the user extension root. Vendor- and app-bundled extensions cannot be
removed.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	m, _, cleanup, err := buildManager()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := m.Sync(cmd.Context()); err != nil {
		return err
	}

	if err := m.Remove(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}
