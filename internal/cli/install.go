package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var installFromFile string

var installCmd = &cobra.Command{
	Use:   "install <extension-id>",
	Short: "Install an extension from the CDN",
	Long: `Download the signed package for an extension id from the CDN, verify its
signature, unpack it into the user extension root, and load it into the
browsing session. With --file, install a local package instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installFromFile, "file", "", "Install from a local package file instead of the CDN")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	if installFromFile == "" && len(args) == 0 {
		return fmt.Errorf("an extension id or --file is required")
	}

	m, _, cleanup, err := buildManager()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := m.Sync(cmd.Context()); err != nil {
		return err
	}

	if installFromFile != "" {
		if err := m.InstallPackage(cmd.Context(), installFromFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Installed package %s\n", installFromFile)
		return nil
	}

	id := args[0]
	if err := m.Install(cmd.Context(), id); err != nil {
		return err
	}

	st, err := m.Status(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Installed %s (%s) version %s\n", st.Name, st.ID, st.Version)
	return nil
}
