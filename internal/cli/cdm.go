package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mezzo-player/webext/internal/branding"
	"github.com/mezzo-player/webext/internal/cdm"
	"github.com/mezzo-player/webext/internal/config"
	"github.com/mezzo-player/webext/internal/paths"
)

var cdmCmd = &cobra.Command{
	Use:   "cdm",
	Short: "Manage the content decryption module",
}

var cdmStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show installed and latest CDM versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := buildCDMUpdater()
		if err != nil {
			return err
		}

		status, err := u.Check(cmd.Context(), cdm.DefaultCacheMaxAge)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling CDM status: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var cdmUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Install the latest CDM version from the component updater",
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := buildCDMUpdater()
		if err != nil {
			return err
		}

		status, err := u.Update(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "CDM %s at version %s\n", status.ComponentID, status.Installed)
		return nil
	},
}

var cdmRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the CDM with the component updater",
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := buildCDMUpdater()
		if err != nil {
			return err
		}

		if err := u.Register(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", u.ComponentID())
		return nil
	},
}

func init() {
	cdmCmd.AddCommand(cdmStatusCmd)
	cdmCmd.AddCommand(cdmUpdateCmd)
	cdmCmd.AddCommand(cdmRegisterCmd)
	rootCmd.AddCommand(cdmCmd)
}

func buildCDMUpdater() (*cdm.Updater, error) {
	componentsRoot, err := paths.ComponentsRoot()
	if err != nil {
		return nil, err
	}
	return cdm.New(
		branding.CDMComponent(),
		config.GetOr("updater.service_url", branding.UpdateServiceURL()),
		componentsRoot,
	), nil
}
