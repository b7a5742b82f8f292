package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mezzo-player/webext/internal/branding"
	"github.com/mezzo-player/webext/internal/cdm"
	"github.com/mezzo-player/webext/internal/config"
	"github.com/mezzo-player/webext/internal/ipc"
	"github.com/mezzo-player/webext/internal/paths"
)

var serveListenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extension manager daemon",
	Long: `Load all discovered extensions into the browsing session, register the
content decryption module with the component updater, watch the user
extension root for changes, and serve the IPC endpoint for the player UI.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListenAddr, "listen", "", "IPC listen address (default "+ipc.DefaultListenAddr+")")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, broker, cleanup, err := buildManager()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := m.Sync(ctx); err != nil {
		return err
	}

	// CDM registration is best effort at startup; the daemon still serves
	// extensions when the component updater is unreachable.
	componentsRoot, err := paths.ComponentsRoot()
	if err != nil {
		return err
	}
	updater := cdm.New(
		branding.CDMComponent(),
		config.GetOr("updater.service_url", branding.UpdateServiceURL()),
		componentsRoot,
	)
	regCtx, regCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := updater.Register(regCtx); err != nil {
		log.Warn().Err(err).Msg("CDM registration failed")
	} else if status, err := updater.Check(regCtx, cdm.DefaultCacheMaxAge); err != nil {
		log.Warn().Err(err).Msg("CDM version check failed")
	} else {
		m.NotifyCDMStatus(status)
	}
	regCancel()

	addr := serveListenAddr
	if addr == "" {
		addr = config.GetOr("ipc.listen", ipc.DefaultListenAddr)
	}
	server := ipc.New(addr, broker, m, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx) })
	g.Go(func() error { return m.Watch(ctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("shutting down")
		return nil
	}
	return err
}
