package cli

import (
	"fmt"

	"github.com/mezzo-player/webext/internal/branding"
	"github.com/mezzo-player/webext/internal/cdn"
	"github.com/mezzo-player/webext/internal/config"
	"github.com/mezzo-player/webext/internal/discovery"
	"github.com/mezzo-player/webext/internal/events"
	"github.com/mezzo-player/webext/internal/host"
	"github.com/mezzo-player/webext/internal/manager"
	"github.com/mezzo-player/webext/internal/paths"
)

// buildManager wires the collaborators a command needs: extension sources,
// host runtime, CDN client, and event broker. The returned cleanup closes
// the runtime connection.
func buildManager() (*manager.Manager, *events.Broker, func(), error) {
	if err := paths.EnsureLayout(); err != nil {
		return nil, nil, nil, err
	}

	userRoot, err := paths.UserExtensionsRoot()
	if err != nil {
		return nil, nil, nil, err
	}
	stagingRoot, err := paths.StagingRoot()
	if err != nil {
		return nil, nil, nil, err
	}

	// With no control socket configured the loopback runtime stands in,
	// which keeps every command usable in development.
	var rt host.Runtime
	if socket := config.Get("host.socket"); socket != "" {
		rt, err = host.Dial(socket)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to host runtime: %w", err)
		}
	} else {
		rt = host.NewLoopback()
	}

	broker := events.NewBroker(log)
	client := cdn.New(config.GetOr("cdn.base_url", branding.CDNBaseURL()))

	m := manager.New(manager.Config{
		Sources:     discovery.DefaultSources(),
		UserRoot:    userRoot,
		StagingRoot: stagingRoot,
		Session:     config.GetOr("host.session", host.DefaultSession),
		Runtime:     rt,
		Broker:      broker,
		CDN:         client,
		Log:         log,
	})

	cleanup := func() { _ = rt.Close() }
	return m, broker, cleanup, nil
}
