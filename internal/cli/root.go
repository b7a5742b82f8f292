package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mezzo-player/webext/internal/branding"
	"github.com/mezzo-player/webext/internal/config"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var rootVerbose bool

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` manages browser-style extensions for the embedded browsing
surface: it discovers vendor-bundled, app-bundled, and user-installed
extension directories, installs signed packages from the CDN, keeps the
content decryption module registered with the component updater, and relays
extension lifecycle events to the player UI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Load()
		setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// setupLogging configures the global zerolog logger from the --verbose flag
// and the log.level config key.
func setupLogging() {
	level := zerolog.InfoLevel
	if v := config.Get("log.level"); v != "" {
		if parsed, err := zerolog.ParseLevel(v); err == nil {
			level = parsed
		}
	}
	if rootVerbose {
		level = zerolog.DebugLevel
	}
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// log is the process-wide logger, configured in PersistentPreRun.
var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
	Level(zerolog.InfoLevel).
	With().Timestamp().Logger()
