package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/onenote-explorer/internal/adapters/driven/config/file"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driving"
	"github.com/custodia-labs/onenote-explorer/internal/logger"
)

var (
	// Version is set by goreleaser ldflags.
	version = "dev"

	// Verbose enables debug logging.
	verbose bool

	// Services holds injected service implementations for CLI commands.
	catalogService driving.Catalog
	invokerService driving.Invoker
	authService    driving.AuthService
	configStore    *file.Store
	settings       *file.Config
)

// Services holds configuration for CLI commands.
type Services struct {
	Catalog driving.Catalog
	Invoker driving.Invoker
	Auth    driving.AuthService
	// ConfigStore and Config back the config commands.
	ConfigStore *file.Store
	Config      *file.Config
}

// SetServices injects service implementations for CLI commands.
func SetServices(s *Services) {
	if s == nil {
		return
	}
	catalogService = s.Catalog
	invokerService = s.Invoker
	authService = s.Auth
	configStore = s.ConfigStore
	settings = s.Config
}

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "onenote-explorer",
	Short: "Browse and invoke the OneNote REST API",
	Long: `OneNote Explorer lists the OneNote operations of Microsoft Graph, signs you in
with your Microsoft account and sends the requests, printing the raw responses.

Sign in with 'onenote-explorer auth login', then try
'onenote-explorer invoke "Get notebooks"'.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which commands use for
// requests and sign-in.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose debug output")

	// Use PersistentPreRunE to set verbose mode before any command executes
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return nil
	}
}
