package cli

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/onenote-explorer/internal/adapters/driving/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the operation catalog as MCP tools over stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout exposing the
list_operations, invoke_operation and list_choices tools.

Sign in with 'onenote-explorer auth login' first; the server reuses the
cached token.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	if catalogService == nil || invokerService == nil {
		return errors.New("invoker not configured")
	}

	ctx := cmdContext(cmd)
	if err := ensureSignedIn(ctx, cmd); err != nil {
		return err
	}

	server := mcpserver.NewServer(catalogService, invokerService, version,
		mcpserver.WithSignIn(func(ctx context.Context) error { return ensureSignedIn(ctx, cmd) }))
	return server.Run(ctx, &mcp.StdioTransport{})
}
