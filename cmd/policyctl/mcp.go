package main

import (
	"fmt"

	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/insurance-upsell/internal/adapters/mcp"
)

var mcpPort int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve policy search, answers and recommendations as MCP tools",
	Long: `Starts a Model Context Protocol server. It speaks JSON-RPC over stdio by
default; use --port to serve the streamable HTTP transport instead.

Example client configuration:
  {
    "mcpServers": {
      "policies": {
        "command": "/path/to/policyctl",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 = use stdio)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	svc, closeFn, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	server, err := mcpadapter.NewServer(&mcpadapter.Ports{
		Assistant:   svc.Assistant,
		Recommender: svc.Recommender,
	})
	if err != nil {
		return err
	}

	if mcpPort > 0 {
		addr := fmt.Sprintf(":%d", mcpPort)
		cmd.PrintErrf("MCP server listening on http://localhost%s/mcp\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}
	return server.Run(cmd.Context())
}
