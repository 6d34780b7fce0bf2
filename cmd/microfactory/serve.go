package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/gorewood/microfactory/internal/catalog"
	mfmcp "github.com/gorewood/microfactory/internal/mcp"
	"github.com/gorewood/microfactory/internal/prompt"
	"github.com/gorewood/microfactory/internal/publish"
)

// newServeCmd creates the serve command for running as an MCP server.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run as MCP server (stdio transport)",
		Long: `Run microfactory as a Model Context Protocol (MCP) server over stdio.

Configure in your agent's MCP settings:
  {
    "mcpServers": {
      "microfactory": {
        "command": "microfactory",
        "args": ["serve"]
      }
    }
  }

Available tools: extract, templates, catalog, read_file, publish`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printer := newPrinter(cmd)
			logger := newLogger(cmd)
			defer func() { _ = logger.Sync() }()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return fail(printer, err)
			}
			s, err := openStore(cfg)
			if err != nil {
				return fail(printer, err)
			}

			server := mfmcp.NewServer(buildVersion(), mfmcp.Deps{
				Store:     s,
				Publisher: publish.New(s, publish.Options{Branch: cfg.Store.Branch, Retries: cfg.Store.Retries, Logger: logger}),
				Catalog:   catalog.New(s, logger),
				Templates: prompt.DefaultLoader(),
			})
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
