package main

import (
	"github.com/spf13/cobra"

	"github.com/gorewood/microfactory/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List published tools",
		Long: `List the published tool folders: top-level folders whose name starts
with a digit. An unreachable store lists nothing rather than failing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printer := newPrinter(cmd)
			logger := newLogger(cmd)
			defer func() { _ = logger.Sync() }()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return fail(printer, err)
			}
			if backend != "" {
				cfg.Store.Backend = backend
			}
			s, err := openStore(cfg)
			if err != nil {
				return fail(printer, err)
			}

			tools := catalog.New(s, logger).ListPublishedTools(cmd.Context())
			if printer.IsJSON() {
				return printer.WriteJSON(map[string]any{"count": len(tools), "tools": tools})
			}
			if len(tools) == 0 {
				printer.Println("No tools published yet.")
				return nil
			}
			rows := make([][]string, len(tools))
			for i, name := range tools {
				rows[i] = []string{name, name + "/index.html"}
			}
			printer.Table([]string{"TOOL", "PAGE"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "store", "", "Store backend: github, dir, s3, memory")
	return cmd
}
