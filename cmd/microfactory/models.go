package main

import (
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gorewood/microfactory/internal/llm"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List model providers, their aliases and API key status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printer := newPrinter(cmd)
			infos := llm.ProviderInfos()

			if printer.IsJSON() {
				items := make([]map[string]any, 0, len(infos))
				for _, info := range infos {
					items = append(items, map[string]any{
						"provider":   string(info.Provider),
						"env_var":    info.EnvVar,
						"configured": keyConfigured(info),
						"aliases":    info.Aliases,
					})
				}
				return printer.WriteJSON(map[string]any{"providers": items})
			}

			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				key := "missing"
				if keyConfigured(info) {
					key = "set"
				}
				rows = append(rows, []string{string(info.Provider), orDash(info.EnvVar), key, aliasList(info.Aliases)})
			}
			printer.Table([]string{"PROVIDER", "KEY", "STATUS", "ALIASES"}, rows)
			return nil
		},
	}
}

func keyConfigured(info llm.ProviderInfo) bool {
	if info.EnvVar == "" {
		return true
	}
	if os.Getenv(info.EnvVar) != "" {
		return true
	}
	return info.Provider == llm.ProviderGoogle && os.Getenv("GEMINI_API_KEY") != ""
}

func aliasList(aliases map[string]string) string {
	names := make([]string, 0, len(aliases))
	for alias, model := range aliases {
		names = append(names, alias+"="+model)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}
