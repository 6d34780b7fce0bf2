package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gorewood/microfactory/internal/config"
)

const redacted = "********"

func newConfigCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the configuration after the config file and environment are applied.
Secrets are redacted. With --check, also validate it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printer := newPrinter(cmd)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return fail(printer, err)
			}
			if check {
				if err := cfg.Validate(); err != nil {
					return fail(printer, err)
				}
			}

			shown := redact(*cfg)
			if printer.IsJSON() {
				return printer.WriteJSON(map[string]any{"source": cfg.Source, "valid": check, "config": shown})
			}

			data, err := yaml.Marshal(shown)
			if err != nil {
				return fail(printer, err)
			}
			source := cfg.Source
			if source == "" {
				source = "defaults and environment"
			}
			printer.Print("# source: %s\n%s", source, data)
			if check {
				printer.Status(true, "configuration is valid")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Validate the configuration")
	return cmd
}

// redact returns a copy of cfg with credentials masked.
func redact(cfg config.Config) config.Config {
	if cfg.Store.Token != "" {
		cfg.Store.Token = redacted
	}
	if cfg.Store.S3.AccessKey != "" {
		cfg.Store.S3.AccessKey = redacted
	}
	if cfg.Store.S3.SecretKey != "" {
		cfg.Store.S3.SecretKey = redacted
	}
	return cfg
}
