package main

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gorewood/microfactory/internal/config"
	"github.com/gorewood/microfactory/internal/logging"
	"github.com/gorewood/microfactory/internal/output"
	"github.com/gorewood/microfactory/internal/store"
)

// newPrinter builds a printer honouring --json and --color. Errors and
// warnings go to stderr in human mode.
func newPrinter(cmd *cobra.Command) *output.Printer {
	w := cmd.OutOrStdout()
	color := output.ResolveColorMode(stringFlag(cmd, "color"), output.IsTTY(w))
	return output.NewPrinter(w, isJSONMode(cmd), color).WithStderr(cmd.ErrOrStderr())
}

// newLogger builds the stderr logger. JSON logs accompany --json output.
func newLogger(cmd *cobra.Command) *zap.Logger {
	logger, err := logging.New(logging.Options{
		Verbose: boolFlag(cmd, "verbose"),
		JSON:    isJSONMode(cmd),
	})
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// loadConfig reads --config (or the default locations) and the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(stringFlag(cmd, "config"))
}

// openStore validates the store section and opens the backend.
func openStore(cfg *config.Config) (store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := store.Open(cfg.Store)
	if err != nil {
		return nil, output.NewUserError(err.Error())
	}
	return s, nil
}

// storeLocation names where a local store writes, or "" for remote stores.
func storeLocation(s store.Store) string {
	if d, ok := s.(*store.Dir); ok {
		return d.Root()
	}
	return ""
}

// readInput returns the file at path, or stdin when path is "" or "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path != "" && path != "-" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", output.NewUserError("failed to read input file: " + err.Error())
		}
		return string(content), nil
	}

	stdin := cmd.InOrStdin()
	if file, ok := stdin.(*os.File); ok {
		stat, err := file.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", output.NewUserError("no input: pass a file or pipe content on stdin")
		}
	}
	content, err := io.ReadAll(stdin)
	if err != nil {
		return "", output.NewUserError("failed to read stdin: " + err.Error())
	}
	return string(content), nil
}

// fail prints err and returns it, so RunE can `return fail(printer, err)`.
func fail(printer *output.Printer, err error) error {
	printer.Error(err)
	return err
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
