package main

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// TestMain isolates the tests from any real user config or env file.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "microfactory-config")
	if err != nil {
		panic(err)
	}
	_ = os.Setenv("MICROFACTORY_CONFIG_HOME", dir)
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// execute runs root with args and returns combined output.
func execute(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand_Version(t *testing.T) {
	version = "1.2.3"

	out, err := execute(t, newRootCmd(), "--version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "1.2.3") {
		t.Errorf("--version output should contain version: %q", out)
	}
	if !strings.Contains(out, "microfactory") {
		t.Errorf("--version output should contain 'microfactory': %q", out)
	}
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t, newRootCmd(), "--help")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, expected := range []string{"microfactory", "Usage:", "--json", "run", "publish", "catalog", "serve"} {
		if !strings.Contains(out, expected) {
			t.Errorf("--help output should contain %q: %q", expected, out)
		}
	}
}

func TestRootCommand_JSONFlag_NoSubcommand(t *testing.T) {
	out, err := execute(t, newRootCmd(), "--json")
	if err == nil {
		t.Fatal("Expected error when running with --json but no subcommand")
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output should be valid JSON: %v\nOutput: %s", err, out)
	}
	if _, ok := result["error"]; !ok {
		t.Error("JSON output should contain 'error' field")
	}
	if code, ok := result["code"].(float64); !ok || code != 3 {
		t.Errorf("code = %v, want 3", result["code"])
	}
}

func TestBuildVersion(t *testing.T) {
	defer func(v, c, d string) { version, commit, date = v, c, d }(version, commit, date)

	version, commit, date = "1.0.0", "none", "unknown"
	if got := buildVersion(); got != "1.0.0" {
		t.Errorf("buildVersion() = %q, want 1.0.0", got)
	}

	commit, date = "abcdef1234567", "2024-01-01"
	if got := buildVersion(); got != "1.0.0 (abcdef1, 2024-01-01)" {
		t.Errorf("buildVersion() = %q", got)
	}
}

func TestNewServeCmd(t *testing.T) {
	cmd := newServeCmd()
	if cmd.Use != "serve" {
		t.Errorf("Use = %q, want %q", cmd.Use, "serve")
	}
	if cmd.RunE == nil {
		t.Error("RunE is nil")
	}
}
