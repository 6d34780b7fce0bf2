package envfile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEnv(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key) //nolint:errcheck
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	if err := Load("/nonexistent/.env"); err != nil {
		t.Fatalf("expected nil for nonexistent file, got %v", err)
	}
}

func TestLoad_SetsUnsetVars(t *testing.T) {
	path := writeEnv(t, ".env.local", "TEST_ENVFILE_A=hello\nexport TEST_ENVFILE_B=\"world\"\n# comment\n")
	unset(t, "TEST_ENVFILE_A", "TEST_ENVFILE_B")

	if err := Load(path); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("TEST_ENVFILE_A"); got != "hello" {
		t.Errorf("TEST_ENVFILE_A = %q, want %q", got, "hello")
	}
	if got := os.Getenv("TEST_ENVFILE_B"); got != "world" {
		t.Errorf("TEST_ENVFILE_B = %q, want %q", got, "world")
	}
}

func TestLoad_DoesNotOverrideExisting(t *testing.T) {
	path := writeEnv(t, ".env", "TEST_ENVFILE_C=from_file\n")
	t.Setenv("TEST_ENVFILE_C", "from_env")

	if err := Load(path); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("TEST_ENVFILE_C"); got != "from_env" {
		t.Errorf("TEST_ENVFILE_C = %q, want %q (env should take precedence)", got, "from_env")
	}
}

func TestLoad_FillsEmptyVar(t *testing.T) {
	path := writeEnv(t, ".env", "TEST_ENVFILE_D=from_file\n")
	t.Setenv("TEST_ENVFILE_D", "")

	if err := Load(path); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("TEST_ENVFILE_D"); got != "from_file" {
		t.Errorf("TEST_ENVFILE_D = %q, want %q", got, "from_file")
	}
}

func TestLoadAll_FirstFileWins(t *testing.T) {
	local := writeEnv(t, ".env.local", "TEST_ENVFILE_E=local\n")
	shared := writeEnv(t, ".env", "TEST_ENVFILE_E=shared\nTEST_ENVFILE_F=shared\n")
	unset(t, "TEST_ENVFILE_E", "TEST_ENVFILE_F")

	if err := LoadAll(local, "", "/missing/.env", shared); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("TEST_ENVFILE_E"); got != "local" {
		t.Errorf("TEST_ENVFILE_E = %q, want %q", got, "local")
	}
	if got := os.Getenv("TEST_ENVFILE_F"); got != "shared" {
		t.Errorf("TEST_ENVFILE_F = %q, want %q", got, "shared")
	}
}
