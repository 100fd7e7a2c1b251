package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseEnvLine(t *testing.T) {
	cases := []struct {
		line     string
		key, val string
		ok       bool
	}{
		{"FOO=bar", "FOO", "bar", true},
		{"  export FOO = bar ", "FOO", "bar", true},
		{`QUOTED="hello world"`, "QUOTED", "hello world", true},
		{"SINGLE='x y'", "SINGLE", "x y", true},
		{`MIXED="x'`, "MIXED", `"x'`, true},
		{"EMPTY=", "EMPTY", "", true},
		{"URL=http://h/?a=b", "URL", "http://h/?a=b", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"INVALID_LINE", "", "", false},
		{"=value", "", "", false},
		{"TWO WORDS=x", "", "", false},
	}
	for _, tc := range cases {
		key, val, ok := parseEnvLine(tc.line)
		if key != tc.key || val != tc.val || ok != tc.ok {
			t.Errorf("parseEnvLine(%q) = %q, %q, %v; want %q, %q, %v", tc.line, key, val, ok, tc.key, tc.val, tc.ok)
		}
	}
}

func TestLoadEnvFileRespectsExistingValues(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "env")
	content := `
# comment
export MONITOR_TEST_FOO=bar
MONITOR_TEST_QUOTED="hello world"
INVALID_LINE
`
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("MONITOR_TEST_FOO", "existing")
	t.Setenv("MONITOR_TEST_QUOTED", "")
	os.Unsetenv("MONITOR_TEST_QUOTED")

	n, err := loadEnvFile(envPath)
	if err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 variable set, got %d", n)
	}
	if got := os.Getenv("MONITOR_TEST_FOO"); got != "existing" {
		t.Fatalf("expected existing value preserved, got %q", got)
	}
	if got := os.Getenv("MONITOR_TEST_QUOTED"); got != "hello world" {
		t.Fatalf("expected quoted value loaded, got %q", got)
	}
}

func TestLoadEnvFilesOrder(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "monitor.env")
	if err := os.WriteFile(explicit, []byte("MONITOR_TEST_ORDER=explicit\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	home := filepath.Join(dir, "home")
	if err := os.MkdirAll(filepath.Join(home, ConfigDir), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	homeEnv := filepath.Join(home, ConfigDir, "env")
	if err := os.WriteFile(homeEnv, []byte("MONITOR_TEST_ORDER=home\nMONITOR_TEST_HOME_ONLY=1\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("MONITOR_ENV_FILE", explicit)
	t.Setenv("MONITOR_HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	for _, k := range []string{"MONITOR_TEST_ORDER", "MONITOR_TEST_HOME_ONLY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	files := EnvFiles()
	if len(files) != 3 || files[0] != explicit || files[2] != homeEnv {
		t.Fatalf("unexpected candidates: %v", files)
	}
	loaded := LoadEnvFiles()
	if len(loaded) != 2 || loaded[0] != explicit || loaded[1] != homeEnv {
		t.Fatalf("unexpected loaded files: %v", loaded)
	}
	if got := os.Getenv("MONITOR_TEST_ORDER"); got != "explicit" {
		t.Fatalf("expected explicit file to win, got %q", got)
	}
	if got := os.Getenv("MONITOR_TEST_HOME_ONLY"); got != "1" {
		t.Fatalf("expected home env applied, got %q", got)
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	if _, err := loadEnvFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
