package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sampleConfig struct {
	Addr    string        `envconfig:"ADDR" default:":8080"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s"`
	Token   string        `envconfig:"TOKEN" required:"true"`
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

func TestExportEnvironmentKeepsProcessValues(t *testing.T) {
	t.Setenv("CFGTEST_TOKEN", "from-process")
	path := writeEnvFile(t, "CFGTEST_TOKEN=from-file\nCFGTEST_ADDR=:9090\n")
	t.Cleanup(func() { _ = os.Unsetenv("CFGTEST_ADDR") })

	if err := exportEnvironment(path); err != nil {
		t.Fatalf("exportEnvironment() error = %v", err)
	}
	if got := os.Getenv("CFGTEST_TOKEN"); got != "from-process" {
		t.Fatalf("process value overridden: %q", got)
	}
	if got := os.Getenv("CFGTEST_ADDR"); got != ":9090" {
		t.Fatalf("file value not exported: %q", got)
	}
}

func TestNewProcessesPrefix(t *testing.T) {
	t.Setenv(EnvFileVariable, writeEnvFile(t, "CFGNEW_TIMEOUT=2s\n"))
	t.Setenv("CFGNEW_TOKEN", "secret")
	t.Cleanup(func() { _ = os.Unsetenv("CFGNEW_TIMEOUT") })

	conf, err := New[sampleConfig]("CFGNEW")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Addr != ":8080" || conf.Timeout != 2*time.Second || conf.Token != "secret" {
		t.Fatalf("unexpected config: %#v", conf)
	}
}

func TestNewReportsMissingRequired(t *testing.T) {
	t.Setenv(EnvFileVariable, "")
	if _, err := New[sampleConfig]("CFGMISSING"); err == nil {
		t.Fatal("expected error for missing required value")
	}
}

func TestExportEnvironmentIfExistsIgnoresMissingFile(t *testing.T) {
	t.Parallel()

	if err := exportEnvironmentIfExists(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("expected nil for missing file, got %v", err)
	}
}
