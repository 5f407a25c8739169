package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"transcriber/internal/config"
	"transcriber/internal/testsupport"
)

const (
	testUser     = "alice"
	testPassword = "hunter2"
	testToken    = "token-abcdef123456"
)

type cliTestEnv struct {
	cfg        *config.Config
	backend    *testsupport.FakeBackend
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	backend := testsupport.NewFakeBackend(t, testUser, testPassword, testToken)
	cfg := testsupport.NewConfig(t,
		testsupport.WithBackendURL(backend.URL()),
		testsupport.WithStorageBackend(config.StorageFile),
	)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("TRANSCRIBER_BACKEND_URL", "")
	t.Setenv("TRANSCRIBER_USERNAME", "")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		backend:    backend,
		configPath: configPath,
		baseDir:    base,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	flags := []string{}
	if env != nil && env.configPath != "" {
		flags = append(flags, "--config", env.configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func login(t *testing.T, env *cliTestEnv) {
	t.Helper()
	if _, _, err := runCLI(t, env, testPassword+"\n", "login", "--username", testUser, "--password-stdin"); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
