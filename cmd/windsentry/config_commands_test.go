package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigNewWritesSample(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "config.toml")

	out, _, err := runCLI(t, []string{"config", "new", "--path", target}, "")
	if err != nil {
		t.Fatalf("config new: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	content := string(data)
	for _, section := range []string{"[paths]", "[storage]", "[cloud]", "[workflow]"} {
		if !strings.Contains(content, section) {
			t.Fatalf("sample config missing %s section", section)
		}
	}

	if _, _, err := runCLI(t, []string{"config", "new", "--path", target}, ""); err == nil {
		t.Fatal("expected existing config to block overwrite")
	}

	if _, _, err := runCLI(t, []string{"config", "new", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config new --overwrite: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)
}

func TestConfigShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[storage]")
	requireContains(t, out, env.cfg.Storage.Bucket)
	requireContains(t, out, env.cfg.Cloud.Region)
	requireContains(t, out, "access_key set = yes")
}
