package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateCommand(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(good, []byte("telegram:\n  token: abc\nscheduler:\n  timezone: UTC\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("telegram:\n  token: \"\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"validate", "--config", good})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate good: %v", err)
	}
	if !strings.Contains(out.String(), "config ok") || !strings.Contains(out.String(), "timezone UTC") {
		t.Fatalf("output = %q", out.String())
	}

	cmd = rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", "-c", bad})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "telegram.token") {
		t.Fatalf("validate bad: %v", err)
	}
}
