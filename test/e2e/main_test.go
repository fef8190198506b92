package e2e

import (
	"os"
	"os/exec"
	"testing"
)

var twinBin string

func TestMain(m *testing.M) {
	twinBin = envOrLookPath("TWIN_BIN", "twin")
	os.Exit(m.Run())
}

func envOrLookPath(envVar, name string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return ""
}

func requireTwin(t *testing.T) {
	t.Helper()
	if twinBin == "" {
		t.Skip("twin binary not available (set TWIN_BIN or add to PATH)")
	}
}
