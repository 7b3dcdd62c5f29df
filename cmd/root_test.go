package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"portico/internal/bootstrap"
	"portico/internal/idp"
	"portico/internal/session"
)

func TestSetVersion(t *testing.T) {
	testVersion := "1.2.3-test"
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	SetVersion(testVersion)
	if rootCmd.Version != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, rootCmd.Version)
	}
	if GetVersion() != testVersion {
		t.Errorf("Expected GetVersion to return %s, got %s", testVersion, GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "portico" {
		t.Errorf("Expected Use to be 'portico', got %s", rootCmd.Use)
	}
	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}
	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}
	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"session invalid", session.ErrSessionInvalid, ExitCodeAuthRequired},
		{"wrapped session invalid", fmt.Errorf("bootstrap: %w", session.ErrSessionInvalid), ExitCodeAuthRequired},
		{"no tenant", bootstrap.ErrNoTenant, ExitCodeAuthRequired},
		{"missing code", idp.ErrMissingCode, ExitCodeAuthFailed},
		{"generic", errors.New("boom"), ExitCodeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestVersionCommandExecution(t *testing.T) {
	testVersion := "1.2.3-test"
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()
	rootCmd.Version = testVersion

	versionCmd := newVersionCmd()
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)

	if !strings.Contains(buf.String(), testVersion) {
		t.Errorf("Expected output to contain %s, got %s", testVersion, buf.String())
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	expected := []string{"version", "self-update", "login", "logout", "status", "modules", "bootstrap"}

	registered := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}

	for _, name := range expected {
		if !registered[name] {
			t.Errorf("Expected subcommand %q to be registered", name)
		}
	}
}
