/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/seckatie/urlhealth/internal/config"
	"github.com/seckatie/urlhealth/internal/core/probe"
)

func TestMonitorCmd_Flags(t *testing.T) {
	tests := []struct {
		name         string
		flagName     string
		defaultValue interface{}
		flagType     string
	}{
		{
			name:         "addr flag has correct default",
			flagName:     "addr",
			defaultValue: ":8000",
			flagType:     "string",
		},
		{
			name:         "db flag has correct default",
			flagName:     "db",
			defaultValue: "urlhealth.db",
			flagType:     "string",
		},
		{
			name:         "workers flag has correct default",
			flagName:     "workers",
			defaultValue: 8,
			flagType:     "int",
		},
		{
			name:         "probe-timeout flag has correct default",
			flagName:     "probe-timeout",
			defaultValue: time.Duration(0),
			flagType:     "duration",
		},
		{
			name:         "browser flag has correct default",
			flagName:     "browser",
			defaultValue: false,
			flagType:     "bool",
		},
		{
			name:         "chrome-path flag has correct default",
			flagName:     "chrome-path",
			defaultValue: "",
			flagType:     "string",
		},
		{
			name:         "headful flag has correct default",
			flagName:     "headful",
			defaultValue: false,
			flagType:     "bool",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var flag interface{}
			var err error

			switch tt.flagType {
			case "string":
				flag, err = monitorCmd.Flags().GetString(tt.flagName)
			case "int":
				flag, err = monitorCmd.Flags().GetInt(tt.flagName)
			case "bool":
				flag, err = monitorCmd.Flags().GetBool(tt.flagName)
			case "duration":
				flag, err = monitorCmd.Flags().GetDuration(tt.flagName)
			}

			if err != nil {
				t.Fatalf("Failed to get flag %s: %v", tt.flagName, err)
			}

			if flag != tt.defaultValue {
				t.Errorf("Flag %s: got %v, want %v", tt.flagName, flag, tt.defaultValue)
			}
		})
	}
}

func TestMonitorCmd_UsageOutput(t *testing.T) {
	var buf bytes.Buffer
	monitorCmd.SetOut(&buf)
	monitorCmd.SetErr(&buf)

	err := monitorCmd.Usage()
	if err != nil {
		t.Errorf("Usage() returned error: %v", err)
	}

	// Check that key flags are mentioned in usage
	expectedFlags := []string{"--addr", "--db", "--workers", "--probe-timeout", "--browser", "--chrome-path", "--headful"}
	for _, flag := range expectedFlags {
		if !bytes.Contains(buf.Bytes(), []byte(flag)) {
			t.Errorf("Expected usage to mention %s", flag)
		}
	}
}

func TestMonitorCmd_InheritsConfigFlag(t *testing.T) {
	// The monitor command should have access to the persistent --config flag from root
	flag := monitorCmd.InheritedFlags().Lookup("config")
	if flag == nil {
		t.Error("Expected monitor command to inherit --config flag from root")
	}
}

func TestApplyMonitorFlags(t *testing.T) {
	cmd := newConfigCmd()
	cmd.Flags().StringP("addr", "a", config.DefaultMonitorAddr, "")
	cmd.Flags().StringP("db", "d", config.DefaultDBPath, "")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers, "")
	cmd.Flags().Duration("probe-timeout", 0, "")
	cmd.Flags().Bool("browser", false, "")

	for name, value := range map[string]string{
		"addr":          ":9999",
		"db":            "other.db",
		"workers":       "3",
		"probe-timeout": "2s",
	} {
		if err := cmd.Flags().Set(name, value); err != nil {
			t.Fatalf("failed to set --%s: %v", name, err)
		}
	}

	cfg := config.Default()
	if err := applyMonitorFlags(cmd, cfg); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Monitor.Addr != ":9999" || cfg.Monitor.DB != "other.db" {
		t.Errorf("unexpected monitor config %+v", cfg.Monitor)
	}
	if cfg.Monitor.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Monitor.Workers)
	}
	if cfg.Monitor.ProbeTimeout != 2*time.Second {
		t.Errorf("expected 2s probe timeout, got %v", cfg.Monitor.ProbeTimeout)
	}
	if cfg.Monitor.Browser {
		t.Error("expected browser probing to stay off")
	}

	if err := cmd.Flags().Set("workers", "0"); err != nil {
		t.Fatal(err)
	}
	if err := applyMonitorFlags(cmd, cfg); err == nil {
		t.Error("expected an error for zero workers")
	}
}

func TestNewProber_HTTPByDefault(t *testing.T) {
	cfg := config.Default()
	prober, release, err := newProber(context.Background(), monitorCmd, cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer release()

	if _, ok := prober.(*probe.HTTPProber); !ok {
		t.Errorf("expected *probe.HTTPProber, got %T", prober)
	}
}

func TestInitDB(t *testing.T) {
	database, err := initDB(filepath.Join(t.TempDir(), "urlhealth.db"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := database.Close(); err != nil {
		t.Errorf("failed to close db: %v", err)
	}
}
