package main

import (
	"testing"
	"time"

	"github.com/kstaniek/spa-gateway/internal/busswitch"
	"github.com/kstaniek/spa-gateway/internal/mainboard"
)

func baseMainboardConfig() *appConfig {
	return &appConfig{
		serialDriver:    "tarm",
		baud:            115200,
		serialReadTO:    10 * time.Millisecond,
		busListenAddr:   ":8899",
		recvBufferSize:  busswitch.DefaultRecvBufferSize,
		recvQueueLen:    busswitch.DefaultRecvQueueLen,
		maxWriteBufSize: busswitch.DefaultMaxWriteBufSize,
		initDelay:       mainboard.DefaultInitDelay,
		ctsWindow:       mainboard.DefaultClearToSendWindow,
		ctsPolicy:       "always",
		maxCtsFailures:  mainboard.DefaultMaxCTSFailures,
		ctsTicksPerCyc:  mainboard.DefaultCTSTicksPerCycle,
		logFormat:       "text",
		logLevel:        "info",
	}
}

func TestConfigValidate_OK(t *testing.T) {
	if err := baseMainboardConfig().validate(); err != nil {
		t.Fatalf("expected ok got %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
		{"badLevel", func(c *appConfig) { c.logLevel = "nope" }},
		{"badDriver", func(c *appConfig) { c.serialDriver = "x" }},
		{"badBaud", func(c *appConfig) { c.baud = 0 }},
		{"badCtsPolicy", func(c *appConfig) { c.ctsPolicy = "x" }},
	}
	for _, tc := range tests {
		base := baseMainboardConfig()
		tc.mod(base)
		if err := base.validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestParseCtsPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    mainboard.Policy
		wantErr bool
	}{
		{"always", mainboard.PolicyAlways, false},
		{"for-multiple-clients", mainboard.PolicyForMultipleClients, false},
		{"never", mainboard.PolicyNever, false},
		{"bogus", mainboard.Policy(0), true},
	}
	for _, tc := range tests {
		got, err := parseCtsPolicy(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.in, got, tc.want)
		}
	}
}

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := baseMainboardConfig()
	t.Setenv("SPA_MAINBOARD_BAUD", "230400")
	t.Setenv("SPA_MAINBOARD_MDNS_ENABLE", "true")
	t.Setenv("SPA_MAINBOARD_SERIAL_READ_TIMEOUT", "100ms")
	t.Setenv("SPA_MAINBOARD_CTS_POLICY", "never")

	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.baud != 230400 {
		t.Fatalf("expected baud override, got %d", base.baud)
	}
	if !base.mdnsEnable {
		t.Fatalf("expected mdnsEnable true")
	}
	if base.serialReadTO != 100*time.Millisecond {
		t.Fatalf("expected serialReadTO 100ms got %v", base.serialReadTO)
	}
	if base.ctsPolicy != "never" {
		t.Fatalf("expected ctsPolicy never got %v", base.ctsPolicy)
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := baseMainboardConfig()
	base.baud = 115200
	t.Setenv("SPA_MAINBOARD_BAUD", "230400")
	if err := applyEnvOverrides(base, map[string]struct{}{"baud": {}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.baud != 115200 {
		t.Fatalf("expected baud unchanged 115200 got %d", base.baud)
	}
}

func TestApplyEnvOverrides_BadInt(t *testing.T) {
	base := baseMainboardConfig()
	t.Setenv("SPA_MAINBOARD_BAUD", "notint")
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad integer")
	}
}
