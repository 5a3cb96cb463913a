package main

import (
	"testing"
	"time"

	"github.com/kstaniek/spa-gateway/internal/busswitch"
)

func baseGatewayConfig() *appConfig {
	return &appConfig{
		serialDev:       "/dev/null",
		recvBufferSize:  busswitch.DefaultRecvBufferSize,
		recvQueueLen:    busswitch.DefaultRecvQueueLen,
		maxWriteBufSize: busswitch.DefaultMaxWriteBufSize,
		serialDriver:    "tarm",
		baud:            115200,
		serialReadTO:    10 * time.Millisecond,
		name:            "spa-gateway-test",
		udpListenAddr:   "0.0.0.0:30303",
		tcpListenAddr:   "0.0.0.0:4257",
		logFormat:       "text",
		logLevel:        "info",
	}
}

func TestConfigValidate_OK(t *testing.T) {
	if err := baseGatewayConfig().validate(); err != nil {
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
		{"noBusSource", func(c *appConfig) { c.serialDev = ""; c.busDialAddr = "" }},
		{"badMac", func(c *appConfig) { c.mac = "not-a-mac" }},
	}
	for _, tc := range tests {
		base := baseGatewayConfig()
		tc.mod(base)
		if err := base.validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestConfigValidate_BusDialWithoutSerial(t *testing.T) {
	c := baseGatewayConfig()
	c.serialDev = ""
	c.busDialAddr = "127.0.0.1:8899"
	if err := c.validate(); err != nil {
		t.Fatalf("expected ok got %v", err)
	}
}

func TestParseMAC(t *testing.T) {
	mac, err := parseMAC("AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	if mac != want {
		t.Fatalf("got %v want %v", mac, want)
	}

	if _, err := parseMAC("AA:BB:CC"); err == nil {
		t.Fatalf("expected error for short mac")
	}
	if _, err := parseMAC("AA:BB:CC:DD:EE:ZZ"); err == nil {
		t.Fatalf("expected error for non-hex octet")
	}
}

func TestRandomMAC_LocallyAdministeredUnicast(t *testing.T) {
	mac := randomMAC()
	if mac[0]&0x01 != 0 {
		t.Fatalf("expected unicast bit clear, got %02X", mac[0])
	}
	if mac[0]&0x02 == 0 {
		t.Fatalf("expected locally-administered bit set, got %02X", mac[0])
	}
}

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := baseGatewayConfig()
	t.Setenv("SPA_GATEWAY_BAUD", "230400")
	t.Setenv("SPA_GATEWAY_MDNS_ENABLE", "true")
	t.Setenv("SPA_GATEWAY_LOCAL_TOPSIDE", "true")
	t.Setenv("SPA_GATEWAY_NAME", "override-name")

	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.baud != 230400 {
		t.Fatalf("expected baud override, got %d", base.baud)
	}
	if !base.mdnsEnable {
		t.Fatalf("expected mdnsEnable true")
	}
	if !base.localTopside {
		t.Fatalf("expected localTopside true")
	}
	if base.name != "override-name" {
		t.Fatalf("expected name override, got %s", base.name)
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := baseGatewayConfig()
	base.baud = 115200
	t.Setenv("SPA_GATEWAY_BAUD", "230400")
	if err := applyEnvOverrides(base, map[string]struct{}{"baud": {}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.baud != 115200 {
		t.Fatalf("expected baud unchanged 115200 got %d", base.baud)
	}
}

func TestApplyEnvOverrides_BadInt(t *testing.T) {
	base := baseGatewayConfig()
	t.Setenv("SPA_GATEWAY_BAUD", "notint")
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad integer")
	}
}
