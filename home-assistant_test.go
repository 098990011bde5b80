package main

import (
	"path/filepath"
	"testing"

	"github.com/RobertMe/cec-rpc/hdmicec"
)

func TestHandleEnabledCommand(t *testing.T) {
	settings := hdmicec.NewSettings(filepath.Join(t.TempDir(), "cecData.json"))
	service := hdmicec.NewService(&stubDriver{}, settings)
	bridge := &HomeAssistantBridge{service: service}

	bridge.handleEnabledCommand("hdmicec/enabled/set", "ON")
	if !service.Enabled() || !settings.Load() {
		t.Fatal("expected CEC to be enabled and persisted")
	}

	bridge.handleEnabledCommand("hdmicec/enabled/set", "toggle")
	if !service.Enabled() {
		t.Fatal("unknown command must be ignored")
	}

	bridge.handleEnabledCommand("hdmicec/enabled/set", "off\n")
	if service.Enabled() || settings.Load() {
		t.Fatal("expected CEC to be disabled and persisted")
	}
}
