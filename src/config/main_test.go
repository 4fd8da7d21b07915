package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/huyquang-bka/ptz-chp/src/models"
)

func TestOpenConfigWithoutFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	config, err := OpenConfig(dir)
	if err != nil {
		t.Fatalf("OpenConfig: %v", err)
	}
	if config.PTZ.TickIntervalMs != 10 || config.PTZ.BaseStep != 0.5 {
		t.Errorf("unexpected motion defaults: %+v", config.PTZ)
	}
	if config.API.ClientID != "EPS" {
		t.Errorf("expected default client id, got %q", config.API.ClientID)
	}
	if config.Presets.File != filepath.Join(dir, "data", "presets.json") {
		t.Errorf("presets file not resolved against config dir: %s", config.Presets.File)
	}
}

func TestOpenConfigMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	custom := models.Config{
		API:  models.APIConfig{BaseURL: "http://backend:5000"},
		MQTT: models.MQTTConfig{Broker: "broker.local", Topic: "events"},
		PTZ:  models.PTZConfig{FunctionID: 7},
	}
	if err := StoreConfig(dir, custom); err != nil {
		t.Fatalf("StoreConfig: %v", err)
	}

	config, err := OpenConfig(dir)
	if err != nil {
		t.Fatalf("OpenConfig: %v", err)
	}
	if config.API.BaseURL != "http://backend:5000" || config.API.LoginRoute != "/token/auth" {
		t.Errorf("api not merged: %+v", config.API)
	}
	if config.MQTT.Port != 1883 || config.MQTT.Broker != "broker.local" {
		t.Errorf("mqtt not merged: %+v", config.MQTT)
	}
	if config.PTZ.FunctionID != 7 || config.PTZ.OnvifPort != 80 {
		t.Errorf("ptz not merged: %+v", config.PTZ)
	}
}

func TestOpenConfigRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data", "config")
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, "config.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenConfig(dir); err == nil {
		t.Fatal("expected an error for an invalid config file")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PTZ_MQTT_BROKER", "10.0.0.5")
	t.Setenv("PTZ_MQTT_PORT", "8883")
	t.Setenv("PTZ_FUNCTION_ID", "not-a-number")
	t.Setenv("PTZ_RECALL_SPEED", "0.8")

	config := Defaults()
	OverrideWithEnvironmentVariables(&config)
	if config.MQTT.Broker != "10.0.0.5" || config.MQTT.Port != 8883 {
		t.Errorf("mqtt overrides not applied: %+v", config.MQTT)
	}
	if config.PTZ.FunctionID != 2 {
		t.Errorf("invalid number should be ignored, got %d", config.PTZ.FunctionID)
	}
	if config.PTZ.RecallSpeed != 0.8 {
		t.Errorf("recall speed override not applied: %v", config.PTZ.RecallSpeed)
	}
}
