package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPresetEmptyPositionIsAbsent(t *testing.T) {
	var p Preset
	if err := json.Unmarshal([]byte(`{"token":"t1","Name":"Gate","position":{}}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Position != nil {
		t.Errorf("expected absent position, got %+v", p.Position)
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"position":{}`) {
		t.Errorf("expected empty position object, got %s", data)
	}
}

func TestPresetZeroPositionIsPresent(t *testing.T) {
	var p Preset
	if err := json.Unmarshal([]byte(`{"token":"t1","Name":"Home","position":{"pan":0,"tilt":0,"zoom":0}}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Position == nil {
		t.Fatal("a position at the origin must not be treated as absent")
	}
}

func TestClampSpeed(t *testing.T) {
	cases := map[int]int{-3: 1, 0: 1, 1: 1, 5: 5, 10: 10, 11: 10, 100: 10}
	for in, want := range cases {
		if got := ClampSpeed(in); got != want {
			t.Errorf("ClampSpeed(%d) = %d, want %d", in, got, want)
		}
	}
	if m := SpeedMultiplier(10); m != 2 {
		t.Errorf("SpeedMultiplier(10) = %v, want 2", m)
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := ParseDirection("zoom_in"); err != nil || d != DirectionZoomIn {
		t.Errorf("ParseDirection(zoom_in) = %v, %v", d, err)
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("expected an error for an unknown direction")
	}
}

func TestDecodeMessage(t *testing.T) {
	raw, err := EncodeMessage(map[string]interface{}{"mid": "abc", "action": "ptz"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg, err := DecodeMessage("container", raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Mid != "abc" || msg.Body["action"] != "ptz" || msg.Topic != "container" {
		t.Errorf("unexpected message %+v", msg)
	}

	if _, err := DecodeMessage("container", []byte("not base64!")); err == nil {
		t.Error("expected an error for invalid base64")
	}
}

func TestAuthorizationHeader(t *testing.T) {
	if h := (AuthSession{}).Authorization(); h != "" {
		t.Errorf("expected no header without token, got %q", h)
	}
	if h := (AuthSession{AccessToken: "abc"}).Authorization(); h != "Bearer abc" {
		t.Errorf("got %q", h)
	}
}
