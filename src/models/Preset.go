package models

import (
	"bytes"
	"encoding/json"
)

// Preset is a named camera position. The field names follow the layout of
// the presets file: "token", "Name" and "position".
type Preset struct {
	Token    string    `json:"token"`
	Name     string    `json:"Name"`
	Position *Position `json:"position"`
}

// MarshalJSON writes an absent position as an empty object.
func (p Preset) MarshalJSON() ([]byte, error) {
	type raw struct {
		Token    string      `json:"token"`
		Name     string      `json:"Name"`
		Position interface{} `json:"position"`
	}
	r := raw{Token: p.Token, Name: p.Name, Position: struct{}{}}
	if p.Position != nil {
		r.Position = p.Position
	}
	return json.Marshal(r)
}

// UnmarshalJSON treats "{}", null and a missing position as absent.
func (p *Preset) UnmarshalJSON(data []byte) error {
	var r struct {
		Token    string          `json:"token"`
		Name     string          `json:"Name"`
		Position json.RawMessage `json:"position"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	p.Token = r.Token
	p.Name = r.Name
	p.Position = nil

	trimmed := bytes.TrimSpace(r.Position)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	var pos Position
	if err := json.Unmarshal(trimmed, &pos); err != nil {
		return err
	}
	p.Position = &pos
	return nil
}
