package models

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
)

// EventPayload is published on the event topic for every uploaded
// snapshot.
type EventPayload struct {
	CheckpointID int      `json:"checkpointId"`
	ImagePaths   []string `json:"imagePaths"`
}

// Message is an inbound message on the subscribe topic after its base64
// envelope has been removed.
type Message struct {
	Mid        string                 `json:"mid"`
	Topic      string                 `json:"topic"`
	ReceivedAt int64                  `json:"received_at"`
	Body       map[string]interface{} `json:"body"`
}

// DecodeMessage unwraps a base64 encoded JSON document. A missing mid is
// filled in with a fresh UUID so handlers can correlate log lines.
func DecodeMessage(topic string, raw []byte) (Message, error) {
	msg := Message{Topic: topic, ReceivedAt: time.Now().Unix()}
	decoded, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(decoded, &msg.Body); err != nil {
		return msg, err
	}
	if mid, ok := msg.Body["mid"].(string); ok && mid != "" {
		msg.Mid = mid
	} else {
		u, err := uuid.NewV4()
		if err == nil {
			msg.Mid = u.String()
		}
	}
	return msg, nil
}

// EncodeMessage is the inverse of DecodeMessage.
func EncodeMessage(body interface{}) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return []byte(base64.StdEncoding.EncodeToString(data)), nil
}
