package discord

import (
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

type MessageReference struct {
	MessageID string `json:"message_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

type Message struct {
	ID        string            `json:"id"`
	ChannelID string            `json:"channel_id,omitempty"`
	Author    User              `json:"author"`
	Content   string            `json:"content"`
	Timestamp string            `json:"timestamp,omitempty"`
	Reference *MessageReference `json:"message_reference,omitempty"`
}

type sendMessageRequest struct {
	Content   string            `json:"content"`
	TTS       bool              `json:"tts"`
	Reference *MessageReference `json:"message_reference,omitempty"`
}

type apiErrorBody struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type RequestError struct {
	StatusCode int
	Code       int
	Message    string
	Body       string
}

func (e *RequestError) Error() string {
	if e == nil {
		return "discord request failed"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if e.StatusCode > 0 {
		if msg != "" {
			return fmt.Sprintf("discord http %d: %s", e.StatusCode, msg)
		}
		return fmt.Sprintf("discord http %d", e.StatusCode)
	}
	if msg != "" {
		return "discord: " + msg
	}
	return "discord request failed"
}

// ParseTimestamp accepts the timestamp shapes the platform has been seen
// emitting: RFC 3339 with offset or trailing Z, and offset-less local
// forms which are taken as UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	bare := strings.TrimSuffix(raw, "Z")
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
	} {
		if t, err := time.ParseInLocation(layout, bare, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
