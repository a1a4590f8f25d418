package model

// DisconnectedPayload represents the notification sent before the server closes a live connection.
type DisconnectedPayload struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"` // "SHUTDOWN", "SLOW_CONSUMER"
}
