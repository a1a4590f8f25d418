package model

// ServerVersion is reported to live clients on connect. Overridden at build time by the cmd package.
var ServerVersion = "0.0.0"

// ConnectedPayload represents the data sent to the client upon successful connection.
type ConnectedPayload struct {
	Ok            bool   `json:"ok"`
	ConnectionID  string `json:"connection_id"`
	UserID        string `json:"user_id"`
	ServerVersion string `json:"server_version"`
}

// SubscriptionPayload acknowledges a subscribe or unsubscribe request.
type SubscriptionPayload struct {
	Channel string `json:"channel"`
	Active  bool   `json:"active"`
}

// ErrorPayload reports a malformed client frame. Publish failures are never reported.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
