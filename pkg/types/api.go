package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Whether a monitoring session is running.
	// example: true
	Running bool `json:"running" example:"true"`
	// Access path of the current or last session (direct, broker, file, stdin).
	// example: direct
	Source string `json:"source,omitempty" example:"direct"`
	// Start of the current or last session (unix seconds).
	// example: 1700000000
	StartedAtUnix int64 `json:"started_at_unix,omitempty" example:"1700000000"`
	// Server time in unix seconds.
	// example: 1700000600
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000600"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Counters of the current or last session.
	PipelineCounters
	// Last equipped item observed.
	// example: Nova
	LastItem string `json:"last_item,omitempty" example:"Nova"`
	// Last zone observed.
	// example: WINDY
	LastZone string `json:"last_zone,omitempty" example:"WINDY"`
	// Error that ended the last session, if any.
	LastError string `json:"last_error,omitempty"`
}

// SessionResponse is returned by POST /session/start and /session/stop.
type SessionResponse struct {
	// example: true
	Running bool `json:"running" example:"true"`
	// example: direct
	Source string `json:"source,omitempty" example:"direct"`
}

// SettingsResponse is returned by GET and PUT /settings.
type SettingsResponse struct {
	// Discord incoming-webhook endpoint.
	// example: https://discord.com/api/webhooks/123/abc
	WebhookURL string `json:"webhook_url" example:"https://discord.com/api/webhooks/123/abc"`
	// Private server link shown on zone notifications.
	// example: https://www.roblox.com/share?code=abc&type=Server
	PrivateServerURL string `json:"private_server_url" example:"https://www.roblox.com/share?code=abc&type=Server"`
	// Whether a session is running with an older snapshot of these values.
	// example: false
	PendingRestart bool `json:"pending_restart" example:"false"`
}

// SettingsRequest updates settings. Omitted fields keep their current value.
type SettingsRequest struct {
	WebhookURL       *string `json:"webhook_url,omitempty"`
	PrivateServerURL *string `json:"private_server_url,omitempty"`
}
