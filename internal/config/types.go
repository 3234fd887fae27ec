package config

// Server holds connection settings for the synde backend.
type Server struct {
	URL       string `yaml:"url"`
	AuthToken string `yaml:"auth_token,omitempty"`
}

// Stream holds tuning for the workflow event stream and its reconnection
// policy.
type Stream struct {
	// BaseDelayMS is the first reconnect delay; each further attempt doubles it.
	BaseDelayMS int `yaml:"base_delay_ms"`
	// MaxReconnectAttempts bounds consecutive reconnect attempts before the
	// subscription is failed with a connectivity message.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`
	// IdleTimeoutMS closes a connection that has delivered no event (not even
	// a heartbeat) for this long, forcing a reconnect. 0 disables the check.
	IdleTimeoutMS int `yaml:"idle_timeout_ms"`
}

// Notify holds notification settings for terminal workflow failures.
type Notify struct {
	Bell          bool   `yaml:"bell"`
	Desktop       bool   `yaml:"desktop"`
	WebhookURL    string `yaml:"webhook_url,omitempty"`
	WebhookFormat string `yaml:"webhook_format,omitempty"`
}

// Webhook format values.
const (
	WebhookFormatGeneric = "generic"
	WebhookFormatSlack   = "slack"
)

// Config represents the ~/.synde/config.yaml file.
type Config struct {
	Server   Server `yaml:"server"`
	Stream   Stream `yaml:"stream"`
	Notify   Notify `yaml:"notify"`
	LogLevel string `yaml:"log_level"`
	// StateDir overrides where session state is recorded. Empty means
	// ~/.synde.
	StateDir string `yaml:"state_dir,omitempty"`
}
