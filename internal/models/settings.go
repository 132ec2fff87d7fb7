package models

// IngressConfig holds settings for the local hook-event socket.
type IngressConfig struct {
	SocketPath string `yaml:"socket_path"` // empty = ~/.emberwatch/emberwatch.sock
}

// ObserverConfig holds settings for the WebSocket observer endpoint.
type ObserverConfig struct {
	BindAddr       string `yaml:"bind_addr"`        // host:port, port 0 for dynamic
	QueueSize      int    `yaml:"queue_size"`       // per-observer outbound queue capacity
	LogBufferLines int    `yaml:"log_buffer_lines"` // capacity of each bounded log stream
}

// AssistantConfig points at files owned by the monitored assistant tool.
type AssistantConfig struct {
	SettingsPath string `yaml:"settings_path"` // empty = ~/.claude/settings.json
}

// Settings represents global emberwatch settings.
// This corresponds to ~/.emberwatch/settings.yaml.
type Settings struct {
	Version   int             `yaml:"version"`
	Ingress   IngressConfig   `yaml:"ingress"`
	Observers ObserverConfig  `yaml:"observers"`
	Assistant AssistantConfig `yaml:"assistant"`
}

// NewSettings creates settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version: 1,
		Observers: ObserverConfig{
			BindAddr:       "127.0.0.1:0",
			QueueSize:      256,
			LogBufferLines: 500,
		},
	}
}
