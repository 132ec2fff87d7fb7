package models

import "time"

// DaemonInfo represents the daemon connection information.
// This corresponds to ~/.emberwatch/daemon.yaml.
type DaemonInfo struct {
	Version    int       `yaml:"version"`
	SocketPath string    `yaml:"socket_path"`
	Host       string    `yaml:"host"`
	Port       int       `yaml:"port"`
	PID        int       `yaml:"pid"`
	StartedAt  time.Time `yaml:"started_at"`
}

// NewDaemonInfo creates a new daemon info with current values.
func NewDaemonInfo(socketPath, host string, port, pid int) *DaemonInfo {
	return &DaemonInfo{
		Version:    1,
		SocketPath: socketPath,
		Host:       host,
		Port:       port,
		PID:        pid,
		StartedAt:  time.Now().UTC(),
	}
}
