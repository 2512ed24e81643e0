package models

import (
	"fmt"
	"net"
	"strconv"
)

// Engine is the protocol family a monitored server speaks.
type Engine string

const (
	EngineGoldSource Engine = "goldsrc"
	EngineSource     Engine = "source"
)

// Launcher returns the executable expected in the start directory of this engine.
func (e Engine) Launcher() string {
	switch e {
	case EngineGoldSource:
		return "hlds_run"
	case EngineSource:
		return "srcds_run"
	default:
		return ""
	}
}

// Valid reports whether e is a supported engine.
func (e Engine) Valid() bool {
	return e == EngineGoldSource || e == EngineSource
}

// TargetAddress identifies a monitored server.
type TargetAddress struct {
	Host string
	Port int
}

// String returns the address in host:port form.
func (a TargetAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ParseTargetAddress splits a host:port string.
func ParseTargetAddress(s string) (TargetAddress, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return TargetAddress{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return TargetAddress{}, fmt.Errorf("invalid port in %q: %w", s, err)
	}
	return TargetAddress{Host: host, Port: int(port)}, nil
}

// TargetConfig holds the validated per-server settings.
type TargetConfig struct {
	Engine      Engine
	AutoRestart bool
	ScreenName  string     // session name, required when AutoRestart is set
	StartDir    string     // directory containing the launcher, required when AutoRestart is set
	Command     string     // start command with AutoRestart, custom fallback command otherwise
	Wake        *WOLConfig // nil if not configured
	Remote      *SSHConfig // nil for servers running on this host
}

// StartCommand returns the command launched inside the session on restart.
func (c TargetConfig) StartCommand() string {
	if !c.AutoRestart {
		return ""
	}
	return c.Command
}

// FallbackCommand returns the custom command run when the server is down and
// auto restart is disabled.
func (c TargetConfig) FallbackCommand() string {
	if c.AutoRestart {
		return ""
	}
	return c.Command
}

// Target is one monitored server.
type Target struct {
	Address TargetAddress
	Config  TargetConfig
}
