// Package config provides configuration helpers for go-quadpilot commands.
// Values come from environment variables with sensible defaults; commands
// may override them with flags.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults for the simulator connection.
const (
	DefaultSimAddr        = "ws://127.0.0.1:23050/api"
	DefaultConnectRetries = 5
	DefaultConnectBackoff = 2 * time.Second
)

// Defaults for the capture loop.
const (
	DefaultCaptureFPS  = 30
	DefaultJPEGQuality = 85
)

// DefaultListenTimeout bounds each voice-loop wait for an utterance.
// Segmentation defaults (energy threshold, pause, phrase limit) live
// with the microphone buffer in pkg/voice.
const DefaultListenTimeout = 2 * time.Second

// Defaults for motion. Step is the distance of one directional command,
// altitudes are the take-off and landing targets in scene units.
const (
	DefaultMoveStep        = 0.2
	DefaultTakeoffAltitude = 1.0
	DefaultLandingAltitude = 0.3
)

// DefaultWebPort is the port the viewer web server listens on.
const DefaultWebPort = "8080"

// Env returns the value of the named environment variable, or def if unset.
func Env(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// EnvInt returns the named environment variable parsed as an int,
// or def if unset or malformed.
func EnvInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvFloat returns the named environment variable parsed as a float64,
// or def if unset or malformed.
func EnvFloat(name string, def float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// EnvDuration returns the named environment variable parsed as a
// time.Duration ("2s", "500ms"), or def if unset or malformed.
func EnvDuration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// SimAddr returns the simulator remote API address from SIM_ADDR.
func SimAddr() string {
	return Env("SIM_ADDR", DefaultSimAddr)
}

// GoogleAPIKey returns the Google Cloud Speech API key from
// GOOGLE_API_KEY, or empty if unset.
func GoogleAPIKey() string {
	return os.Getenv("GOOGLE_API_KEY")
}

// LogLevel returns the log level from LOG_LEVEL.
func LogLevel() string {
	return Env("LOG_LEVEL", "info")
}
