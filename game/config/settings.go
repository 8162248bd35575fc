package config

import (
	"fmt"
	"net"
	"strconv"

	"github.com/caarlos0/env/v11"
)

// Settings are the server options read from the environment
type Settings struct {
	Host        string `env:"GSP_HOST" envDefault:"localhost"`
	Port        int    `env:"GSP_PORT" envDefault:"8080"`
	ConfigDir   string `env:"GSP_CONFIG_DIR" envDefault:"configs"`
	Debug       bool   `env:"GSP_DEBUG" envDefault:"false"`
	NgrokToken  string `env:"NGROK_AUTHTOKEN"`
	NgrokDomain string `env:"NGROK_DOMAIN"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadSettings reads Settings from the environment
func LoadSettings() (Settings, error) {
	var s Settings
	if err := ParseEnv(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Addr returns the host:port the HTTP server listens on
func (s Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// UseNgrok reports whether a tunnel should be opened
func (s Settings) UseNgrok() bool {
	return s.NgrokToken != ""
}
