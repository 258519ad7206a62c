package configs

import (
	"fmt"

	"github.com/spf13/pflag"
)

// ServerConfig provides the HTTP server bind address.
type ServerConfig struct {
	flagBase

	Host string
	Port int
}

// NewServerConfig returns a new instance of the configuration.
func NewServerConfig() *ServerConfig {
	return &ServerConfig{}
}

// FlagSet returns an instance of the flag set for the configuration.
func (c *ServerConfig) FlagSet() *pflag.FlagSet {
	if c.initFlagSet() {
		c.flagSet.StringVar(&c.Host, "host", "0.0.0.0", "Address to bind the HTTP server to")
		c.flagSet.IntVar(&c.Port, "port", 8080, "Port to bind the HTTP server to")
	}
	return c.flagSet
}

// Validate validates the correctness of the configuration.
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// Addr returns the host:port pair suitable for http.Server.Addr.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
