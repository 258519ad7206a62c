package configs

import (
	"os"

	"github.com/combust-labs/smartmob-agent/pkg/logging"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
)

const defaultLoggingEndpoint = "file:///dev/stdout"

// loggingEndpointEnvVar is consulted when --logging-endpoint is absent.
const loggingEndpointEnvVar = "SMARTMOB_LOGGING_ENDPOINT"

// LogConfig represents the agent's logging configuration: the debug
// logger used for operational messages, and the endpoint used to build
// the structured event Sink (C10).
type LogConfig struct {
	flagBase

	LogFormat       string
	UTC             bool
	LoggingEndpoint string
}

// NewLogginConfig returns a new logging configuration.
func NewLogginConfig() *LogConfig {
	return &LogConfig{}
}

// FlagSet returns an instance of the flag set for the configuration.
func (c *LogConfig) FlagSet() *pflag.FlagSet {
	if c.initFlagSet() {
		c.flagSet.StringVar(&c.LogFormat, "log-format", "kv", `Log format, one of "kv" or "json"`)
		c.flagSet.BoolVar(&c.UTC, "utc", false, "Render file:// log timestamps in UTC")
		c.flagSet.StringVar(&c.LoggingEndpoint, "logging-endpoint", "", "Logging sink endpoint (file://... or fluent://...); falls back to "+loggingEndpointEnvVar+", then "+defaultLoggingEndpoint)
	}
	return c.flagSet
}

// Validate validates the correctness of the configuration.
func (c *LogConfig) Validate() error {
	if c.LogFormat != "kv" && c.LogFormat != "json" {
		return errInvalidLogFormat(c.LogFormat)
	}
	return nil
}

// ResolvedEndpoint returns the configured endpoint, falling back to the
// environment variable and finally to the hard-coded default.
func (c *LogConfig) ResolvedEndpoint() string {
	if c.LoggingEndpoint != "" {
		return c.LoggingEndpoint
	}
	if fromEnv := os.Getenv(loggingEndpointEnvVar); fromEnv != "" {
		return fromEnv
	}
	return defaultLoggingEndpoint
}

// NewSink builds the structured event sink described by this configuration.
func (c *LogConfig) NewSink() (logging.Sink, error) {
	return logging.New(c.ResolvedEndpoint(), c.LogFormat == "json", c.UTC)
}

// NewLogger returns a new hclog-based debug logger for internal,
// non-structured-event component messages.
func (c *LogConfig) NewLogger(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.Info,
		JSONFormat: c.LogFormat == "json",
	})
}

type errInvalidLogFormat string

func (e errInvalidLogFormat) Error() string {
	return "invalid log format: " + string(e)
}
