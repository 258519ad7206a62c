package configs

import (
	"fmt"

	"github.com/spf13/pflag"
)

// WorkspaceConfig provides the workspace root directory (C1).
type WorkspaceConfig struct {
	flagBase

	Root string
}

// NewWorkspaceConfig returns a new instance of the configuration.
func NewWorkspaceConfig() *WorkspaceConfig {
	return &WorkspaceConfig{}
}

// FlagSet returns an instance of the flag set for the configuration.
func (c *WorkspaceConfig) FlagSet() *pflag.FlagSet {
	if c.initFlagSet() {
		c.flagSet.StringVar(&c.Root, "workspace-root", "./.smartmob", "Workspace root directory (archives/, sources/, envs/)")
	}
	return c.flagSet
}

// Validate validates the correctness of the configuration.
func (c *WorkspaceConfig) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("workspace root cannot be empty")
	}
	return nil
}
