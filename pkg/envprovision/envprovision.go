// Package envprovision implements the environment provisioner (C5): a
// two-step process that creates an isolated runtime for an app and
// installs its declared dependencies into it, exactly as spec §4.5
// describes. Both steps invoke an external tool as a child process via
// pkg/procexec, matching the teacher's "merge stdout/stderr, judge by
// exit status alone" contract for shelling out.
package envprovision

import (
	"context"
	"path/filepath"

	"github.com/combust-labs/smartmob-agent/pkg/procexec"
	"github.com/pkg/errors"
)

// ErrEnvCreateFailed is returned when the isolation tool exits non-zero.
var ErrEnvCreateFailed = errors.New("failed creating isolated runtime")

// ErrDepsInstallFailed is returned when the dependency installer exits non-zero.
var ErrDepsInstallFailed = errors.New("failed installing dependencies")

// Tool names the external binaries used to provision environments. The
// defaults target a Python virtualenv + pip, matching the teacher's
// Flask/pip fixtures (spec scenario 1); a different deployment target
// substitutes its own tool names without touching the provisioner's
// control flow.
type Tool struct {
	EnvBinary     string
	EnvArgs       func(envDir string) []string
	InstallBinary string
	InstallArgs   func(envDir, requirementsFile string) []string
}

// DefaultTool provisions a Python 3 virtualenv and installs pip
// requirements into it. InstallBinary is the virtualenv's own pip,
// relative to envDir, which InstallDeps uses as the working directory.
var DefaultTool = Tool{
	EnvBinary: "python3",
	EnvArgs: func(envDir string) []string {
		return []string{"-m", "venv", envDir}
	},
	InstallBinary: "bin/pip",
	InstallArgs: func(envDir, requirementsFile string) []string {
		return []string{"install", "-r", requirementsFile}
	},
}

// Provisioner runs the two provisioning steps.
type Provisioner struct {
	Tool Tool
}

// New returns a Provisioner using tool.
func New(tool Tool) *Provisioner {
	return &Provisioner{Tool: tool}
}

// CreateEnv materialises an isolated runtime rooted at envDir.
func (p *Provisioner) CreateEnv(ctx context.Context, envDir string) ([]byte, error) {
	result, err := procexec.Run(ctx, "", p.Tool.EnvBinary, p.Tool.EnvArgs(envDir), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed spawning environment creation tool")
	}
	if result.ExitCode != 0 {
		return result.Output, ErrEnvCreateFailed
	}
	return result.Output, nil
}

// InstallDeps installs the application's declared dependencies from
// sourceDir/requirements.txt into envDir.
func (p *Provisioner) InstallDeps(ctx context.Context, envDir, sourceDir string) ([]byte, error) {
	requirementsFile := filepath.Join(sourceDir, "requirements.txt")
	result, err := procexec.Run(ctx, envDir, p.Tool.InstallBinary, p.Tool.InstallArgs(envDir, requirementsFile), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed spawning dependency installer")
	}
	if result.ExitCode != 0 {
		return result.Output, ErrDepsInstallFailed
	}
	return result.Output, nil
}
