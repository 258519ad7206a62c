// Package manifest implements the process-type manifest loader (C4): a
// small line-oriented grammar in the spirit of the teacher's own
// line-oriented instruction parser (pkg/build/commands), but for
// Procfile's "<type>: <command>" grammar rather than Dockerfile
// instructions.
package manifest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoManifest is returned when source_dir/Procfile is missing.
var ErrNoManifest = errors.New("no Procfile found")

// ErrUnknownProcessType is returned when the requested type isn't declared.
type ErrUnknownProcessType struct {
	ProcessType string
}

func (e *ErrUnknownProcessType) Error() string {
	return fmt.Sprintf("unknown process type %q", e.ProcessType)
}

// ProcessType is one parsed Procfile entry.
type ProcessType struct {
	Command string
	Env     map[string]string
}

// Manifest maps a process-type name to its command template.
type Manifest map[string]ProcessType

// Load reads sourceDir/Procfile and parses it into a Manifest. Lines are
// of the form "<type>: <command>"; blank lines and lines starting with
// "#" are ignored.
func Load(sourceDir string) (Manifest, error) {
	path := filepath.Join(sourceDir, "Procfile")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoManifest
		}
		return nil, errors.Wrap(err, "failed opening Procfile")
	}
	defer f.Close()

	result := Manifest{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		typeName, command, err := parseLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "Procfile line %d", lineNo)
		}
		result[typeName] = ProcessType{Command: command, Env: map[string]string{}}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed reading Procfile")
	}
	return result, nil
}

func parseLine(line string) (string, string, error) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("missing ':' separator in %q", line)
	}
	typeName := strings.TrimSpace(line[:idx])
	command := strings.TrimSpace(line[idx+1:])
	if typeName == "" {
		return "", "", fmt.Errorf("empty process type in %q", line)
	}
	if command == "" {
		return "", "", fmt.Errorf("empty command in %q", line)
	}
	return typeName, command, nil
}

// Lookup resolves processType against the manifest.
func (m Manifest) Lookup(processType string) (ProcessType, error) {
	entry, ok := m[processType]
	if !ok {
		return ProcessType{}, &ErrUnknownProcessType{ProcessType: processType}
	}
	return entry, nil
}
