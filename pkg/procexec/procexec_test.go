package procexec

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesOutputAndZeroExit(t *testing.T) {
	result, err := Run(context.Background(), "", "echo", []string{"hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello", strings.TrimSpace(string(result.Output)))
}

func TestRunReportsNonZeroExitWithoutError(t *testing.T) {
	result, err := Run(context.Background(), "", "sh", []string{"-c", "exit 7"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, result.ExitCode)
}

func TestRunSpawnFailureIsError(t *testing.T) {
	_, err := Run(context.Background(), "", "definitely-not-a-real-binary", nil, nil)
	require.Error(t, err)
}
