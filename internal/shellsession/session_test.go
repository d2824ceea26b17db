package shellsession

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	return Config{
		WorkspaceDirectory: t.TempDir(),
		SessionMaxLifetime: time.Hour,
		CommandMaxLifetime: 5 * time.Second,
		MaxOutputSize:      1 << 20,
		BeginOutputSize:    512,
		EndOutputSize:      512,
	}
}

func TestSession_RunEchoesOutput(t *testing.T) {
	s, err := Open("sess-1", testConfig(t))
	require.NoError(t, err)
	defer s.Close()

	result, err := s.Run(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.True(t, result.Successful)
	assert.Contains(t, result.Stdout, "hello")
}

func TestSession_WorkingDirectoryPersistsAcrossCommands(t *testing.T) {
	cfg := testConfig(t)
	s, err := Open("sess-2", cfg)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Run(context.Background(), "mkdir sub && cd sub")
	require.NoError(t, err)

	result, err := s.Run(context.Background(), "pwd")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(result.WorkingDirectory), "sub"))
}

func TestSession_TruncatesLargeOutput(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxOutputSize = 100
	cfg.BeginOutputSize = 40
	cfg.EndOutputSize = 40
	s, err := Open("sess-3", cfg)
	require.NoError(t, err)
	defer s.Close()

	result, err := s.Run(context.Background(), "yes x | head -c 5000")
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Greater(t, result.OriginalSize, 100)
}
