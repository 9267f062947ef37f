package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogAppendsOneLinePerAction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	a, err := NewAuditLog(path)
	require.NoError(t, err)

	require.NoError(t, a.Append("reset", 42, time.Now()))
	require.NoError(t, a.Append("reset", 43, time.Now()))
	require.NoError(t, a.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(raw), "\n"))

	lines, err := ReadAuditLines(path)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"actor":42`)
	assert.Contains(t, lines[1], `"backup":"none"`)

	assert.Error(t, a.Append("reset", 1, time.Now()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("DEBUG").String())
	assert.Equal(t, "warn", parseLevel("warning").String())
	assert.Equal(t, "info", parseLevel("").String())
}

func TestReadAuditLinesMissing(t *testing.T) {
	lines, err := ReadAuditLines(filepath.Join(t.TempDir(), "none.log"))
	require.NoError(t, err)
	assert.Empty(t, lines)
}
