package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentLogsFiltersAndOrders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lens.log")
	lines := `{"level":"INFO","timestamp":"t1","message":"first","module":"Credential"}
not json
{"level":"WARN","timestamp":"t2","message":"second","module":"Capture"}
{"level":"INFO","timestamp":"t3","message":"third","module":"Credential"}
`
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))

	l := &ZapLogger{filePath: path}

	entries, err := l.RecentLogs("Credential", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "third", entries[0].Message)
	assert.Equal(t, "first", entries[1].Message)
	assert.NotEmpty(t, entries[0].Id)

	entries, err = l.RecentLogs("", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "third", entries[0].Message)
}

func TestRecentLogsMissingFile(t *testing.T) {
	l := &ZapLogger{filePath: filepath.Join(t.TempDir(), "absent.log")}

	entries, err := l.RecentLogs("", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
