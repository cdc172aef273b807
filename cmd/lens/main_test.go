package main

import (
	"bytes"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedJar(t *testing.T) {
	origin, _ := url.Parse("http://localhost:8080")

	jar, err := seedJar(origin, `token=abc; user=%7B%22role%22%3A%22Staff%22%7D`)
	require.NoError(t, err)

	got := map[string]string{}
	for _, c := range jar.Cookies(origin) {
		got[c.Name] = c.Value
	}
	assert.Equal(t, "abc", got["token"])
	assert.Equal(t, "%7B%22role%22%3A%22Staff%22%7D", got["user"])

	jar, err = seedJar(origin, "")
	require.NoError(t, err)
	assert.Empty(t, jar.Cookies(origin))
}

func TestSanitizeCommand(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "index.js")
	require.NoError(t, os.WriteFile(app, []byte(`if (import.meta.hot) import.meta.hot.accept()`), 0o644))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"sanitize", "--dir", root, "--dry-run"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), app)

	raw, _ := os.ReadFile(app)
	assert.Equal(t, `if (import.meta.hot) import.meta.hot.accept()`, string(raw))

	out.Reset()
	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"sanitize", "--dir", root})
	require.NoError(t, cmd.Execute())

	raw, _ = os.ReadFile(app)
	assert.Equal(t, `if (false) false.accept()`, string(raw))
}
