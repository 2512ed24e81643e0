package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hldswatch.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRoot_RequiresConfigFile(t *testing.T) {
	_, err := execute(t)

	require.Error(t, err)
	assert.Equal(t, "usage: hldswatch <configfile>", err.Error())
}

func TestRoot_RejectsExtraArgs(t *testing.T) {
	_, err := execute(t, "a.ini", "b.ini")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage:")
}

func TestRoot_RefusesRoot(t *testing.T) {
	orig := geteuid
	geteuid = func() int { return 0 }
	t.Cleanup(func() { geteuid = orig })

	_, err := execute(t, "does-not-matter.ini")

	assert.ErrorIs(t, err, errRunAsRoot)
}

func TestRoot_MissingConfigFile(t *testing.T) {
	orig := geteuid
	geteuid = func() int { return 1000 }
	t.Cleanup(func() { geteuid = orig })

	_, err := execute(t, filepath.Join(t.TempDir(), "missing.ini"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file given does not exist")
}

func TestValidate_PrintsSummary(t *testing.T) {
	t.Setenv("HLDSWATCH_WORKERS", "2")
	path := writeConfig(t, `
[203.0.113.5:27015]
engine = source
autorestart = no
command = /usr/local/bin/page-admin css

[203.0.113.6:27016]
engine = goldsource
autorestart = 0
wake_mac = 00:11:22:33:44:55
`)

	out, err := execute(t, "validate", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid!")
	assert.Contains(t, out, "Workers: 2")
	assert.Contains(t, out, "Servers (2):")
	assert.Contains(t, out, `203.0.113.5:27015 (source): run "/usr/local/bin/page-admin css"`)
	assert.Contains(t, out, "203.0.113.6:27016 (goldsrc): log only")
	assert.Contains(t, out, "Wake-on-LAN 00:11:22:33:44:55 via 255.255.255.255")
}

func TestValidate_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `
[not-an-address]
engine = source
autorestart = no
`)

	_, err := execute(t, "validate", path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-an-address")
}

func TestValidate_NoServers(t *testing.T) {
	path := writeConfig(t, "; nothing configured\n")

	_, err := execute(t, "validate", path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no servers configured")
}
