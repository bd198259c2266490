package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	out := new(bytes.Buffer)
	RootCmd.SetOut(out)
	RootCmd.SetErr(out)
	RootCmd.SetArgs(args)
	require.NoError(t, RootCmd.Execute())
	return out.String()
}

func TestListCommand_YAML(t *testing.T) {
	fixtures := t.TempDir()
	legacy := filepath.Join(fixtures, "legacy")
	platform := filepath.Join(fixtures, "platform")
	writeFixture(t, filepath.Join(legacy, "machine"), "a.yaml",
		"identity: app.a\nname: App A\nversion: \"1.0\"\n")
	writeFixture(t, platform, "c.yaml",
		"family_name: Pkg.C_abc\ndisplay_name: Package C\nraw_name: PkgC\nversion: 1.2.3.4\n")

	out := execute(t, "list",
		"--cache-dir", t.TempDir(),
		"--legacy-dir", legacy,
		"--platform-dir", platform,
		"--format", "yaml")

	assert.Contains(t, out, "identity: app.a")
	assert.Contains(t, out, "identity: Pkg.C_abc")
	assert.Contains(t, out, "version: 1.2.3.4")
	assert.Contains(t, out, "installed_type: platform")
}

func TestRefreshCommand(t *testing.T) {
	fixtures := t.TempDir()
	legacy := filepath.Join(fixtures, "legacy")
	writeFixture(t, filepath.Join(legacy, "user"), "b.yaml",
		"identity: app.b\nname: App B\nversion: \"2.0\"\n")

	out := execute(t, "refresh",
		"--cache-dir", t.TempDir(),
		"--legacy-dir", legacy,
		"--platform-dir", filepath.Join(fixtures, "platform"))

	assert.Contains(t, out, "1 packages")
	assert.Contains(t, out, "recreated-persistent")
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, "sysinv")
}
