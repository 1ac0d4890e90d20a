package installer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBuildVersionStripsTrailingTenChars(t *testing.T) {
	dir := t.TempDir()
	// Real build.version lines look like "1.25.94.0+++Depot+Release-..." with
	// the last 10 characters being a build-timestamp suffix to discard.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.version"), []byte("1.25.94.01234567890\n"), 0644))

	got := ReadBuildVersion(dir)
	assert.Equal(t, "1.25.94.0", got)
}

func TestReadBuildVersionMissingFile(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", ReadBuildVersion(dir))
}

func TestVersionGreater(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"1.25.95", "1.25.94", true},
		{"1.25.94", "1.25.94", false},
		{"1.9.0", "1.10.0", false},
		{"2.0.0", "1.99.99", true},
	}
	for _, c := range cases {
		got, err := versionGreater(c.a, c.b)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "versionGreater(%s, %s)", c.a, c.b)
	}
}

func TestVersionGreaterInvalid(t *testing.T) {
	_, err := versionGreater("not-a-version", "1.0.0")
	require.Error(t, err)
}
