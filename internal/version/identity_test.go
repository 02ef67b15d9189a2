package version

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_BuildDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "firmware.bin")
	content := []byte("firmware image")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	id := &Identity{Path: path}
	got, err := id.BuildDigest()
	require.NoError(t, err)

	want := sha256.Sum256(content)
	assert.Equal(t, want[:], got)

	// Later changes to the file are not observed; the digest is read once.
	require.NoError(t, os.WriteFile(path, []byte("another image"), 0o600))
	again, err := id.BuildDigest()
	require.NoError(t, err)
	assert.Equal(t, want[:], again)
}

func TestIdentity_Missing(t *testing.T) {
	id := &Identity{Path: filepath.Join(t.TempDir(), "missing")}
	_, err := id.BuildDigest()
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestIdentity_Executable(t *testing.T) {
	got, err := (&Identity{}).BuildDigest()
	require.NoError(t, err)
	assert.Len(t, got, sha256.Size)
}

func TestStaticIdentity(t *testing.T) {
	_, err := StaticIdentity(nil).BuildDigest()
	assert.ErrorIs(t, err, ErrNoIdentity)

	d, err := StaticIdentity{1, 2, 3}.BuildDigest()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, d)
}

func TestFull(t *testing.T) {
	assert.NotEmpty(t, Full())
	assert.Equal(t, "ledhttpd/"+Version, UserAgent())
}

func TestResolve(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	vcs := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.modified", Value: "true"},
		{Key: "vcs.time", Value: "2025-12-24T10:00:00Z"},
	}

	tests := []struct {
		name        string
		ver, commit string
		settings    []debug.BuildSetting
		wantVer     string
		wantCommit  string
	}{
		{"ldflags win", "v1.2.3", "abc", vcs, "v1.2.3", "abc"},
		{"from vcs", "", "", vcs, "dev-20251224", "0123456-dirty"},
		{"no vcs", "", "", nil, "dev-20260304", "unknown"},
		{"short revision", "v1", "", []debug.BuildSetting{{Key: "vcs.revision", Value: "abc"}}, "v1", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ver, commit := resolve(tt.ver, tt.commit, tt.settings, now)
			assert.Equal(t, tt.wantVer, ver)
			assert.Equal(t, tt.wantCommit, commit)
		})
	}
}
