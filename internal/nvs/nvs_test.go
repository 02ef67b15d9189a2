package nvs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesEmptyPartition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvs.yaml")

	s, err := Open(path)
	require.NoError(t, err)

	_, err = s.GetUint32("boot_count")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Close())
	assert.FileExists(t, path)
}

func TestStore_CommitAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvs.yaml")

	s, err := Open(path)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		v, err := s.IncrementUint32("boot_count")
		require.NoError(t, err)
		assert.Equal(t, uint32(i), v)
	}
	_ = s.Close()

	s2, err := Open(path)
	require.NoError(t, err)
	v, err := s2.GetUint32("boot_count")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), v)
}

func TestOpen_DamagedPartition(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "garbage", content: "version: [1\n", wantErr: ErrNoFreePages},
		{name: "missing version", content: "entries:\n  a: 1\n", wantErr: ErrNoFreePages},
		{name: "newer format", content: "version: 9\n", wantErr: ErrNewVersionFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nvs.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			_, err := Open(path)
			require.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrStorage)

			s, err := Init(path)
			require.NoError(t, err, "Init should recover by erasing")
			_, err = s.GetUint32("a")
			assert.ErrorIs(t, err, ErrNotFound, "erased partition still has data")
		})
	}
}

func TestStore_Closed(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nvs.yaml"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.NoError(t, s.Close())
	assert.ErrorIs(t, s.SetUint32("a", 1), ErrClosed)
}

func TestErase_Missing(t *testing.T) {
	assert.NoError(t, Erase(filepath.Join(t.TempDir(), "missing.yaml")))
}
