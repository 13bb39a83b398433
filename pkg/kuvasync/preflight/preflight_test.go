package preflight

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

func stubFree(t *testing.T, free int64, err error) {
	t.Helper()
	orig := freeSpace
	freeSpace = func(string) (int64, error) { return free, err }
	t.Cleanup(func() { freeSpace = orig })
}

func TestCheckMissingRoot(t *testing.T) {
	_, err := Check(filepath.Join(t.TempDir(), "absent"), 0)
	var fatal *types.FatalSetupError
	require.ErrorAs(t, err, &fatal)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCheckRootIsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))

	_, err := Check(f, 0)
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestCheckSkipsSpaceWithoutMinimum(t *testing.T) {
	stubFree(t, 0, errors.New("must not be called"))

	res, err := Check(t.TempDir(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), res.FreeBytes)
	assert.False(t, res.LowSpace)
}

func TestCheckLowSpace(t *testing.T) {
	stubFree(t, 100, nil)

	res, err := Check(t.TempDir(), 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.FreeBytes)
	assert.True(t, res.LowSpace)

	res, err = Check(t.TempDir(), 50)
	require.NoError(t, err)
	assert.False(t, res.LowSpace)
}

func TestCheckSpaceUnknown(t *testing.T) {
	stubFree(t, 0, errors.ErrUnsupported)

	res, err := Check(t.TempDir(), 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), res.FreeBytes)
	assert.False(t, res.LowSpace)
}

func TestDiskFree(t *testing.T) {
	free, err := diskFree(t.TempDir())
	if errors.Is(err, errors.ErrUnsupported) {
		t.Skip("free space not available on this platform")
	}
	require.NoError(t, err)
	assert.Positive(t, free)
}
