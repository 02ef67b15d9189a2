package closer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardReleaseOnce(t *testing.T) {
	calls := 0
	g := NewGuard("netif", func() error {
		calls++
		return nil
	})

	require.True(t, g.Armed())
	require.NoError(t, g.Release())
	require.NoError(t, g.Release())
	assert.Equal(t, 1, calls)
	assert.False(t, g.Armed())
}

func TestGuardPromote(t *testing.T) {
	l := New()
	calls := 0
	g := NewGuard("netif", func() error {
		calls++
		return nil
	})

	require.NoError(t, g.Promote(l))
	require.NoError(t, g.Release())
	assert.Equal(t, 0, calls, "promoted guard must not release")
	assert.Equal(t, 1, l.Len())

	l.Drain()
	assert.Equal(t, 1, calls)

	require.ErrorIs(t, g.Promote(l), ErrInvalidArgument)
}

func TestGuardPromoteFailureStaysArmed(t *testing.T) {
	l := New(WithCapacity(1))
	require.NoError(t, l.Register(func() error { return nil }))

	calls := 0
	g := NewGuard("netif", func() error {
		calls++
		return errors.New("still busy")
	})

	require.ErrorIs(t, g.Promote(l), ErrAllocationFailed)
	assert.True(t, g.Armed())

	err := g.Release()
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGuardReleaseRecoversPanic(t *testing.T) {
	g := NewGuard("boom", func() error { panic("bad") })
	err := g.Release()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestGuardNilCleanup(t *testing.T) {
	g := NewGuard("noop", nil)
	assert.False(t, g.Armed())
	require.NoError(t, g.Release())
}

func TestGuardDisarm(t *testing.T) {
	calls := 0
	g := NewGuard("pin", func() error {
		calls++
		return nil
	})

	g.Disarm()
	require.NoError(t, g.Release())
	assert.Equal(t, 0, calls)
	assert.False(t, g.Armed())
}
