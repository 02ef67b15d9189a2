package closer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muurk/ledhttpd/internal/logging"
)

func recorder(order *[]string, name string) CleanupFunc {
	return func() error {
		*order = append(*order, name)
		return nil
	}
}

func TestLedgerDrainReverseOrder(t *testing.T) {
	l := New()
	var order []string

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, l.RegisterNamed(name, recorder(&order, name)))
	}
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []string{"c", "b", "a"}, l.Names())

	l.Drain()

	assert.Equal(t, []string{"c", "b", "a"}, order)
	assert.Equal(t, 0, l.Len())
}

func TestLedgerDrainEmptyAndTwice(t *testing.T) {
	l := New()
	l.Drain()
	assert.Equal(t, 0, l.Len())

	calls := 0
	require.NoError(t, l.Register(func() error {
		calls++
		return nil
	}))

	l.Drain()
	l.Drain()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, l.Len())
}

func TestLedgerRegisterNil(t *testing.T) {
	l := New()
	require.NoError(t, l.Register(func() error { return nil }))

	err := l.Register(nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 1, l.Len())

	var nilLedger *Ledger
	require.ErrorIs(t, nilLedger.Register(func() error { return nil }), ErrInvalidArgument)
	nilLedger.Drain()
	nilLedger.Destroy()
}

func TestLedgerCapacity(t *testing.T) {
	l := New(WithCapacity(2))
	require.NoError(t, l.Register(func() error { return nil }))
	require.NoError(t, l.Register(func() error { return nil }))

	err := l.Register(func() error { return nil })
	require.ErrorIs(t, err, ErrAllocationFailed)
	assert.Equal(t, 2, l.Len())

	l.Drain()
	require.NoError(t, l.Register(func() error { return nil }), "drained ledger accepts new registrations")
}

func TestLedgerFailingCleanupDoesNotStopDrain(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(nil) })

	l := New()
	var order []string

	require.NoError(t, l.RegisterNamed("first", recorder(&order, "first")))
	require.NoError(t, l.RegisterNamed("broken", func() error {
		order = append(order, "broken")
		return errors.New("device busy")
	}))
	require.NoError(t, l.RegisterNamed("panicky", func() error {
		order = append(order, "panicky")
		panic("boom")
	}))
	require.NoError(t, l.RegisterNamed("last", recorder(&order, "last")))

	l.Drain()

	assert.Equal(t, []string{"last", "panicky", "broken", "first"}, order)
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 2, logs.FilterMessage("Cleanup failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("Ledger drained with failures").Len())
}

func TestLedgerCleanupRegisteringDuringDrain(t *testing.T) {
	l := New()
	var order []string

	require.NoError(t, l.RegisterNamed("outer", func() error {
		order = append(order, "outer")
		return l.RegisterNamed("late", recorder(&order, "late"))
	}))

	l.Drain()
	assert.Equal(t, []string{"outer", "late"}, order)
	assert.Equal(t, 0, l.Len())
}

func TestLedgerDestroy(t *testing.T) {
	l := New()
	calls := 0
	require.NoError(t, l.Register(func() error {
		calls++
		return nil
	}))

	l.Destroy()
	l.Destroy()

	assert.Equal(t, 1, calls)
	require.ErrorIs(t, l.Register(func() error { return nil }), ErrInvalidArgument)
}

func TestLedgerEveryPrefixUnwinds(t *testing.T) {
	for n := 0; n <= 6; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			l := New()
			var order []string
			want := make([]string, 0, n)
			for i := 0; i < n; i++ {
				name := fmt.Sprintf("c%d", i)
				require.NoError(t, l.RegisterNamed(name, recorder(&order, name)))
				want = append([]string{name}, want...)
			}
			l.Drain()
			if n == 0 {
				assert.Empty(t, order)
				return
			}
			assert.Equal(t, want, order)
		})
	}
}
