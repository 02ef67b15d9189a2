package netwait

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/ledhttpd/internal/netstack"
)

const owner netstack.Owner = "sta0"

func newStation(t *testing.T, cfg netstack.StationConfig) *netstack.Station {
	t.Helper()
	st := netstack.NewStation(cfg)
	require.NoError(t, st.Init())
	_, err := st.CreateInterface()
	require.NoError(t, err)
	require.NoError(t, st.SetDefaultHandlers())
	require.NoError(t, st.Start())
	t.Cleanup(func() { _ = st.Stop() })
	return st
}

func TestAwaitAcquired(t *testing.T) {
	addr := netip.MustParseAddr("10.0.0.7")
	st := newStation(t, netstack.StationConfig{Address: addr, AssociationDelay: 10 * time.Millisecond})

	var results []Result
	b := New(st, WithTimeout(time.Second), WithObserver(func(r Result, _ time.Duration) {
		results = append(results, r)
	}))

	got, err := b.Await(context.Background(), owner, func() error {
		return st.Connect(netstack.Credentials{SSID: "lab"})
	})
	require.NoError(t, err)
	assert.Equal(t, addr, got)
	assert.False(t, b.Waiting(), "waiter slot must be cleared")
	assert.Equal(t, 0, st.Subscribers(netstack.EventAddressAcquired), "subscription must be removed")
	assert.Equal(t, []Result{ResultAcquired}, results)
}

func TestAwaitTimeout(t *testing.T) {
	st := newStation(t, netstack.StationConfig{RejectAuth: true})
	timeout := 50 * time.Millisecond
	b := New(st, WithTimeout(timeout))

	start := time.Now()
	_, err := b.Await(context.Background(), owner, func() error {
		return st.Connect(netstack.Credentials{SSID: "lab"})
	})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+500*time.Millisecond)
	assert.False(t, b.Waiting())
	assert.Equal(t, 0, st.Subscribers(netstack.EventAddressAcquired))
}

func TestAwaitIgnoresUnrelatedOwner(t *testing.T) {
	st := newStation(t, netstack.StationConfig{RejectAuth: true})
	b := New(st, WithTimeout(80*time.Millisecond))

	_, err := b.Await(context.Background(), owner, func() error {
		require.True(t, b.Waiting(), "waiter must be published before connect")
		b.Notify(netstack.Event{
			Kind:    netstack.EventAddressAcquired,
			Owner:   "ap0",
			Address: netip.MustParseAddr("192.168.4.1"),
		})
		return st.Connect(netstack.Credentials{SSID: "lab"})
	})

	require.ErrorIs(t, err, ErrTimeout)
	assert.False(t, b.Waiting())
}

func TestAwaitConnectFailureCleansUp(t *testing.T) {
	st := newStation(t, netstack.StationConfig{})
	b := New(st, WithTimeout(time.Second))

	_, err := b.Await(context.Background(), owner, func() error {
		return st.Connect(netstack.Credentials{})
	})

	require.ErrorIs(t, err, netstack.ErrInvalidCredentials)
	assert.False(t, b.Waiting())
	assert.Equal(t, 0, st.Subscribers(netstack.EventAddressAcquired))
}

func TestAwaitContextCanceled(t *testing.T) {
	st := newStation(t, netstack.StationConfig{RejectAuth: true})
	b := New(st, WithTimeout(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := b.Await(ctx, owner, func() error {
		return st.Connect(netstack.Credentials{SSID: "lab"})
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, b.Waiting())
	assert.Equal(t, 0, st.Subscribers(netstack.EventAddressAcquired))
}

func TestAwaitSingleWaiter(t *testing.T) {
	st := newStation(t, netstack.StationConfig{RejectAuth: true})
	b := New(st, WithTimeout(200*time.Millisecond))

	entered := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = b.Await(context.Background(), owner, func() error {
			close(entered)
			return nil
		})
	}()
	<-entered

	_, err := b.Await(context.Background(), owner, func() error {
		t.Error("second waiter must not connect")
		return nil
	})
	require.ErrorIs(t, err, ErrBusy)

	wg.Wait()
	assert.False(t, b.Waiting())
	assert.Equal(t, 0, st.Subscribers(netstack.EventAddressAcquired))
}

func TestNotifyWithoutWaiterIsNoop(t *testing.T) {
	b := New(netstack.NewStation(netstack.StationConfig{}))

	assert.NotPanics(t, func() {
		b.Notify(netstack.Event{Kind: netstack.EventAddressAcquired, Owner: owner})
		b.Notify(netstack.Event{Kind: netstack.EventDisconnected, Owner: owner})
	})
}

func TestNotifyNeverBlocks(t *testing.T) {
	st := newStation(t, netstack.StationConfig{RejectAuth: true})
	b := New(st, WithTimeout(time.Second))

	_, err := b.Await(context.Background(), owner, func() error {
		ev := netstack.Event{Kind: netstack.EventAddressAcquired, Owner: owner, Address: netip.MustParseAddr("10.0.0.1")}
		// Second delivery must be dropped rather than block the caller.
		b.Notify(ev)
		b.Notify(ev)
		return nil
	})
	require.NoError(t, err)
}

func TestLateNotificationAfterTimeout(t *testing.T) {
	st := newStation(t, netstack.StationConfig{RejectAuth: true})
	b := New(st, WithTimeout(10*time.Millisecond))

	_, err := b.Await(context.Background(), owner, func() error { return nil })
	require.ErrorIs(t, err, ErrTimeout)

	assert.NotPanics(t, func() {
		b.Notify(netstack.Event{Kind: netstack.EventAddressAcquired, Owner: owner})
	})
	assert.False(t, b.Waiting())
}

type failingSource struct{}

func (failingSource) Subscribe(netstack.EventKind, netstack.Handler) (netstack.Subscription, error) {
	return netstack.Subscription{}, errors.New("event loop gone")
}

func (failingSource) Unsubscribe(netstack.Subscription) error { return nil }

func TestAwaitSubscribeFailure(t *testing.T) {
	b := New(failingSource{})
	_, err := b.Await(context.Background(), owner, func() error {
		t.Error("connect must not run without a subscription")
		return nil
	})
	require.Error(t, err)
	assert.False(t, b.Waiting())
}

func TestAwaitInvalidArgument(t *testing.T) {
	b := New(failingSource{})
	_, err := b.Await(context.Background(), "", func() error { return nil })
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = b.Await(context.Background(), owner, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}
