// Package closer provides the resource ledger used to unwind device bring-up.
//
// A Ledger is a LIFO registry of cleanup actions. Every resource acquired
// during bring-up registers the action that releases it; draining the ledger
// releases everything in reverse order of acquisition.
//
//	ledger := closer.New()
//	defer ledger.Destroy()
//
//	if err := pins.ConfigureOutput(mask); err != nil {
//	    return err
//	}
//	if err := ledger.RegisterNamed("reset-pins", resetPins); err != nil {
//	    return err
//	}
//
// A cleanup that fails or panics is logged and skipped; draining always
// completes. A drained ledger can be reused.
//
// # Guards
//
// Multi-step acquisitions use a Guard: the guard releases its resource on
// every exit path unless it is promoted into a ledger first.
//
//	g := closer.NewGuard("destroy-netif", st.DestroyInterface)
//	defer g.Release()
//	...
//	return g.Promote(ledger)
//
// # Thread Safety
//
// A Ledger has a single owner. Its methods are internally locked so that a
// shutdown signal handled on another goroutine cannot corrupt the stack, but
// cleanup actions themselves always run outside the lock.
package closer
