// Package netstack defines the network stack collaborator used by bring-up
// and provides Station, an in-process simulated station radio.
//
// The station follows the usual embedded life cycle:
//
//	st := netstack.NewStation(netstack.StationConfig{})
//	st.Init()                    // driver + event loop
//	owner, _ := st.CreateInterface()
//	st.SetDefaultHandlers()
//	st.Start()
//	st.Connect(creds)            // address arrives later as an event
//
// Association is asynchronous: Connect returns immediately and the station
// emits EventAddressAcquired for its interface from its own goroutine once
// the simulated association delay has elapsed. Handlers run on that
// goroutine and must not block.
package netstack
