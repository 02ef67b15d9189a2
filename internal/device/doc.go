// Package device assembles the ledhttpd bring-up: build fingerprint, LED
// pin, key storage, station radio, association, mDNS advertisement and web
// server, in that order.
//
// Every stage that acquires something registers its release with the
// orchestrator's ledger, so a failure anywhere leaves the simulated hardware
// exactly as it was found and a successful run is torn down by Shutdown.
package device
