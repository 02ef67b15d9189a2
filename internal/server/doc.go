// Package server implements the device's HTTP surface.
//
// The server mirrors the constraints of a small embedded HTTP daemon: a
// fixed upper bound on registered route handlers, a hard limit on
// concurrently open sockets, and 10 second receive and send timeouts.
// Keep-alive is on.
//
// # Routes
//
//	GET  /             gzip'd index page, revalidated with ETag/If-None-Match
//	GET  /index.html   307 to /
//	POST /api/led/on   light the LED
//	POST /api/led/off  switch the LED off
//	GET  /api/led      current LED state as JSON
//	GET  /api/events   WebSocket stream of LED state changes
//	GET  /metrics      Prometheus metrics
//
// # Usage Example
//
//	router := server.NewRouter(server.DefaultMaxRouteHandlers, m)
//	h := &server.Handlers{LED: led, Fingerprint: fp, Events: server.NewHub()}
//	if err := h.Register(router); err != nil {
//	    return err
//	}
//
//	srv := server.New(server.Config{Port: 80}, router)
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Stop(context.Background())
//
// # Logging
//
// Every request is logged at info level with its status and duration. Header
// dumps and WebSocket payloads are logged at debug level.
package server
