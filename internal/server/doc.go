// Package server hosts the config portal's HTTP handler.
//
// The portal is plain HTTP on the access point's address: captive-portal
// detection on phones and laptops probes http:// URLs and follows the
// redirect it gets back.
//
// # Usage Example
//
//	srv := server.New(&server.Config{Host: "", Port: 80})
//	if err := srv.Serve(handler); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Shutdown(context.Background())
//
// # Graceful Shutdown
//
// Shutdown stops accepting connections, lets in-flight requests finish
// and closes whatever is left (idle keep-alives, hijacked websockets)
// once the context expires or after ten seconds.
package server
