// Package api provides the HTTP surface of the device verification service.
//
// Endpoints:
//   - GET    /health                               liveness and cache size
//   - GET    /api/v1/verify/{deviceId}?timeout=ms  check one device
//   - GET    /api/v1/verify/{deviceId}/history     recent live checks
//   - DELETE /api/v1/cache                         clear cached outcomes
//   - GET    /api/v1/metrics                       runtime and verifier counters
//
// A verify request always answers 200 once the device ID is well formed;
// whether the device is live is carried in the exists field, which is
// true, false, or null when the broker could not be reached.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
