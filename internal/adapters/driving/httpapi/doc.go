// Package httpapi exposes the admin HTTP surface for historical syncs and
// cached record lookups.
//
// Routes:
//
//	POST /v1/sync/historical        start a historical sync (202, or 409 if one is active)
//	POST /v1/sync/stop              request a cooperative stop
//	GET  /v1/sync/status            progress of the active sync
//	GET  /v1/sync/latest            last write time per module
//	GET  /v1/records/{module}/{id}  cached record lookup (?force=true bypasses the cache)
//	GET  /health                    liveness
//
// The principal is taken from the X-Ledgersync-User and X-Ledgersync-Org
// headers. Requests without them run as the system principal.
package httpapi
