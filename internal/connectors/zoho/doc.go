// Package zoho implements driven.ExternalClient over the Zoho REST APIs.
//
// One Client serves the Books, Inventory and CRM products. It mints access
// tokens from a long-lived refresh token, throttles every request through a
// single shared limiter, retries throttled and transient responses, and maps
// HTTP failures onto the domain error sentinels the sync engine classifies.
package zoho
