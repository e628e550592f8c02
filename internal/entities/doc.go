// Package entities holds the concrete entity descriptors for the source
// system's transaction types and their line items.
//
// Each descriptor is static configuration: which service and endpoint to
// call, which payload keys hold records, and how payload fields map onto
// storage columns. Descriptors are immutable and shared by every service.
package entities
