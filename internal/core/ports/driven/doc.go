// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - ExternalClient: Calls the source system's REST API
//   - Store: Relational cache the sync engine reconciles into
//   - EntityDescriptor / TransactionDescriptor: Per-type mapping rules
//   - ModuleRegistry: Resolves module names to descriptors
//   - SchedulerStore: Scheduled task state and history
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or entities package
package driven
