package driven

// ModuleRegistry resolves module names to transaction descriptors.
// The default order is the order in which a sync without an explicit
// module list processes modules.
type ModuleRegistry interface {
	// Lookup returns the descriptor for a module.
	// Returns domain.ErrUnknownModule if none is registered.
	Lookup(module string) (TransactionDescriptor, error)

	// Modules returns every registered module name in default order.
	Modules() []string

	// Resolve returns descriptors for modules, or every registered
	// descriptor when modules is empty.
	Resolve(modules []string) ([]TransactionDescriptor, error)
}
