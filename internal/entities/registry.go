package entities

import (
	"fmt"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

// Registry maps module names to transaction descriptors.
// It is read-only after construction and safe for concurrent use.
type Registry struct {
	order       []string
	descriptors map[string]driven.TransactionDescriptor
}

// NewRegistry returns a registry over the given descriptors. The argument
// order is the default module order.
func NewRegistry(descs ...driven.TransactionDescriptor) *Registry {
	r := &Registry{descriptors: make(map[string]driven.TransactionDescriptor, len(descs))}
	for _, d := range descs {
		if _, dup := r.descriptors[d.Module()]; dup {
			continue
		}
		r.order = append(r.order, d.Module())
		r.descriptors[d.Module()] = d
	}
	return r
}

// Default returns the registry of every built-in transaction type.
func Default() *Registry {
	return NewRegistry(NewSalesOrders(), NewInvoices(), NewPurchaseOrders(), NewBills())
}

// Lookup returns the descriptor for a module.
func (r *Registry) Lookup(module string) (driven.TransactionDescriptor, error) {
	d, ok := r.descriptors[module]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownModule, module)
	}
	return d, nil
}

// Modules returns the registered module names in default order.
func (r *Registry) Modules() []string {
	return append([]string(nil), r.order...)
}

// Resolve returns descriptors for the named modules, or all of them when
// modules is empty. Unknown names fail the whole call.
func (r *Registry) Resolve(modules []string) ([]driven.TransactionDescriptor, error) {
	if len(modules) == 0 {
		modules = r.order
	}
	out := make([]driven.TransactionDescriptor, 0, len(modules))
	for _, m := range modules {
		d, err := r.Lookup(m)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
