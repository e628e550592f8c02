package domain

// Service identifies the source sub-system an endpoint belongs to.
// The source partitions its API by product, and each product names its
// paging and sorting parameters slightly differently.
type Service string

// Available source services.
const (
	// ServiceBooks is the accounting API (invoices, bills).
	ServiceBooks Service = "books"

	// ServiceInventory is the inventory API (sales orders, purchase orders).
	ServiceInventory Service = "inventory"

	// ServiceCRM is the CRM API.
	ServiceCRM Service = "crm"
)

// IsValid returns true if the service is recognised.
func (s Service) IsValid() bool {
	switch s {
	case ServiceBooks, ServiceInventory, ServiceCRM:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Service) String() string {
	return string(s)
}

// ParentRef links a line item to the stored transaction that owns it.
type ParentRef struct {
	// ID is the storage-assigned id of the parent row.
	ID string

	// Type is the parent kind: invoice, salesorder, purchaseorder or bill.
	Type string
}

// Validation is the outcome of checking a record's required fields.
type Validation struct {
	Valid   bool
	Missing []string
}

// RequireFields checks that every field is present and non-empty.
func RequireFields(r Record, fields ...string) Validation {
	var missing []string
	for _, f := range fields {
		if !r.Has(f) {
			missing = append(missing, f)
		}
	}
	return Validation{Valid: len(missing) == 0, Missing: missing}
}
