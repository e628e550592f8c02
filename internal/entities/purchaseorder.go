package entities

import (
	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

const purchaseOrdersEndpoint = "purchaseorders"

// NewPurchaseOrders describes inventory purchase orders.
func NewPurchaseOrders() driven.TransactionDescriptor {
	return &transaction{
		module:     "purchaseorders",
		kind:       "purchaseorder",
		table:      "purchase_orders",
		idField:    "purchaseorder_id",
		service:    domain.ServiceInventory,
		endpoint:   purchaseOrdersEndpoint,
		listKey:    "purchaseorders",
		detailKey:  "purchaseorder",
		dateField:  "date",
		sortColumn: "date",
		fields: []field{
			text("purchaseorder_number"),
			text("reference_number"),
			text("vendor_id"),
			text("vendor_name"),
			date("date"),
			date("delivery_date"),
			text("status"),
			text("currency_code"),
			number("total"),
		},
		required:  []string{"vendor_id"},
		lineItems: NewLineItems(domain.ServiceInventory, purchaseOrdersEndpoint),
	}
}
