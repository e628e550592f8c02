package entities

import (
	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

const salesOrdersEndpoint = "salesorders"

// NewSalesOrders describes inventory sales orders.
func NewSalesOrders() driven.TransactionDescriptor {
	return &transaction{
		module:     "salesorders",
		kind:       "salesorder",
		table:      "sales_orders",
		idField:    "salesorder_id",
		service:    domain.ServiceInventory,
		endpoint:   salesOrdersEndpoint,
		listKey:    "salesorders",
		detailKey:  "salesorder",
		dateField:  "date",
		sortColumn: "date",
		fields: []field{
			text("salesorder_number"),
			text("reference_number"),
			text("customer_id"),
			text("customer_name"),
			date("date"),
			date("shipment_date"),
			text("status"),
			text("currency_code"),
			number("sub_total"),
			number("total"),
		},
		required:  []string{"customer_id"},
		lineItems: NewLineItems(domain.ServiceInventory, salesOrdersEndpoint),
	}
}
