package entities

import (
	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

const billsEndpoint = "bills"

// NewBills describes accounting bills (vendor invoices).
func NewBills() driven.TransactionDescriptor {
	return &transaction{
		module:     "bills",
		kind:       "bill",
		table:      "bills",
		idField:    "bill_id",
		service:    domain.ServiceBooks,
		endpoint:   billsEndpoint,
		listKey:    "bills",
		detailKey:  "bill",
		dateField:  "date",
		sortColumn: "date",
		fields: []field{
			text("bill_number"),
			text("reference_number"),
			text("vendor_id"),
			text("vendor_name"),
			date("date"),
			date("due_date"),
			text("status"),
			text("currency_code"),
			number("total"),
			number("balance"),
		},
		required:  []string{"vendor_id"},
		lineItems: NewLineItems(domain.ServiceBooks, billsEndpoint),
	}
}
