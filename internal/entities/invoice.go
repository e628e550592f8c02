package entities

import (
	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

const invoicesEndpoint = "invoices"

// NewInvoices describes accounting invoices.
func NewInvoices() driven.TransactionDescriptor {
	return &transaction{
		module:     "invoices",
		kind:       "invoice",
		table:      "invoices",
		idField:    "invoice_id",
		service:    domain.ServiceBooks,
		endpoint:   invoicesEndpoint,
		listKey:    "invoices",
		detailKey:  "invoice",
		dateField:  "date",
		sortColumn: "date",
		fields: []field{
			text("invoice_number"),
			text("reference_number"),
			text("customer_id"),
			text("customer_name"),
			date("date"),
			date("due_date"),
			text("status"),
			text("currency_code"),
			number("total"),
			number("balance"),
		},
		required:  []string{"customer_id"},
		lineItems: NewLineItems(domain.ServiceBooks, invoicesEndpoint),
	}
}
